package priceimport

import (
	"bytes"
	"mime"
	"path"
	"strings"
)

// Kind is the container format of an uploaded price list.
type Kind int

const (
	KindCSV Kind = iota
	KindXLSX
	KindXLS
)

func (k Kind) String() string {
	switch k {
	case KindCSV:
		return "csv"
	case KindXLSX:
		return "xlsx"
	case KindXLS:
		return "xls"
	default:
		return "unknown"
	}
}

const (
	contentTypeCSV   = "text/csv"
	contentTypePlain = "text/plain"
	contentTypeXLS   = "application/vnd.ms-excel"
	contentTypeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	allowedContentTypes = map[string]struct{}{
		contentTypeCSV:   {},
		contentTypePlain: {},
		contentTypeXLS:   {},
		contentTypeXLSX:  {},
	}
	allowedExtensions = map[string]struct{}{
		".csv":  {},
		".xlsx": {},
		".xls":  {},
	}

	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectKind validates an upload by its declared content type or file
// extension, then picks the parser from the leading bytes. Workbooks are
// recognized by their ZIP or OLE signatures; anything else is read as text,
// which also covers CSV exports saved with a spreadsheet extension.
func DetectKind(filename, contentType string, head []byte) (Kind, error) {
	ext := strings.ToLower(path.Ext(filename))
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}

	_, typeOK := allowedContentTypes[mediaType]
	_, extOK := allowedExtensions[ext]
	if !typeOK && !extOK {
		return 0, &UnsupportedFormatError{Filename: filename, ContentType: contentType}
	}

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return KindXLSX, nil
	case bytes.HasPrefix(head, oleMagic):
		return KindXLS, nil
	default:
		return KindCSV, nil
	}
}
