package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/priceimport"
	"github.com/xenking/storefront/internal/wire"
)

// multipartOverhead allows for form fields and part headers around the file.
const multipartOverhead = 1 << 20

const msgInternal = "Внутренняя ошибка сервера"

// BulkUpdatePrices reconciles an uploaded price list with the catalog. The
// multipart form carries the list in "file", "preview" or "update" in "mode"
// and, optionally, a JSON array of product ids to write in "selectedIds".
func (h *Handler) BulkUpdatePrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := h.imports.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.importError(w, r, &priceimport.TooLargeError{Limit: limit})
			return
		}
		h.importError(w, r, priceimport.ErrMissingFile)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.importError(w, r, priceimport.ErrMissingFile)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		zctx.From(ctx).Error("Failed to read upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	mode := priceimport.ParseMode(r.FormValue("mode"))
	rep, err := h.imports.Import(ctx, priceimport.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Mode:        mode,
		Selected:    parseSelected(r.FormValue("selectedIds")),
	})
	if err != nil {
		h.importError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeReport(&e, rep)
	writeJSON(w, http.StatusOK, &e)
}

// importError maps import failures to {"error": ...} responses.
func (h *Handler) importError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unsupported *priceimport.UnsupportedFormatError
		tooLarge    *priceimport.TooLargeError
		workbook    *priceimport.WorkbookError
		catalog     *priceimport.CatalogError
	)
	switch {
	case errors.Is(err, priceimport.ErrMissingFile),
		errors.Is(err, priceimport.ErrNothingParsed),
		errors.As(err, &unsupported),
		errors.As(err, &tooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &workbook):
		zctx.From(r.Context()).Warn("Unreadable workbook", zap.Error(workbook.Err))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &catalog):
		zctx.From(r.Context()).Error("Failed to load catalog for price import", zap.Error(catalog.Err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		zctx.From(r.Context()).Error("Price import failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// parseSelected reads a JSON array of ids. Anything else selects nothing in
// particular, which means every match.
func parseSelected(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	selected := make(map[string]struct{})
	if err := jx.DecodeStr(raw).Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		id, err := d.Str()
		if err != nil {
			return err
		}
		selected[id] = struct{}{}
		return nil
	}); err != nil {
		return nil
	}
	return selected
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	wire.Error(&e, msg)
	writeJSON(w, status, &e)
}

func encodeReport(e *jx.Encoder, rep *priceimport.Report) {
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("mode")
	e.Str(string(rep.Mode))

	e.FieldStart("summary")
	e.ObjStart()
	e.FieldStart("total")
	e.Int(rep.Summary.Total)
	e.FieldStart("updated")
	e.Int(rep.Summary.Updated)
	e.FieldStart("notFound")
	e.Int(rep.Summary.NotFound)
	e.FieldStart("errors")
	e.Int(rep.Summary.Errors)
	e.FieldStart("skipped")
	e.Int(rep.Summary.Skipped)
	e.ObjEnd()

	res := rep.Results
	e.FieldStart("results")
	e.ObjStart()
	e.FieldStart("updated")
	e.ArrStart()
	for _, u := range res.Updated {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(u.ID)
		e.FieldStart("name")
		e.Str(u.Name)
		e.FieldStart("oldPrice")
		if u.OldPrice != nil {
			encodeMoney(e, *u.OldPrice)
		} else {
			e.Null()
		}
		e.FieldStart("newPrice")
		encodeMoney(e, u.NewPrice)
		e.FieldStart("foundBy")
		e.Str(string(u.FoundBy))
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("notFound")
	e.ArrStart()
	for _, n := range res.NotFound {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(n.Name)
		e.FieldStart("price")
		encodeMoney(e, n.Price)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("errors")
	e.ArrStart()
	for _, f := range res.Errors {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(f.Name)
		e.FieldStart("error")
		e.Str(f.Error)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("skipped")
	e.ArrStart()
	for _, s := range res.Skipped {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(s.ID)
		e.FieldStart("name")
		e.Str(s.Name)
		e.FieldStart("price")
		encodeMoney(e, s.Price)
		e.FieldStart("reason")
		e.Str(s.Reason)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	e.ObjEnd()
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.String()))
}
