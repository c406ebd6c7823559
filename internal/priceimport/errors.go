package priceimport

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrMissingFile is returned when the upload carries no file.
	ErrMissingFile = errors.New("Файл не был загружен")

	// ErrNothingParsed is returned when the file yields no usable rows.
	ErrNothingParsed = errors.New("Не удалось распарсить файл. Убедитесь, что файл содержит колонки: название товара, цена")
)

// UnsupportedFormatError is returned for uploads that are neither CSV nor
// Excel by content type or extension.
type UnsupportedFormatError struct {
	Filename    string
	ContentType string
}

func (e *UnsupportedFormatError) Error() string {
	return "Неподдерживаемый формат файла. Используйте CSV или Excel файл."
}

// WorkbookError wraps a failure to open or read a spreadsheet.
type WorkbookError struct {
	Err error
}

func (e *WorkbookError) Error() string {
	return "Ошибка при чтении Excel файла. Убедитесь, что файл не поврежден."
}

func (e *WorkbookError) Unwrap() error { return e.Err }

// CatalogError wraps a failure to load products for matching.
type CatalogError struct {
	Err error
}

func (e *CatalogError) Error() string {
	return "Ошибка при получении списка товаров"
}

func (e *CatalogError) Unwrap() error { return e.Err }

// TooLargeError is returned when an upload exceeds the configured limit.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("Файл слишком большой. Максимальный размер: %d МБ", e.Limit>>20)
}
