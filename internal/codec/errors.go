package codec

import (
	"errors"
	"fmt"
)

var ErrDecode = errors.New("ошибка декодирования задачи")
var ErrNotArray = errors.New("ожидался JSON-массив задач")
var ErrUnknownFormat = errors.New("неизвестный формат файла")

// DecodeError описывает отклонённую запись. Row заполняется только при чтении CSV-файла (нумерация с 1 после заголовка).
type DecodeError struct {
	Format Format
	Field  string
	Row    int
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Format, e.Reason)
	if e.Field != "" {
		msg = fmt.Sprintf("%s: поле %q: %s", e.Format, e.Field, e.Reason)
	}
	if e.Row > 0 {
		msg = fmt.Sprintf("строка %d: %s", e.Row, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

func fieldError(format Format, field, reason string) *DecodeError {
	return &DecodeError{Format: format, Field: field, Reason: reason}
}
