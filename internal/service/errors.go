package service

import "fmt"

const (
	CodeNotFound      = "NOT_FOUND"
	CodeValidation    = "VALIDATION_ERROR"
	CodePersistFailed = "PERSIST_FAILED"
	CodeSyncFailed    = "SYNC_FAILED"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, err error, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
		Err:     err,
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(id string) *BusinessError {
	return NewBusinessError(CodeNotFound,
		fmt.Sprintf("задача %s не найдена", id),
		nil,
		ToDetail("resource", "task"),
		ToDetail("id", id))
}

func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation,
		fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		nil,
		ToDetail("field", field),
		ToDetail("reason", reason))
}

func NewPersistError(list string, err error) *BusinessError {
	return NewBusinessError(CodePersistFailed,
		"изменение применено, но список не сохранён",
		err,
		ToDetail("list", list))
}

func NewSyncError(err error) *BusinessError {
	return NewBusinessError(CodeSyncFailed, "синхронизация с сервером не удалась", err)
}
