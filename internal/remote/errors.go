package remote

import (
	"errors"
	"fmt"
)

type Cause string

const (
	CauseConnectivity Cause = "connectivity"
	CauseStatus       Cause = "status"
	CauseDecode       Cause = "decode"
)

// NetworkError описывает неудачный запрос к серверу списка. Для CauseStatus заполнены
// StatusCode и сообщение сервера.
type NetworkError struct {
	Op         string
	Cause      Cause
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Cause == CauseStatus:
		return fmt.Sprintf("%s: сервер ответил %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Cause, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func IsCause(err error, cause Cause) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Cause == cause
}
