package responses

import "fmt"

// Error codes, one per failure class. Input errors map to a 400 status, the
// rest to 500.
const (
	ErrorCodeUnknownRoute       = 1
	ErrorCodeBadRequest         = 2
	ErrorCodeWrite              = 3
	ErrorCodeTokenExpired       = 4
	ErrorCodeCallNotFound       = 5
	ErrorCodePushBindingMissing = 6
	ErrorCodePushDelivery       = 7
	ErrorCodeStoreUnavailable   = 8
	ErrorCodeInternal           = 9
)

// Error describes an error for humans and machines
type Error struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return fmt.Sprintf("status:%d, code:%d, message:%q", e.Status, e.Code, e.Message)
}

// NewError - a brand new error
func NewError(status, code int, message string) *Error {
	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
	}
}
