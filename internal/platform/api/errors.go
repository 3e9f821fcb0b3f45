package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ===== Error model =====
// 以前は assets/disposals/lends の各パッケージに同型の定義が重複していたが、
// ワークフロー同士が在庫台帳を共有するようになったので一箇所に集約した。

type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeQuantityConflict Code = "QUANTITY_CONFLICT"
	CodeConflict         Code = "CONFLICT"
	CodeInternal         Code = "INTERNAL"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *Error  { return &Error{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *Error { return &Error{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *Error { return &Error{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *Error { return &Error{Code: CodeInternal, Message: msg} }

// ErrShortfall: 在庫不足。呼び出し側へ具体的な数値を返す
func ErrShortfall(available, requested int) *Error {
	return &Error{
		Code:    CodeQuantityConflict,
		Message: fmt.Sprintf("insufficient quantity (available: %d, requested: %d)", available, requested),
	}
}

func ErrQuantity(msg string) *Error { return &Error{Code: CodeQuantityConflict, Message: msg} }

func HTTPStatus(err error) int {
	var api *Error
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument, CodeQuantityConflict:
			return http.StatusBadRequest
		case CodeUnauthenticated:
			return http.StatusUnauthorized
		case CodePermissionDenied:
			return http.StatusForbidden
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
