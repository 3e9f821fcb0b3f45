package api

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// レスポンスは success フラグ + data か error のどちらか一方を返す

func OK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// OKMessage: data に加えて自動裁定結果などの説明文を添える場合用
func OKMessage(c *gin.Context, status int, data any, msg string) {
	c.JSON(status, gin.H{"success": true, "data": data, "message": msg})
}

func Fail(c *gin.Context, err error) {
	var api *Error
	if !errors.As(err, &api) {
		api = ErrInternal(err.Error())
	}
	c.JSON(HTTPStatus(err), gin.H{"success": false, "error": api})
}

func FailCode(c *gin.Context, status int, code Code, msg string) {
	c.JSON(status, gin.H{"success": false, "error": &Error{Code: code, Message: msg}})
}

// AbortCode はミドルウェア用。後続のハンドラを止めてエラー封筒を返す。
func AbortCode(c *gin.Context, status int, code Code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": &Error{Code: code, Message: msg}})
}
