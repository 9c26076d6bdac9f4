package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes a failure envelope; httpStatus 0 keeps the envelope-only convention (200).
func Error(c *gin.Context, httpStatus int, code int, message string) {
	if httpStatus == 0 {
		httpStatus = 200
	}
	proxyutil.FailJson(c, httpStatus, AsCodeErr(uint32(code), message))
}
