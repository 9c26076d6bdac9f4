package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/siteinsight/internal/pkg/errcode"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
	"github.com/xxxsen/siteinsight/internal/pkg/response"
)

type errorMapping struct {
	kind    error
	status  int
	code    int
	message string
}

// errorMappings is checked in order; ErrUnavailable wraps under the stage
// kinds so it comes first.
var errorMappings = []errorMapping{
	{kind: appErr.ErrInvalid, status: http.StatusBadRequest, code: errcode.ErrInvalid, message: "invalid request"},
	{kind: appErr.ErrNotFound, status: http.StatusNotFound, code: errcode.ErrNotFound, message: "not found"},
	{kind: appErr.ErrUnauthorized, status: http.StatusUnauthorized, code: errcode.ErrUnauthorized, message: "unauthorized"},
	{kind: appErr.ErrTooMany, status: http.StatusTooManyRequests, code: errcode.ErrTooMany, message: "too many requests"},
	{kind: appErr.ErrUnavailable, status: http.StatusServiceUnavailable, code: errcode.ErrAIUnavailable, message: "ai provider unavailable"},
	{kind: appErr.ErrFetch, status: http.StatusBadGateway, code: errcode.ErrFetchFailed, message: "fetch homepage failed"},
	{kind: appErr.ErrParse, status: http.StatusUnprocessableEntity, code: errcode.ErrParseFailed, message: "no usable content on homepage"},
	{kind: appErr.ErrEmbedding, status: http.StatusBadGateway, code: errcode.ErrEmbeddingFailed, message: "embedding failed"},
	{kind: appErr.ErrSynthesis, status: http.StatusBadGateway, code: errcode.ErrSynthesisFailed, message: "insight synthesis failed"},
	{kind: appErr.ErrAnswer, status: http.StatusBadGateway, code: errcode.ErrAnswerFailed, message: "answer generation failed"},
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			response.Error(c, m.status, m.code, m.message)
			return
		}
	}
	response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
}
