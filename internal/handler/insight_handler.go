package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/siteinsight/internal/model"
	"github.com/xxxsen/siteinsight/internal/pkg/errcode"
	"github.com/xxxsen/siteinsight/internal/pkg/response"
)

type InsightService interface {
	Ingest(ctx context.Context, url string, questions []string) (*model.InsightRecord, error)
	Answer(ctx context.Context, url string, question string, history []model.Turn) (*model.AnswerRecord, error)
	GetInsight(ctx context.Context, url string) (*model.InsightRecord, error)
}

type InsightHandler struct {
	svc InsightService
}

func NewInsightHandler(svc InsightService) *InsightHandler {
	return &InsightHandler{svc: svc}
}

type ingestRequest struct {
	URL       string   `json:"url"`
	Questions []string `json:"questions"`
}

type queryRequest struct {
	URL     string       `json:"url"`
	Query   string       `json:"query"`
	History []model.Turn `json:"conversation_history"`
}

func (h *InsightHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	rec, err := h.svc.Ingest(c.Request.Context(), req.URL, req.Questions)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rec)
}

func (h *InsightHandler) Get(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "url is required")
		return
	}
	rec, err := h.svc.GetInsight(c.Request.Context(), url)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rec)
}

func (h *InsightHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	out, err := h.svc.Answer(c.Request.Context(), req.URL, req.Query, req.History)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}

func Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
