package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbforge/ragpipe/internal/pkg/errcode"
	"github.com/kbforge/ragpipe/internal/pkg/response"
	"github.com/kbforge/ragpipe/internal/service"
)

type QueryHandler struct {
	rag            *service.RAGService
	relevanceFloor float64
}

func NewQueryHandler(rag *service.RAGService, relevanceFloor float64) *QueryHandler {
	return &QueryHandler{rag: rag, relevanceFloor: relevanceFloor}
}

type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type searchRequest struct {
	Query     string   `json:"query"`
	TopK      int      `json:"top_k"`
	Threshold *float64 `json:"threshold"`
	Source    string   `json:"source"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	ans, err := h.rag.Query(c.Request.Context(), req.Question, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ans)
}

type summarizeRequest struct {
	Topic     string `json:"topic"`
	TopK      int    `json:"top_k"`
	MaxLength int    `json:"max_length"`
	Source    string `json:"source"`
}

func (h *QueryHandler) Summarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	ans, err := h.rag.Summarize(c.Request.Context(), req.Topic, req.TopK, req.MaxLength, req.Source)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"summary":     ans.Text,
		"topic":       req.Topic,
		"chunk_count": len(ans.Sources),
		"provider":    ans.Provider,
	})
}

func (h *QueryHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	threshold := h.relevanceFloor
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	hits, err := h.rag.Search(c.Request.Context(), req.Query, req.TopK, threshold, req.Source)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": hits})
}
