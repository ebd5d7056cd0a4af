package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbforge/ragpipe/internal/pkg/errcode"
	"github.com/kbforge/ragpipe/internal/pkg/response"
	"github.com/kbforge/ragpipe/internal/service"
)

type IndexHandler struct {
	rag *service.RAGService
}

func NewIndexHandler(rag *service.RAGService) *IndexHandler {
	return &IndexHandler{rag: rag}
}

func (h *IndexHandler) List(c *gin.Context) {
	names, err := h.rag.ListIndexes(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"indexes": names})
}

func (h *IndexHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "index name is required")
		return
	}
	if err := h.rag.DeleteKnowledgeBase(c.Request.Context(), name); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": name})
}
