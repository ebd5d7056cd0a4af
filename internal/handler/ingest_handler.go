package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbforge/ragpipe/internal/docsource"
	"github.com/kbforge/ragpipe/internal/model"
	"github.com/kbforge/ragpipe/internal/pkg/errcode"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
	"github.com/kbforge/ragpipe/internal/pkg/response"
	"github.com/kbforge/ragpipe/internal/service"
)

type IngestHandler struct {
	rag    *service.RAGService
	loader *docsource.Loader
}

// NewIngestHandler accepts a nil loader; inline documents are then the only
// ingestion path.
func NewIngestHandler(rag *service.RAGService, loader *docsource.Loader) *IngestHandler {
	return &IngestHandler{rag: rag, loader: loader}
}

type ingestDocument struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type ingestRequest struct {
	Documents []ingestDocument `json:"documents"`
}

// Ingest writes the request documents into the knowledge base. With an
// empty document list it re-ingests the configured source directory.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}

	var docs []model.Document
	if len(req.Documents) > 0 {
		docs = make([]model.Document, 0, len(req.Documents))
		for _, d := range req.Documents {
			if d.Name == "" {
				response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "document name is required")
				return
			}
			docs = append(docs, model.Document{Name: d.Name, Text: d.Text})
		}
	} else {
		if h.loader == nil {
			response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "no documents supplied and no source directory configured")
			return
		}
		loaded, err := h.loader.Load(c.Request.Context())
		if err != nil {
			handleError(c, err)
			return
		}
		docs = loaded
	}

	report, err := h.rag.Ingest(c.Request.Context(), docs)
	if err != nil {
		var perr *appErr.PartialUpsertError
		if errors.As(err, &perr) {
			response.ErrorData(c, http.StatusBadGateway, errcode.ErrPartialIngest, perr.Error(), gin.H{
				"report":    report,
				"succeeded": perr.Succeeded,
				"failed":    perr.Failed,
			})
			return
		}
		handleError(c, err)
		return
	}
	response.Success(c, report)
}
