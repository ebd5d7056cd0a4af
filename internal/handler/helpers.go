package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kbforge/ragpipe/internal/logutil"
	"github.com/kbforge/ragpipe/internal/pkg/errcode"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
	"github.com/kbforge/ragpipe/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
	case appErr.IsNotFound(err):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case appErr.IsConflict(err):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, "conflict")
	case appErr.IsConfiguration(err):
		response.Error(c, http.StatusUnprocessableEntity, errcode.ErrBadConfiguration, "configuration mismatch")
	case errors.Is(err, appErr.ErrStoreUnavailable):
		response.Error(c, http.StatusBadGateway, errcode.ErrStoreUnavailable, "vector store unavailable")
	case errors.Is(err, appErr.ErrEmbeddingProvider), errors.Is(err, appErr.ErrGenerationProvider):
		response.Error(c, http.StatusBadGateway, errcode.ErrProviderUnavailable, "provider unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}
