package handler

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

// handleError writes the error envelope. The message names the stage that
// failed; fallback is used for errors without a dedicated code.
func handleError(c *gin.Context, stage string, fallback int, err error) {
	requestID, _ := c.Get(middleware.ContextRequestIDKey)
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.String("stage", stage),
		zap.Error(err),
	)
	var storageErr *appErr.StorageError
	switch {
	case errors.As(err, &storageErr):
		response.Error(c, errcode.ErrStorage, fmt.Sprintf("storage: persisted %d/%d chunks: %v",
			storageErr.Persisted, storageErr.Total, storageErr.Err))
	case errors.Is(err, appErr.ErrUnsupportedFile):
		response.StageError(c, errcode.ErrInvalidFile, stage, err)
	case errors.Is(err, appErr.ErrInvalid):
		response.StageError(c, errcode.ErrInvalid, stage, err)
	case errors.Is(err, appErr.ErrEmbeddingUnavailable):
		response.StageError(c, errcode.ErrEmbeddingUnavailable, "embedding", err)
	case errors.Is(err, appErr.ErrUnavailable):
		response.StageError(c, errcode.ErrAIUnavailable, "generation", err)
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	default:
		response.StageError(c, fallback, stage, err)
	}
}
