package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	"github.com/xxxsen/mrag/internal/pkg/response"
)

type Ingester interface {
	Ingest(ctx context.Context, req model.IngestRequest) (*model.IngestResult, error)
	IngestFile(ctx context.Context, filename, contentType string, data []byte, userID string) (int, error)
}

type IngestHandler struct {
	ingest         Ingester
	maxUploadBytes int64
}

func NewIngestHandler(ingest Ingester, maxUploadBytes int64) *IngestHandler {
	return &IngestHandler{ingest: ingest, maxUploadBytes: maxUploadBytes}
}

type ingestTextRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

type ingestResponse struct {
	Kind    model.IngestKind      `json:"kind"`
	Chunks  int                   `json:"chunks"`
	Source  string                `json:"source,omitempty"`
	Message string                `json:"message,omitempty"`
	Profile *model.ProfileSummary `json:"profile,omitempty"`
}

func (h *IngestHandler) IngestText(c *gin.Context) {
	var req ingestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	res, err := h.ingest.Ingest(c.Request.Context(), model.IngestRequest{
		Text:   req.Text,
		Source: req.Source,
		UserID: getUserID(c),
	})
	if err != nil {
		handleError(c, "ingest", errcode.ErrIngestFailed, err)
		return
	}
	response.Success(c, ingestResponse{
		Kind:    res.Kind,
		Chunks:  res.Chunks,
		Source:  res.Source,
		Message: ingestMessage(res),
		Profile: res.Profile,
	})
}

func ingestMessage(res *model.IngestResult) string {
	switch res.Kind {
	case model.IngestKindProfile:
		if res.Profile != nil && res.Profile.Degraded() {
			return "Profile stored with partial data"
		}
		return "Profile analyzed and stored"
	case model.IngestKindRepo:
		return fmt.Sprintf("Repository ingested as %d chunks", res.Chunks)
	}
	return fmt.Sprintf("Text ingested as %d chunks", res.Chunks)
}

func (h *IngestHandler) IngestFile(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	file, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			response.Error(c, errcode.ErrInvalidFile, "file exceeds "+formatUploadLimit(h.maxUploadBytes))
			return
		}
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		response.Error(c, errcode.ErrInvalidFile, "file exceeds "+formatUploadLimit(h.maxUploadBytes))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to read file")
		return
	}
	n, err := h.ingest.IngestFile(c.Request.Context(), file.Filename, file.Header.Get("Content-Type"), data, getUserID(c))
	if err != nil {
		handleError(c, "ingest", errcode.ErrUploadFailed, err)
		return
	}
	response.Success(c, ingestResponse{
		Kind:    model.IngestKindText,
		Chunks:  n,
		Source:  file.Filename,
		Message: fmt.Sprintf("File ingested as %d chunks", n),
	})
}
