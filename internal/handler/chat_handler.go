package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/pkg/errcode"
	"github.com/xxxsen/mrag/internal/pkg/response"
	"github.com/xxxsen/mrag/internal/service"
)

const headerSources = "X-Sources"

type Asker interface {
	Ask(ctx context.Context, messages []model.ChatMessage, userID string) *service.Answer
}

type ChatHandler struct {
	chat Asker
}

func NewChatHandler(chat Asker) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Messages []model.ChatMessage `json:"messages"`
}

// Chat streams the answer as plain text. Citations travel in the X-Sources
// header as base64 encoded JSON because the body is the token stream.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	ctx := c.Request.Context()
	ans := h.chat.Ask(ctx, req.Messages, getUserID(c))
	if ans.Err != nil {
		handleError(c, "chat", errcode.ErrChatFailed, ans.Err)
		return
	}
	sources, err := EncodeSources(ans.Sources)
	if err != nil {
		handleError(c, "chat", errcode.ErrChatFailed, err)
		return
	}
	c.Header(headerSources, sources)
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	written := 0
	for tok := range ans.Tokens {
		if tok.Err != nil {
			logutil.GetLogger(ctx).Error("chat stream interrupted",
				zap.String("user_id", getUserID(c)), zap.Int("bytes", written), zap.Error(tok.Err))
			return
		}
		n, err := io.WriteString(c.Writer, tok.Text)
		written += n
		if err != nil {
			logutil.GetLogger(ctx).Debug("client went away", zap.Error(err))
			return
		}
		c.Writer.Flush()
	}
}

func EncodeSources(sources []model.Source) (string, error) {
	if sources == nil {
		sources = []model.Source{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func DecodeSources(value string) ([]model.Source, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	var out []model.Source
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
