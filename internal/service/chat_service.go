package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

const defaultTopK = 3

type Generator interface {
	Answer(ctx context.Context, contextText, question string, fn ai.TokenFunc) error
}

type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Token is one streamed piece of an answer. A Token with Err set is the last
// value on the channel.
type Token struct {
	Text string
	Err  error
}

// Answer carries citations and the token stream. When Err is set there is
// no stream and Tokens is nil.
type Answer struct {
	Sources []model.Source
	Tokens  <-chan Token
	Err     error
}

type ChatOptions struct {
	TopK int
	// IncludeShared also retrieves chunks of model.SharedTenant and merges
	// them by score with the caller's own chunks.
	IncludeShared bool
}

type ChatService struct {
	embedder  QueryEmbedder
	store     vectorstore.Store
	generator Generator
	opts      ChatOptions
}

func NewChatService(embedder QueryEmbedder, store vectorstore.Store, generator Generator, opts ChatOptions) *ChatService {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	return &ChatService{
		embedder:  embedder,
		store:     store,
		generator: generator,
		opts:      opts,
	}
}

// Ask answers the content of the last message.
func (s *ChatService) Ask(ctx context.Context, messages []model.ChatMessage, userID string) *Answer {
	if len(messages) == 0 {
		return &Answer{Err: fmt.Errorf("no messages provided: %w", appErr.ErrInvalid)}
	}
	return s.Answer(ctx, messages[len(messages)-1].Content, userID)
}

// Answer retrieves the caller's top chunks and streams a grounded reply.
// Cancelling ctx stops generation.
func (s *ChatService) Answer(ctx context.Context, question, userID string) *Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		return &Answer{Err: fmt.Errorf("question is empty: %w", appErr.ErrInvalid)}
	}
	if strings.TrimSpace(userID) == "" {
		return &Answer{Err: fmt.Errorf("user id is empty: %w", appErr.ErrInvalid)}
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID))
	results, err := s.Retrieve(ctx, question, userID)
	if err != nil {
		logger.Error("retrieve context failed", zap.Error(err))
		return &Answer{Err: err}
	}
	contextText, sources := BuildContext(results)
	logger.Debug("context retrieved", zap.Int("chunks", len(results)))

	tokens := make(chan Token, 16)
	go func() {
		defer close(tokens)
		err := s.generator.Answer(ctx, contextText, question, func(token string) error {
			select {
			case tokens <- Token{Text: token}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case tokens <- Token{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	// Wait for the first event so a generation that fails before producing
	// anything is reported as an error instead of an empty stream.
	var first Token
	var ok bool
	select {
	case first, ok = <-tokens:
	case <-ctx.Done():
		return &Answer{Err: ctx.Err()}
	}
	if !ok {
		closed := make(chan Token)
		close(closed)
		return &Answer{Sources: sources, Tokens: closed}
	}
	if first.Err != nil {
		logger.Error("generation failed", zap.Error(first.Err))
		return &Answer{Err: fmt.Errorf("generation failed: %w", first.Err)}
	}
	out := make(chan Token)
	go func() {
		defer close(out)
		select {
		case out <- first:
		case <-ctx.Done():
			return
		}
		for tok := range tokens {
			select {
			case out <- tok:
			case <-ctx.Done():
				return
			}
		}
	}()
	return &Answer{Sources: sources, Tokens: out}
}

// Retrieve returns the top chunks for question that belong to userID, merged
// with shared chunks when enabled.
func (s *ChatService) Retrieve(ctx context.Context, question, userID string) ([]model.SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		if errors.Is(err, appErr.ErrInvalid) {
			return nil, err
		}
		return nil, fmt.Errorf("embed question: %w: %w", appErr.ErrEmbeddingUnavailable, err)
	}
	results, err := s.store.Search(ctx, vec, s.opts.TopK, map[string]string{model.MetaUserID: userID})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if !s.opts.IncludeShared || userID == model.SharedTenant {
		return results, nil
	}
	shared, err := s.store.Search(ctx, vec, s.opts.TopK, map[string]string{model.MetaUserID: model.SharedTenant})
	if err != nil {
		return nil, fmt.Errorf("search shared chunks: %w", err)
	}
	return mergeResults(results, shared, s.opts.TopK), nil
}

func mergeResults(own, shared []model.SearchResult, k int) []model.SearchResult {
	merged := make([]model.SearchResult, 0, len(own)+len(shared))
	merged = append(merged, own...)
	merged = append(merged, shared...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

// BuildContext joins chunk texts with blank lines in rank order and lists one
// source per chunk. Duplicated sources are kept.
func BuildContext(results []model.SearchResult) (string, []model.Source) {
	texts := make([]string, 0, len(results))
	sources := make([]model.Source, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Chunk.Text)
		source := r.Chunk.Metadata.Source
		if source == "" {
			source = "unknown"
		}
		sources = append(sources, model.Source{Source: source})
	}
	return strings.Join(texts, "\n\n"), sources
}
