package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const answerSystemPrompt = `You are a helpful assistant. Use the following context to answer the user's question.
If the answer is not in the context, say so.

Context:
%s`

type ProviderConfig struct {
	Name string
	Type string
	Data interface{}
}

type ManagerConfig struct {
	Providers      []ProviderConfig
	Embed          []string
	Chat           []string
	Temperature    float64
	Timeout        int
	EmbedBatchSize int
}

type Manager struct {
	embedder IEmbedder
	streamer IStreamer
	cfg      ManagerConfig
}

func NewManager(embedder IEmbedder, streamer IStreamer, cfg ManagerConfig) *Manager {
	return &Manager{
		embedder: embedder,
		streamer: streamer,
		cfg:      cfg,
	}
}

// Build resolves the "provider:model" references of cfg into a fallback
// embedder and a fallback streamer. Either may be nil when not configured.
func Build(cfg ManagerConfig) (IEmbedder, IStreamer, error) {
	chatProviders := make(map[string]IChatProvider)
	embedProviders := make(map[string]IEmbedProvider)
	for _, pc := range cfg.Providers {
		name := strings.TrimSpace(pc.Name)
		if name == "" {
			name = pc.Type
		}
		if SupportsChat(pc.Type) {
			p, err := NewChatProvider(pc.Type, pc.Data)
			if err != nil {
				return nil, nil, fmt.Errorf("init chat provider %s: %w", name, err)
			}
			chatProviders[name] = p
		}
		if SupportsEmbed(pc.Type) {
			p, err := NewEmbedProvider(pc.Type, pc.Data)
			if err != nil {
				return nil, nil, fmt.Errorf("init embed provider %s: %w", name, err)
			}
			embedProviders[name] = p
		}
		if !SupportsChat(pc.Type) && !SupportsEmbed(pc.Type) {
			return nil, nil, fmt.Errorf("unsupported ai provider type: %s", pc.Type)
		}
	}

	var embedEntries []EmbedderEntry
	for _, ref := range cfg.Embed {
		name, model, err := splitRef(ref)
		if err != nil {
			return nil, nil, err
		}
		p, ok := embedProviders[name]
		if !ok {
			return nil, nil, fmt.Errorf("embed provider %s not found", name)
		}
		embedEntries = append(embedEntries, EmbedderEntry{Name: ref, Embedder: NewEmbedder(p, model, cfg.EmbedBatchSize)})
	}
	var chatEntries []StreamerEntry
	for _, ref := range cfg.Chat {
		name, model, err := splitRef(ref)
		if err != nil {
			return nil, nil, err
		}
		p, ok := chatProviders[name]
		if !ok {
			return nil, nil, fmt.Errorf("chat provider %s not found", name)
		}
		chatEntries = append(chatEntries, StreamerEntry{Name: ref, Streamer: NewStreamer(p, model)})
	}
	return NewGroupEmbedder(embedEntries), NewGroupStreamer(chatEntries), nil
}

// splitRef splits "provider:model" on the first colon; model names such as
// "gpt-oss:20b-cloud" keep their own colons.
func splitRef(ref string) (string, string, error) {
	idx := strings.Index(ref, ":")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", fmt.Errorf("invalid model reference %q, want provider:model", ref)
	}
	return strings.TrimSpace(ref[:idx]), strings.TrimSpace(ref[idx+1:]), nil
}

func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", ErrUnavailable)
	}
	return m.embedder.Embed(ctx, text)
}

func (m *Manager) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", ErrUnavailable)
	}
	return m.embedder.EmbedBatch(ctx, texts)
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// Answer streams a reply to question grounded on contextText.
func (m *Manager) Answer(ctx context.Context, contextText, question string, fn TokenFunc) error {
	if m.streamer == nil {
		return fmt.Errorf("streamer not configured: %w", ErrUnavailable)
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	req := ChatRequest{
		System:      fmt.Sprintf(answerSystemPrompt, contextText),
		Prompt:      question,
		Temperature: m.cfg.Temperature,
	}
	return m.streamer.Stream(ctx, req, fn)
}
