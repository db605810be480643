package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unearthedapp/unearthed-server/internal/ai"
	"github.com/unearthedapp/unearthed-server/internal/config"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/store"
	"github.com/unearthedapp/unearthed-server/internal/validation"
)

// ChatClient is the LLM transport used by the AI features.
type ChatClient interface {
	Chat(ctx context.Context, messages []ai.Message) (string, ai.Usage, error)
}

// AIService implements the premium AI features: chatting with a book's
// highlights, blind-spot analysis, and reading recommendations. Every call
// is entitlement-gated and metered against per-user token quotas.
type AIService struct {
	store     store.Store
	client    ChatClient
	cfg       config.AIConfig
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAIService creates an AI service.
func NewAIService(st store.Store, client ChatClient, cfg config.AIConfig, validator *validation.Validator, logger *slog.Logger) *AIService {
	return &AIService{store: st, client: client, cfg: cfg, validator: validator, logger: logger}
}

// ChatRequest asks a question against one source's highlights.
type ChatRequest struct {
	SourceID string `json:"source_id" validate:"required"`
	Message  string `json:"message" validate:"required,max=4000"`
}

// AIResponse is the answer plus the metered usage of the call.
type AIResponse struct {
	Reply string   `json:"reply"`
	Usage ai.Usage `json:"usage"`
}

// Chat answers a question about a source using the caller's own highlights
// as context. Notes stay out of the prompt; only quote content is sent.
func (s *AIService) Chat(ctx context.Context, caller domain.Caller, req ChatRequest) (*AIResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	profile, err := s.gate(ctx, caller)
	if err != nil {
		return nil, err
	}

	source, err := s.store.GetSource(ctx, caller.UserID, req.SourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("source not found")
		}
		return nil, err
	}
	quotes, err := s.store.ListQuotesBySource(ctx, caller.UserID, req.SourceID)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}

	var contextText strings.Builder
	for _, q := range quotes {
		contextText.WriteString("- " + q.Content + "\n")
	}

	messages := []ai.Message{
		{Role: "system", Content: fmt.Sprintf(
			"You are a reading companion. The user is asking about %q%s. Ground your answers in their highlights:\n%s",
			source.Title, byAuthor(source.Author), contextText.String(),
		)},
		{Role: "user", Content: req.Message},
	}
	return s.complete(ctx, profile, messages)
}

// BlindSpots surveys the user's library and names the perspectives it lacks.
func (s *AIService) BlindSpots(ctx context.Context, caller domain.Caller) (*AIResponse, error) {
	profile, err := s.gate(ctx, caller)
	if err != nil {
		return nil, err
	}

	library, err := s.libraryOverview(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	messages := []ai.Message{
		{Role: "system", Content: "You analyze reading libraries and point out blind spots: topics, eras, and perspectives the reader has not engaged with. Be specific and concise."},
		{Role: "user", Content: "My library:\n" + library},
	}
	return s.complete(ctx, profile, messages)
}

// Recommendations suggests what to read next based on the user's library.
func (s *AIService) Recommendations(ctx context.Context, caller domain.Caller) (*AIResponse, error) {
	profile, err := s.gate(ctx, caller)
	if err != nil {
		return nil, err
	}

	library, err := s.libraryOverview(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	messages := []ai.Message{
		{Role: "system", Content: "You recommend books. Suggest five titles that extend the reader's existing interests, each with one sentence of reasoning."},
		{Role: "user", Content: "My library:\n" + library},
	}
	return s.complete(ctx, profile, messages)
}

// gate enforces the premium entitlement and the token quotas. Both fail
// closed: no profile, no premium, or an exhausted quota all reject the call
// before any tokens are spent.
func (s *AIService) gate(ctx context.Context, caller domain.Caller) (*domain.Profile, error) {
	if !caller.IsUser() {
		return nil, domainerrors.Forbidden("ai features require a user session")
	}
	profile, err := s.store.GetProfile(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Forbidden("ai features require a premium subscription")
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !profile.Premium {
		return nil, domainerrors.Forbidden("ai features require a premium subscription")
	}
	if profile.AIInputTokensUsed >= s.cfg.InputTokenQuota || profile.AIOutputTokensUsed >= s.cfg.OutputTokenQuota {
		return nil, domainerrors.QuotaExceeded("ai token quota exhausted")
	}
	return profile, nil
}

func (s *AIService) complete(ctx context.Context, profile *domain.Profile, messages []ai.Message) (*AIResponse, error) {
	reply, usage, err := s.client.Chat(ctx, messages)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUpstream, "ai completion failed")
	}

	profile.AIInputTokensUsed += usage.PromptTokens
	profile.AIOutputTokensUsed += usage.CompletionTokens
	profile.Touch()
	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		s.logger.Error("record ai usage failed", "user_id", profile.UserID, "error", err)
	}

	return &AIResponse{Reply: reply, Usage: usage}, nil
}

func (s *AIService) libraryOverview(ctx context.Context, userID string) (string, error) {
	sources, err := s.store.ListSources(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		return "", domainerrors.Validation("library is empty")
	}

	var b strings.Builder
	for _, src := range sources {
		if src.Ignored {
			continue
		}
		b.WriteString("- " + src.Title + byAuthor(src.Author) + "\n")
	}
	return b.String(), nil
}

func byAuthor(author string) string {
	if author == "" {
		return ""
	}
	return " by " + author
}
