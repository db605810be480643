package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	domainerrors "github.com/unearthedapp/unearthed-server/internal/errors"
	"github.com/unearthedapp/unearthed-server/internal/id"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

// ReflectionService selects and serves the daily reflection: one random
// active quote per user per logical day. The day pointer is written with
// skip-on-conflict semantics and re-read, so concurrent callers all converge
// on the same winner without any locking here.
type ReflectionService struct {
	store   store.Store
	kvStore *kv.Store
	logger  *slog.Logger

	// now is swappable for day-boundary tests.
	now func() time.Time
}

// NewReflectionService creates a reflection service.
func NewReflectionService(st store.Store, kvStore *kv.Store, logger *slog.Logger) *ReflectionService {
	return &ReflectionService{store: st, kvStore: kvStore, logger: logger, now: time.Now}
}

// GetOrCreate returns the user's reflection for their current logical day,
// selecting one first if none exists. A nil reflection with a nil error means
// the user has nothing to reflect on: no active quotes, or a winner whose
// source has since been ignored.
func (s *ReflectionService) GetOrCreate(ctx context.Context, userID string) (*domain.Reflection, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("profile not found")
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	day := profile.Day(s.now())

	existing, err := s.store.GetDailyQuote(ctx, userID, day)
	if err == nil {
		reflection, err := s.load(ctx, userID, existing.QuoteID)
		if err != nil {
			return nil, err
		}
		// The winner's source may have been ignored after selection. The
		// day pointer stays put, but its quote no longer surfaces anywhere.
		if reflection.Source.Ignored {
			return nil, nil
		}
		return reflection, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load daily quote: %w", err)
	}

	candidates, err := s.store.ListActiveQuotes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	pick := candidates[rand.IntN(len(candidates))]

	dqID, err := id.Generate(id.PrefixDaily)
	if err != nil {
		return nil, fmt.Errorf("generate daily quote ID: %w", err)
	}
	dq := &domain.DailyQuote{
		ID:        dqID,
		UserID:    userID,
		Day:       day,
		QuoteID:   pick.ID,
		CreatedAt: s.now(),
	}
	// A concurrent caller may win the day. The insert is silently dropped on
	// conflict, so always re-read and serve the stored winner.
	if err := s.store.CreateDailyQuote(ctx, dq); err != nil {
		return nil, fmt.Errorf("create daily quote: %w", err)
	}
	winner, err := s.store.GetDailyQuote(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("re-read daily quote: %w", err)
	}

	s.logger.Info("daily reflection selected", "user_id", userID, "day", day, "quote_id", winner.QuoteID)
	return s.load(ctx, userID, winner.QuoteID)
}

// Peek reports whether the user already has a reflection for their current
// logical day, without creating one.
func (s *ReflectionService) Peek(ctx context.Context, userID string) (bool, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	return s.store.HasDailyQuote(ctx, userID, profile.Day(s.now()))
}

// load assembles the reflection payload: quote with decrypted note plus its
// source. Decryption failures are fatal for the request; corrupt ciphertext
// must surface, not degrade to an empty note.
func (s *ReflectionService) load(ctx context.Context, userID, quoteID string) (*domain.Reflection, error) {
	quote, err := s.store.GetQuote(ctx, userID, quoteID)
	if err != nil {
		return nil, fmt.Errorf("load quote: %w", err)
	}
	source, err := s.store.GetSource(ctx, userID, quote.SourceID)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}

	if quote.NoteEnc != "" {
		encKey, err := s.kvStore.EncryptionKey(userID)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				return nil, domainerrors.Configuration("no encryption key provisioned for user")
			}
			return nil, fmt.Errorf("load encryption key: %w", err)
		}
		note, err := crypto.Decrypt(quote.NoteEnc, encKey)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decrypt note")
		}
		quote.Note = note
	}

	return &domain.Reflection{Source: source, Quote: quote}, nil
}
