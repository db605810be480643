package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
	"github.com/unearthedapp/unearthed-server/internal/delivery"
	"github.com/unearthedapp/unearthed-server/internal/domain"
	"github.com/unearthedapp/unearthed-server/internal/kv"
	"github.com/unearthedapp/unearthed-server/internal/store"
)

// Mailer sends daily reflection emails.
type Mailer interface {
	Configured() bool
	Send(ctx context.Context, email delivery.ReflectionEmail) error
}

// CapacitiesAPI pushes markdown into a Capacities daily note.
type CapacitiesAPI interface {
	SaveToDailyNote(ctx context.Context, apiKey, spaceID, markdown string) error
}

// RunReport is the outcome of one scheduled delivery run. Failed counts
// profiles whose delivery errored; the run itself still succeeds.
type RunReport struct {
	Processed int `json:"processed"`
	Delivered int `json:"delivered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// DeliveryService runs the scheduled per-channel fan-out jobs. One profile's
// failure never aborts the run; it is logged, counted, and skipped.
type DeliveryService struct {
	store      store.Store
	kvStore    *kv.Store
	reflection *ReflectionService
	mailer     Mailer
	capacities CapacitiesAPI
	logger     *slog.Logger

	now func() time.Time
}

// NewDeliveryService creates a delivery fan-out service.
func NewDeliveryService(
	st store.Store,
	kvStore *kv.Store,
	reflection *ReflectionService,
	mailer Mailer,
	capacities CapacitiesAPI,
	logger *slog.Logger,
) *DeliveryService {
	return &DeliveryService{
		store:      st,
		kvStore:    kvStore,
		reflection: reflection,
		mailer:     mailer,
		capacities: capacities,
		logger:     logger,
		now:        time.Now,
	}
}

// RunDailyEmail delivers the reflection email to every profile with the
// daily email enabled.
//
// A profile is skipped when its reflection for the day already exists, no
// matter which channel (or an interactive request) created it. The existence
// check is a single shared flag per day, so a user who already opened the app
// gets no email; that is a known limitation of the day pointer model.
func (s *DeliveryService) RunDailyEmail(ctx context.Context) (*RunReport, error) {
	if !s.mailer.Configured() {
		return nil, fmt.Errorf("smtp is not configured")
	}

	profiles, err := s.store.ListDailyEmailProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list email profiles: %w", err)
	}

	report := &RunReport{}
	for _, profile := range profiles {
		report.Processed++

		exists, err := s.store.HasDailyQuote(ctx, profile.UserID, profile.Day(s.now()))
		if err != nil {
			s.fail(report, "daily-email", profile.UserID, err)
			continue
		}
		if exists {
			report.Skipped++
			continue
		}

		reflection, err := s.reflection.GetOrCreate(ctx, profile.UserID)
		if err != nil {
			s.fail(report, "daily-email", profile.UserID, err)
			continue
		}
		if reflection == nil {
			report.Skipped++
			continue
		}

		user, err := s.store.GetUser(ctx, profile.UserID)
		if err != nil {
			s.fail(report, "daily-email", profile.UserID, err)
			continue
		}

		email := delivery.ReflectionEmail{
			To:          user.Email,
			Title:       reflection.Source.Title,
			Author:      reflection.Source.Author,
			Quote:       reflection.Quote.Content,
			Note:        reflection.Quote.Note,
			LogicalDate: profile.Day(s.now()),
		}
		if err := s.mailer.Send(ctx, email); err != nil {
			s.fail(report, "daily-email", profile.UserID, err)
			continue
		}
		report.Delivered++
	}

	s.logger.Info("daily email run complete",
		"processed", report.Processed,
		"delivered", report.Delivered,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

// RunCapacities pushes the reflection to the daily note of every premium
// profile with a Capacities connection. Non-premium profiles are skipped
// even when configured. The same shared existence check as the email job
// applies.
func (s *DeliveryService) RunCapacities(ctx context.Context) (*RunReport, error) {
	profiles, err := s.store.ListCapacitiesProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list capacities profiles: %w", err)
	}

	report := &RunReport{}
	for _, profile := range profiles {
		report.Processed++

		if !profile.Premium {
			report.Skipped++
			continue
		}

		exists, err := s.store.HasDailyQuote(ctx, profile.UserID, profile.Day(s.now()))
		if err != nil {
			s.fail(report, "capacities", profile.UserID, err)
			continue
		}
		if exists {
			report.Skipped++
			continue
		}

		apiKey, err := s.decryptCapacitiesKey(profile)
		if err != nil {
			s.fail(report, "capacities", profile.UserID, err)
			continue
		}

		reflection, err := s.reflection.GetOrCreate(ctx, profile.UserID)
		if err != nil {
			s.fail(report, "capacities", profile.UserID, err)
			continue
		}
		if reflection == nil {
			report.Skipped++
			continue
		}

		markdown := buildReflectionMarkdown(reflection)
		if err := s.capacities.SaveToDailyNote(ctx, apiKey, profile.CapacitiesSpaceID, markdown); err != nil {
			s.fail(report, "capacities", profile.UserID, err)
			continue
		}
		report.Delivered++
	}

	s.logger.Info("capacities run complete",
		"processed", report.Processed,
		"delivered", report.Delivered,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *DeliveryService) decryptCapacitiesKey(profile *domain.Profile) (string, error) {
	encKey, err := s.kvStore.EncryptionKey(profile.UserID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", fmt.Errorf("no encryption key provisioned")
		}
		return "", fmt.Errorf("load encryption key: %w", err)
	}
	apiKey, err := crypto.Decrypt(profile.CapacitiesAPIKeyEnc, encKey)
	if err != nil {
		return "", fmt.Errorf("decrypt capacities key: %w", err)
	}
	if apiKey == "" {
		return "", fmt.Errorf("capacities key is empty after decryption")
	}
	return apiKey, nil
}

func (s *DeliveryService) fail(report *RunReport, channel, userID string, err error) {
	report.Failed++
	s.logger.Error("delivery failed", "channel", channel, "user_id", userID, "error", err)
}

// buildReflectionMarkdown renders a reflection for markdown channels.
func buildReflectionMarkdown(r *domain.Reflection) string {
	var b strings.Builder
	b.WriteString("> " + strings.ReplaceAll(r.Quote.Content, "\n", "\n> ") + "\n\n")
	b.WriteString("**" + r.Source.Title + "**")
	if r.Source.Author != "" {
		b.WriteString(" by " + r.Source.Author)
	}
	b.WriteString("\n")
	if r.Quote.Note != "" {
		b.WriteString("\n" + r.Quote.Note + "\n")
	}
	return b.String()
}
