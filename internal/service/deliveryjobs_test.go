package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeliveryFixture(t *testing.T) (*testEnv, *DeliveryService, *fakeMailer, *fakeCapacities) {
	t.Helper()
	env := newTestEnv(t)
	mailer := &fakeMailer{failFor: map[string]bool{}}
	capacities := &fakeCapacities{}
	reflection := newReflectionService(env)
	svc := NewDeliveryService(env.store, env.kvStore, reflection, mailer, capacities, env.logger)
	return env, svc, mailer, capacities
}

func seedReader(t *testing.T, env *testEnv, userID string) {
	t.Helper()
	env.seedUser(t, userID)
	src := env.seedSource(t, userID, "Walden by "+userID)
	env.seedQuote(t, userID, src.ID, "Simplify, simplify.")
}

func TestDeliveryService_RunDailyEmailDelivers(t *testing.T) {
	env, svc, mailer, _ := newDeliveryFixture(t)
	ctx := context.Background()
	seedReader(t, env, "user-1")
	seedReader(t, env, "user-2")

	report, err := svc.RunDailyEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, mailer.sent, 2)
	assert.Contains(t, mailer.sent[0].Quote, "Simplify")
}

func TestDeliveryService_SkipsWhenReflectionExists(t *testing.T) {
	env, svc, mailer, _ := newDeliveryFixture(t)
	ctx := context.Background()
	seedReader(t, env, "user-1")

	// Any earlier reflection for the day, from any channel or from the app
	// itself, marks the day as served.
	reflection := newReflectionService(env)
	_, err := reflection.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	report, err := svc.RunDailyEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Delivered)
	assert.Empty(t, mailer.sent)
}

func TestDeliveryService_EmailFailureIsolated(t *testing.T) {
	env, svc, mailer, _ := newDeliveryFixture(t)
	ctx := context.Background()
	seedReader(t, env, "user-1")
	seedReader(t, env, "user-2")
	mailer.failFor["user-1@example.com"] = true

	report, err := svc.RunDailyEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "user-2@example.com", mailer.sent[0].To)
}

func TestDeliveryService_EmailSkipsEmptyLibraries(t *testing.T) {
	env, svc, mailer, _ := newDeliveryFixture(t)
	env.seedUser(t, "user-1") // no quotes

	report, err := svc.RunDailyEmail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, mailer.sent)
}

func connectCapacities(t *testing.T, env *testEnv, userID string, premium bool) {
	t.Helper()
	profiles := NewProfileService(env.store, env.kvStore, nil, nil, env.validator, env.logger)
	_, err := profiles.ConnectCapacities(context.Background(), userID, ConnectCapacitiesRequest{
		APIKey:  "cap-key-" + userID,
		SpaceID: "space-" + userID,
	})
	require.NoError(t, err)

	profile := env.mustProfile(t, userID)
	profile.Premium = premium
	env.updateProfile(t, profile)
}

func TestDeliveryService_RunCapacitiesDelivers(t *testing.T) {
	env, svc, _, capacities := newDeliveryFixture(t)
	ctx := context.Background()
	seedReader(t, env, "user-1")
	connectCapacities(t, env, "user-1", true)

	report, err := svc.RunCapacities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)
	require.Len(t, capacities.saved, 1)
	// The stored key round-trips through encryption back to plaintext.
	assert.Equal(t, "cap-key-user-1", capacities.saved[0].APIKey)
	assert.Equal(t, "space-user-1", capacities.saved[0].SpaceID)
	assert.Contains(t, capacities.saved[0].Markdown, "> Simplify, simplify.")
	assert.Contains(t, capacities.saved[0].Markdown, "**Walden by user-1**")
}

func TestDeliveryService_CapacitiesRequiresPremium(t *testing.T) {
	env, svc, _, capacities := newDeliveryFixture(t)
	seedReader(t, env, "user-1")
	connectCapacities(t, env, "user-1", false)

	report, err := svc.RunCapacities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, capacities.saved)
}

func TestDeliveryService_CapacitiesSharedSkipFlag(t *testing.T) {
	env, svc, mailer, capacities := newDeliveryFixture(t)
	ctx := context.Background()
	seedReader(t, env, "user-1")
	connectCapacities(t, env, "user-1", true)

	// The email job runs first and creates the reflection; the Capacities
	// job then sees the day already served and skips the user entirely.
	emailReport, err := svc.RunDailyEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, emailReport.Delivered)
	require.Len(t, mailer.sent, 1)

	capReport, err := svc.RunCapacities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, capReport.Skipped)
	assert.Empty(t, capacities.saved)
}
