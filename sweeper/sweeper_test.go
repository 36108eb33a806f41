package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finwise/api/models"
	"finwise/api/subscription"
)

type fakeStore struct {
	candidates []string
	applied    []string
	failFor    map[string]bool
}

func (f *fakeStore) ListPeriodEndCandidates(_ context.Context, _ time.Time) ([]string, error) {
	return f.candidates, nil
}

func (f *fakeStore) ApplyTransition(_ context.Context, userID string, in subscription.Input) (*models.Subscription, error) {
	if f.failFor[userID] {
		return nil, assert.AnError
	}
	f.applied = append(f.applied, userID)
	return &models.Subscription{UserID: userID, PlanType: models.PlanFree, Status: models.StatusActive}, nil
}

func TestRunOnce(t *testing.T) {
	store := &fakeStore{candidates: []string{"u1", "u2", "u3"}}
	s := New(store, time.Hour)

	swept, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, swept)
	assert.Equal(t, []string{"u1", "u2", "u3"}, store.applied)
}

// One failing record must not abort the rest of the sweep.
func TestRunOnceContinuesPastFailures(t *testing.T) {
	store := &fakeStore{
		candidates: []string{"u1", "u2", "u3"},
		failFor:    map[string]bool{"u2": true},
	}
	s := New(store, time.Hour)

	swept, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, swept)
	assert.Equal(t, []string{"u1", "u3"}, store.applied)
}

func TestStartStop(t *testing.T) {
	store := &fakeStore{}
	s := New(store, 10*time.Millisecond)

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()
}
