package maintenance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

const testUserUID = "11111111-1111-1111-1111-111111111111"

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func timep(v time.Time) *time.Time { return &v }

func newTestService() (*Service, *MockStore, *MockTx, *MockCache, *MockNotifier) {
	tx := new(MockTx)
	store := &MockStore{Tx: tx}
	cache := new(MockCache)
	notifier := new(MockNotifier)
	svc := New(store, cache, notifier, newNoopLogger(), 3)
	return svc, store, tx, cache, notifier
}

func expectEmptyPasses(store *MockStore, skip string) {
	if skip != "subscriptions" {
		store.On("FindExpiredSubscriptions", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	}
	if skip != "trials" {
		store.On("FindTrialsExpiringWithin", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	}
	if skip != "promotions" {
		store.On("FindExpiredActivePromotionIDs", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	}
	if skip != "grants" {
		store.On("FindExpiredActivePendingGrantIDs", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	}
}

func TestService_RunOnce_FinalizesExpiredSubscriptions(t *testing.T) {
	svc, store, tx, cache, notifier := newTestService()
	now := time.Now().UTC()

	endsAt := now.AddDate(0, 0, -1)
	sub := &models.Subscription{
		UserUID:               testUserUID,
		Email:                 "user@example.com",
		Status:                models.SubscriptionActive,
		CurrentPeriodStartsAt: timep(now.AddDate(0, -1, 0)),
		CurrentPeriodEndsAt:   &endsAt,
	}

	expectEmptyPasses(store, "subscriptions")
	store.On("FindExpiredSubscriptions", mock.Anything, mock.Anything, 500).Return([]string{testUserUID}, nil).Once()
	store.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	tx.On("GetSubscriptionForUpdate", mock.Anything, testUserUID).Return(sub, nil).Once()
	// Момент завершения равен границе окна, а не времени прохода.
	tx.On("MarkSubscriptionEnded", mock.Anything, testUserUID, endsAt).Return(true, nil).Once()
	tx.On("AppendEvent", mock.Anything, mock.MatchedBy(func(ev *models.BillingEvent) bool {
		return ev.Type == models.EventSubscriptionEnded && ev.Source == models.EventSourceMaintenance
	})).Return(nil).Once()
	cache.On("InvalidateUser", testUserUID).Return(nil).Once()
	notifier.On("PublishNotification", mock.MatchedBy(func(n models.Notification) bool {
		return n.Kind == models.NotifySubscriptionEnded && n.Email == "user@example.com"
	})).Return(nil).Once()

	stats, err := svc.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.EndedSubscriptions)
	assert.Equal(t, 1, stats.Total())
	tx.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestService_RunOnce_SkipsConcurrentlyEndedSubscription(t *testing.T) {
	svc, store, tx, cache, notifier := newTestService()
	now := time.Now().UTC()

	endsAt := now.AddDate(0, 0, -1)
	sub := &models.Subscription{
		UserUID:             testUserUID,
		Status:              models.SubscriptionActive,
		CurrentPeriodEndsAt: &endsAt,
	}

	expectEmptyPasses(store, "subscriptions")
	store.On("FindExpiredSubscriptions", mock.Anything, mock.Anything, mock.Anything).Return([]string{testUserUID}, nil).Once()
	store.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	tx.On("GetSubscriptionForUpdate", mock.Anything, testUserUID).Return(sub, nil).Once()
	tx.On("MarkSubscriptionEnded", mock.Anything, testUserUID, endsAt).Return(false, nil).Once()

	stats, err := svc.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, stats.EndedSubscriptions)
	tx.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "InvalidateUser", mock.Anything)
	notifier.AssertNotCalled(t, "PublishNotification", mock.Anything)
}

func TestService_RunOnce_NotifiesExpiringTrialsOnce(t *testing.T) {
	svc, store, tx, _, notifier := newTestService()
	now := time.Now().UTC()

	trialEndsAt := now.AddDate(0, 0, 2)
	subs := []*models.Subscription{
		{
			UserUID:     testUserUID,
			Email:       "user@example.com",
			Status:      models.SubscriptionTrialing,
			TrialEndsAt: &trialEndsAt,
		},
		{
			UserUID:     "33333333-3333-3333-3333-333333333333",
			Email:       "other@example.com",
			Status:      models.SubscriptionTrialing,
			TrialEndsAt: &trialEndsAt,
		},
	}

	expectEmptyPasses(store, "trials")
	store.On("FindTrialsExpiringWithin", mock.Anything, mock.Anything, 3*24*time.Hour).Return(subs, nil).Once()
	store.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	// Первый маркер вставился, второй уже был записан прошлым проходом.
	tx.On("AppendEventIdempotent", mock.Anything, mock.MatchedBy(func(ev *models.BillingEvent) bool {
		return ev.Type == models.EventTrialExpiringSoonNotified &&
			ev.ExternalEventID != nil && *ev.ExternalEventID == "trial_expiring_soon_notified:"+testUserUID
	})).Return(true, nil).Once()
	tx.On("AppendEventIdempotent", mock.Anything, mock.Anything).Return(false, nil).Once()
	notifier.On("PublishNotification", mock.MatchedBy(func(n models.Notification) bool {
		return n.Kind == models.NotifyTrialExpiringSoon && n.UserUID == testUserUID
	})).Return(nil).Once()

	stats, err := svc.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.TrialNoticesSent)
	notifier.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestService_RunOnce_DisablesExpiredPromotionsAndGrants(t *testing.T) {
	svc, store, tx, _, _ := newTestService()

	store.On("FindExpiredSubscriptions", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	store.On("FindTrialsExpiringWithin", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	store.On("FindExpiredActivePromotionIDs", mock.Anything, mock.Anything, mock.Anything).Return([]int64{7, 8}, nil).Once()
	store.On("FindExpiredActivePendingGrantIDs", mock.Anything, mock.Anything, mock.Anything).Return([]int64{9}, nil).Once()
	store.On("WithTx", mock.Anything, mock.Anything).Return(nil)

	tx.On("SetPromotionActive", mock.Anything, int64(7), false).Return(true, nil).Once()
	// Промоакцию 8 успел отключить параллельный проход.
	tx.On("SetPromotionActive", mock.Anything, int64(8), false).Return(false, nil).Once()
	tx.On("SetPendingGrantActive", mock.Anything, int64(9), false).Return(true, nil).Once()
	tx.On("AppendEvent", mock.Anything, mock.MatchedBy(func(ev *models.BillingEvent) bool {
		return ev.Type == models.EventPromotionDisabled && ev.EntityID == "7"
	})).Return(nil).Once()
	tx.On("AppendEvent", mock.Anything, mock.MatchedBy(func(ev *models.BillingEvent) bool {
		return ev.Type == models.EventPendingGrantDisabled && ev.EntityID == "9"
	})).Return(nil).Once()

	stats, err := svc.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.DisabledPromotions)
	assert.Equal(t, 1, stats.DisabledPendingGrants)
	tx.AssertExpectations(t)
}

func TestService_RunOnce_RowFailureDoesNotAbortPass(t *testing.T) {
	svc, store, tx, cache, notifier := newTestService()
	now := time.Now().UTC()

	endsAt := now.AddDate(0, 0, -1)
	goodUID := "33333333-3333-3333-3333-333333333333"
	goodSub := &models.Subscription{
		UserUID:             goodUID,
		Status:              models.SubscriptionActive,
		CurrentPeriodEndsAt: &endsAt,
	}

	expectEmptyPasses(store, "subscriptions")
	store.On("FindExpiredSubscriptions", mock.Anything, mock.Anything, mock.Anything).
		Return([]string{testUserUID, goodUID}, nil).Once()
	store.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	tx.On("GetSubscriptionForUpdate", mock.Anything, testUserUID).Return(nil, assert.AnError).Once()
	tx.On("GetSubscriptionForUpdate", mock.Anything, goodUID).Return(goodSub, nil).Once()
	tx.On("MarkSubscriptionEnded", mock.Anything, goodUID, endsAt).Return(true, nil).Once()
	tx.On("AppendEvent", mock.Anything, mock.Anything).Return(nil).Once()
	cache.On("InvalidateUser", goodUID).Return(nil).Once()
	notifier.On("PublishNotification", mock.Anything).Return(nil).Once()

	stats, err := svc.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.EndedSubscriptions)
	tx.AssertExpectations(t)
}
