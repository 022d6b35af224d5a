package billing

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-engine/internal/lib/codehash"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage"
)

type MockStore struct {
	mock.Mock
	Tx storage.Tx
}

func (m *MockStore) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Tx)
}

func (m *MockStore) GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockStore) ListOverrides(ctx context.Context, userUID string, endsAfter time.Time) ([]*models.EntitlementOverride, error) {
	args := m.Called(ctx, userUID, endsAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EntitlementOverride), args.Error(1)
}

func (m *MockStore) FindExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]string, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) FindTrialsExpiringWithin(ctx context.Context, now time.Time, within time.Duration) ([]*models.Subscription, error) {
	args := m.Called(ctx, now, within)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockStore) FindExpiredActivePromotionIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockStore) FindExpiredActivePendingGrantIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockTx struct {
	mock.Mock
}

func (m *MockTx) LockUser(ctx context.Context, userUID string) error {
	args := m.Called(ctx, userUID)
	return args.Error(0)
}

func (m *MockTx) GetSubscriptionForUpdate(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockTx) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockTx) MarkSubscriptionEnded(ctx context.Context, userUID string, endedAt time.Time) (bool, error) {
	args := m.Called(ctx, userUID, endedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockTx) InsertTrialUse(ctx context.Context, userUID string) (bool, error) {
	args := m.Called(ctx, userUID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTx) InsertOverride(ctx context.Context, o *models.EntitlementOverride) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockTx) GetOverrideForUpdate(ctx context.Context, id int64) (*models.EntitlementOverride, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EntitlementOverride), args.Error(1)
}

func (m *MockTx) ListOverrides(ctx context.Context, userUID string, endsAfter time.Time) ([]*models.EntitlementOverride, error) {
	args := m.Called(ctx, userUID, endsAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EntitlementOverride), args.Error(1)
}

func (m *MockTx) ShortenOverride(ctx context.Context, id int64, endsAt time.Time) error {
	args := m.Called(ctx, id, endsAt)
	return args.Error(0)
}

func (m *MockTx) InsertPromotion(ctx context.Context, p *models.Promotion) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockTx) GetPromotionForUpdate(ctx context.Context, id int64) (*models.Promotion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Promotion), args.Error(1)
}

func (m *MockTx) GetPromotionByHashForUpdate(ctx context.Context, hashes []codehash.Hash) (*models.Promotion, error) {
	args := m.Called(ctx, hashes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Promotion), args.Error(1)
}

func (m *MockTx) SetPromotionActive(ctx context.Context, id int64, active bool) (bool, error) {
	args := m.Called(ctx, id, active)
	return args.Bool(0), args.Error(1)
}

func (m *MockTx) InsertPromotionRedemption(ctx context.Context, promotionID int64, userUID string) (bool, error) {
	args := m.Called(ctx, promotionID, userUID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTx) IncrementPromotionRedemptions(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTx) InsertPendingGrant(ctx context.Context, g *models.PendingEntitlementGrant) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *MockTx) GetPendingGrantForUpdate(ctx context.Context, id int64) (*models.PendingEntitlementGrant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingEntitlementGrant), args.Error(1)
}

func (m *MockTx) SetPendingGrantActive(ctx context.Context, id int64, active bool) (bool, error) {
	args := m.Called(ctx, id, active)
	return args.Bool(0), args.Error(1)
}

func (m *MockTx) ListClaimableGrantsForUpdate(ctx context.Context, hashes []codehash.Hash, now time.Time) ([]*models.PendingEntitlementGrant, error) {
	args := m.Called(ctx, hashes, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PendingEntitlementGrant), args.Error(1)
}

func (m *MockTx) ClaimPendingGrant(ctx context.Context, id int64, userUID, source string, claimedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, userUID, source, claimedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockTx) AppendEvent(ctx context.Context, ev *models.BillingEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockTx) AppendEventIdempotent(ctx context.Context, ev *models.BillingEvent) (bool, error) {
	args := m.Called(ctx, ev)
	return args.Bool(0), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) InvalidateUser(userUID string) error {
	args := m.Called(userUID)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PublishNotification(n models.Notification) error {
	args := m.Called(n)
	return args.Error(0)
}
