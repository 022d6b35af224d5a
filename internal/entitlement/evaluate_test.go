package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(day int) time.Time {
	return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
}

func TestEvaluate_InternalBypass(t *testing.T) {
	now := date(10)
	intervals := []Interval{
		{Source: SourcePromotion, StartsAt: date(1), EndsAt: date(5)},
		{Source: SourceSubscription, StartsAt: date(20), EndsAt: date(25)},
	}

	got := Evaluate(now, true, intervals)

	assert.True(t, got.IsPro)
	assert.Nil(t, got.ProUntil)
	assert.Equal(t, SourceInternalBypass, got.EffectiveSource)
	assert.Empty(t, got.Sources)
	assert.Nil(t, got.NextProStartsAt)
}

func TestEvaluate(t *testing.T) {
	now := date(10)

	tests := []struct {
		name          string
		intervals     []Interval
		wantIsPro     bool
		wantProUntil  *time.Time
		wantEffective Source
		wantNextStart *time.Time
	}{
		{
			name:      "no intervals",
			intervals: nil,
			wantIsPro: false,
		},
		{
			name: "all expired",
			intervals: []Interval{
				{Source: SourceTrial, StartsAt: date(1), EndsAt: date(5)},
				{Source: SourcePromotion, StartsAt: date(3), EndsAt: date(10)},
			},
			wantIsPro: false,
		},
		{
			name: "single active interval",
			intervals: []Interval{
				{Source: SourceSubscription, StartsAt: date(5), EndsAt: date(15)},
			},
			wantIsPro:     true,
			wantProUntil:  ptrDate(15),
			wantEffective: SourceSubscription,
		},
		{
			name: "overlapping intervals extend pro until",
			intervals: []Interval{
				{Source: SourceSubscription, StartsAt: date(5), EndsAt: date(12)},
				{Source: SourcePromotion, StartsAt: date(11), EndsAt: date(20)},
			},
			wantIsPro:     true,
			wantProUntil:  ptrDate(20),
			wantEffective: SourcePromotion,
		},
		{
			name: "touching intervals merge into one window",
			intervals: []Interval{
				{Source: SourceSubscription, StartsAt: date(5), EndsAt: date(12)},
				{Source: SourceAdminOverride, StartsAt: date(12), EndsAt: date(18)},
			},
			wantIsPro:     true,
			wantProUntil:  ptrDate(18),
			wantEffective: SourceAdminOverride,
		},
		{
			name: "gap between windows keeps them apart",
			intervals: []Interval{
				{Source: SourceTrial, StartsAt: date(1), EndsAt: date(8)},
				{Source: SourcePromotion, StartsAt: date(20), EndsAt: date(25)},
			},
			wantIsPro:     false,
			wantNextStart: ptrDate(20),
		},
		{
			name: "only future windows",
			intervals: []Interval{
				{Source: SourcePendingGrant, StartsAt: date(25), EndsAt: date(30)},
				{Source: SourcePromotion, StartsAt: date(15), EndsAt: date(20)},
			},
			wantIsPro:     false,
			wantNextStart: ptrDate(15),
		},
		{
			name: "subscription wins tie against admin override",
			intervals: []Interval{
				{Source: SourceAdminOverride, StartsAt: date(8), EndsAt: date(20)},
				{Source: SourceSubscription, StartsAt: date(5), EndsAt: date(20)},
			},
			wantIsPro:     true,
			wantProUntil:  ptrDate(20),
			wantEffective: SourceSubscription,
		},
		{
			name: "effective source ends exactly at merged boundary",
			intervals: []Interval{
				{Source: SourceSubscription, StartsAt: date(5), EndsAt: date(12)},
				{Source: SourcePromotion, StartsAt: date(8), EndsAt: date(20)},
				{Source: SourceAdminOverride, StartsAt: date(9), EndsAt: date(20)},
			},
			wantIsPro:    true,
			wantProUntil: ptrDate(20),
			// подписка заканчивается раньше границы окна и не участвует в выборе
			wantEffective: SourceAdminOverride,
		},
		{
			name: "empty interval at window boundary is not an effective source",
			intervals: []Interval{
				{Source: SourceAdminOverride, StartsAt: date(8), EndsAt: date(20)},
				{Source: SourceSubscription, StartsAt: date(20), EndsAt: date(20)},
			},
			wantIsPro:     true,
			wantProUntil:  ptrDate(20),
			wantEffective: SourceAdminOverride,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(now, false, tt.intervals)

			assert.Equal(t, tt.wantIsPro, got.IsPro)
			if tt.wantProUntil != nil {
				require.NotNil(t, got.ProUntil)
				assert.True(t, got.ProUntil.Equal(*tt.wantProUntil),
					"pro until: want %s, got %s", tt.wantProUntil, got.ProUntil)
			} else {
				assert.Nil(t, got.ProUntil)
			}
			assert.Equal(t, tt.wantEffective, got.EffectiveSource)
			if tt.wantNextStart != nil {
				require.NotNil(t, got.NextProStartsAt)
				assert.True(t, got.NextProStartsAt.Equal(*tt.wantNextStart))
			} else {
				assert.Nil(t, got.NextProStartsAt)
			}
		})
	}
}

func TestEvaluate_TieBreakByCreatedAtThenSourceID(t *testing.T) {
	now := date(10)
	early := date(1)
	late := date(2)

	t.Run("earlier created_at wins", func(t *testing.T) {
		got := Evaluate(now, false, []Interval{
			{Source: SourcePromotion, StartsAt: date(5), EndsAt: date(20), SourceID: "b", CreatedAt: &late},
			{Source: SourcePromotion, StartsAt: date(6), EndsAt: date(20), SourceID: "a", CreatedAt: &early},
		})
		require.True(t, got.IsPro)
		assert.Equal(t, SourcePromotion, got.EffectiveSource)
	})

	t.Run("lexically smaller source id wins without created_at", func(t *testing.T) {
		intervals := []Interval{
			{Source: SourceAdminOverride, StartsAt: date(5), EndsAt: date(20), SourceID: "override-2"},
			{Source: SourceAdminOverride, StartsAt: date(6), EndsAt: date(20), SourceID: "override-1"},
		}
		got := Evaluate(now, false, intervals)
		require.True(t, got.IsPro)
		assert.Equal(t, SourceAdminOverride, got.EffectiveSource)
	})
}

func TestEvaluate_SourcesContainAllActiveIntervals(t *testing.T) {
	now := date(10)
	intervals := []Interval{
		{Source: SourceTrial, StartsAt: date(1), EndsAt: date(5)},
		{Source: SourceSubscription, StartsAt: date(5), EndsAt: date(15)},
		{Source: SourcePromotion, StartsAt: date(20), EndsAt: date(30)},
	}

	got := Evaluate(now, false, intervals)

	// просроченный trial отфильтрован, будущая промо-акция остаётся для аудита
	require.Len(t, got.Sources, 2)
	assert.Equal(t, SourceSubscription, got.Sources[0].Source)
	assert.Equal(t, SourcePromotion, got.Sources[1].Source)
}

func TestEvaluate_MergedWindowsCoverUnion(t *testing.T) {
	now := date(1)
	intervals := []Interval{
		{Source: SourceTrial, StartsAt: date(1), EndsAt: date(4)},
		{Source: SourcePromotion, StartsAt: date(2), EndsAt: date(6)},
		{Source: SourceAdminOverride, StartsAt: date(6), EndsAt: date(9)},
		{Source: SourceSubscription, StartsAt: date(15), EndsAt: date(20)},
	}

	got := Evaluate(now, false, intervals)

	require.True(t, got.IsPro)
	// три соприкасающихся интервала образуют одно окно [1, 9)
	assert.True(t, got.ProUntil.Equal(date(9)))

	// внутри объединённого окна статус одинаков в любой момент
	for day := 1; day < 9; day++ {
		st := Evaluate(date(day), false, intervals)
		assert.True(t, st.IsPro, "day %d must be pro", day)
		assert.True(t, st.ProUntil.Equal(date(9)), "day %d pro until", day)
	}
	// в разрыве доступа нет
	for day := 9; day < 15; day++ {
		st := Evaluate(date(day), false, intervals)
		assert.False(t, st.IsPro, "day %d must not be pro", day)
		require.NotNil(t, st.NextProStartsAt)
		assert.True(t, st.NextProStartsAt.Equal(date(15)))
	}
}

func ptrDate(day int) *time.Time {
	d := date(day)
	return &d
}
