package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanTier(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want PlanTier
	}{
		{name: "free", raw: "free", want: TierFree},
		{name: "basic", raw: "basic", want: TierBasic},
		{name: "pro", raw: "pro", want: TierPro},
		{name: "empty defaults to free", raw: "", want: TierFree},
		{name: "unknown defaults to free", raw: "premium", want: TierFree},
		{name: "wrong case defaults to free", raw: "PRO", want: TierFree},
		{name: "garbage defaults to free", raw: "!!", want: TierFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePlanTier(tt.raw))
		})
	}
}

func TestTierWindows(t *testing.T) {
	free := TierWindows(TierFree)
	require.Len(t, free, 2)
	assert.Equal(t, QuotaWindow{Kind: WindowRolling24h, Limit: 1}, free[0])
	assert.Equal(t, QuotaWindow{Kind: WindowLifetime, Limit: 30}, free[1])

	basic := TierWindows(TierBasic)
	require.Len(t, basic, 1)
	assert.Equal(t, QuotaWindow{Kind: WindowCalendarMonth, Limit: 20}, basic[0])

	pro := TierWindows(TierPro)
	require.Len(t, pro, 1)
	assert.Equal(t, QuotaWindow{Kind: WindowCalendarMonth, Limit: 50}, pro[0])
}

func TestDailyAndMonthlyLimits(t *testing.T) {
	assert.Equal(t, 1, DailyLimit(TierFree))
	assert.Equal(t, 999, DailyLimit(TierBasic))
	assert.Equal(t, 999, DailyLimit(TierPro))

	assert.Equal(t, 30, MonthlyLimit(TierFree))
	assert.Equal(t, 20, MonthlyLimit(TierBasic))
	assert.Equal(t, 50, MonthlyLimit(TierPro))
}

func TestQuotaWindowStart(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)

	rolling := QuotaWindow{Kind: WindowRolling24h, Limit: 1}
	assert.Equal(t, now.Add(-24*time.Hour), rolling.Start(now))

	monthly := QuotaWindow{Kind: WindowCalendarMonth, Limit: 20}
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), monthly.Start(now))

	lifetime := QuotaWindow{Kind: WindowLifetime, Limit: 30}
	assert.True(t, lifetime.Start(now).IsZero())
}
