package models

import "time"

// PlanTier identifies a subscription plan. It determines how many staged
// images a user may generate and over which windows.
type PlanTier string

const (
	TierFree  PlanTier = "free"
	TierBasic PlanTier = "basic"
	TierPro   PlanTier = "pro"
)

// noDailyCapSentinel is reported as the daily limit for paid tiers, which are
// capped per calendar month only.
const noDailyCapSentinel = 999

// ParsePlanTier maps a stored plan value to a PlanTier. Unknown, malformed or
// empty values resolve to the free tier so a broken profile document can never
// grant a paid quota or block the user entirely.
func ParsePlanTier(raw string) PlanTier {
	switch PlanTier(raw) {
	case TierFree, TierBasic, TierPro:
		return PlanTier(raw)
	default:
		return TierFree
	}
}

// WindowKind distinguishes the time window a quota limit applies to.
// Keeping the window explicit on each limit prevents a "monthly" number from
// silently meaning "lifetime" for one tier and "calendar month" for another.
type WindowKind string

const (
	WindowLifetime      WindowKind = "lifetime"
	WindowRolling24h    WindowKind = "rolling24h"
	WindowCalendarMonth WindowKind = "calendarMonth"
)

// QuotaWindow is one enforced limit: at most Limit completed generations
// within the window described by Kind.
type QuotaWindow struct {
	Kind  WindowKind
	Limit int
}

// Start returns the inclusive lower bound of the window relative to now.
// A lifetime window has no lower bound and returns the zero time.
func (w QuotaWindow) Start(now time.Time) time.Time {
	switch w.Kind {
	case WindowRolling24h:
		return now.Add(-24 * time.Hour)
	case WindowCalendarMonth:
		y, m, _ := now.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	default:
		return time.Time{}
	}
}

// TierWindows returns every window enforced for a tier, strictest first.
// Free users get one image per rolling 24 hours plus a 30-image lifetime cap;
// paid users are capped per calendar month only.
func TierWindows(tier PlanTier) []QuotaWindow {
	switch tier {
	case TierBasic:
		return []QuotaWindow{{Kind: WindowCalendarMonth, Limit: 20}}
	case TierPro:
		return []QuotaWindow{{Kind: WindowCalendarMonth, Limit: 50}}
	default:
		return []QuotaWindow{
			{Kind: WindowRolling24h, Limit: 1},
			{Kind: WindowLifetime, Limit: 30},
		}
	}
}

// DailyLimit returns the limit applied to the trailing-24h window, or the
// no-cap sentinel for tiers without a daily window.
func DailyLimit(tier PlanTier) int {
	for _, w := range TierWindows(tier) {
		if w.Kind == WindowRolling24h {
			return w.Limit
		}
	}
	return noDailyCapSentinel
}

// MonthlyLimit returns the limit applied to the calendar-month window. The
// free tier reports its lifetime cap here, matching how the pricing page
// presents "30 images per month" to free users.
func MonthlyLimit(tier PlanTier) int {
	for _, w := range TierWindows(tier) {
		if w.Kind == WindowCalendarMonth || w.Kind == WindowLifetime {
			return w.Limit
		}
	}
	return noDailyCapSentinel
}
