package venue

import "time"

// DefaultFundingSchedule is the usual UTC funding offsets in seconds
// since midnight: 00:00, 08:00 and 16:00.
var DefaultFundingSchedule = []int{0, 28800, 57600}

// FundingClock answers wall-clock predicates over a venue's fixed UTC
// funding schedule.
type FundingClock struct {
	schedule []int
	now      func() time.Time
}

// NewFundingClock creates a clock over the given schedule. A nil or
// empty schedule falls back to the default.
func NewFundingClock(schedule []int) *FundingClock {
	if len(schedule) == 0 {
		schedule = DefaultFundingSchedule
	}
	return &FundingClock{schedule: schedule, now: time.Now}
}

// WithNow overrides the time source, for tests.
func (c *FundingClock) WithNow(now func() time.Time) *FundingClock {
	c.now = now
	return c
}

func (c *FundingClock) secondsSinceMidnightUTC() int {
	now := c.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(now.Sub(midnight).Seconds())
}

// ClosestTimeBeforeFunding reports whether a funding tick lies within
// (window, window+60) seconds ahead of now.
func (c *FundingClock) ClosestTimeBeforeFunding(windowSecs int) bool {
	seconds := c.secondsSinceMidnightUTC()
	for _, ft := range c.schedule {
		until := ft - seconds
		if windowSecs < until && until < windowSecs+60 {
			return true
		}
	}
	return false
}

// FundingTimeout reports whether a funding tick occurred within
// (window, window+60) seconds behind now.
func (c *FundingClock) FundingTimeout(windowSecs int) bool {
	seconds := c.secondsSinceMidnightUTC()
	for _, ft := range c.schedule {
		since := seconds - ft
		if windowSecs < since && since < windowSecs+60 {
			return true
		}
	}
	return false
}
