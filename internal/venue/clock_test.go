package venue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func atUTC(hour, min, sec int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 14, hour, min, sec, 0, time.UTC)
	}
}

func TestFundingClock_ClosestTimeBeforeFunding(t *testing.T) {
	tests := []struct {
		name   string
		now    func() time.Time
		window int
		want   bool
	}{
		{
			// 07:55:30: 08:00 tick is 270 s ahead; window (240, 300).
			name:   "tick inside look-ahead window",
			now:    atUTC(7, 55, 30),
			window: 240,
			want:   true,
		},
		{
			// 07:50:00: tick is 600 s ahead, outside (240, 300).
			name:   "tick too far ahead",
			now:    atUTC(7, 50, 0),
			window: 240,
			want:   false,
		},
		{
			// 08:01:00: tick already passed.
			name:   "tick behind",
			now:    atUTC(8, 1, 0),
			window: 240,
			want:   false,
		},
		{
			// 15:55:30 against the 16:00 tick.
			name:   "second schedule slot",
			now:    atUTC(15, 55, 30),
			window: 240,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewFundingClock(nil).WithNow(tt.now)
			assert.Equal(t, tt.want, clock.ClosestTimeBeforeFunding(tt.window))
		})
	}
}

func TestFundingClock_FundingTimeout(t *testing.T) {
	tests := []struct {
		name   string
		now    func() time.Time
		window int
		want   bool
	}{
		{
			// 08:04:30: tick was 270 s ago; window (240, 300).
			name:   "tick inside look-back window",
			now:    atUTC(8, 4, 30),
			window: 240,
			want:   true,
		},
		{
			// 08:10:00: 600 s ago, outside the window.
			name:   "tick too far behind",
			now:    atUTC(8, 10, 0),
			window: 240,
			want:   false,
		},
		{
			// 07:59:00: tick has not happened yet.
			name:   "tick ahead",
			now:    atUTC(7, 59, 0),
			window: 240,
			want:   false,
		},
		{
			// 00:04:30 against the midnight tick.
			name:   "midnight slot",
			now:    atUTC(0, 4, 30),
			window: 240,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewFundingClock(nil).WithNow(tt.now)
			assert.Equal(t, tt.want, clock.FundingTimeout(tt.window))
		})
	}
}
