package models

import "time"

const (
	// HistoryWindow is how far back completed rides are retained.
	HistoryWindow = time.Hour
	// HistoryLimit caps retained timestamps regardless of age.
	HistoryLimit = 256
)

// RideHistory keeps completion timestamps in time order, pruning entries that fall
// outside HistoryWindow of the newest one.
type RideHistory struct {
	stamps []time.Time
}

// Record appends a completion. Out-of-order timestamps are clamped to the newest entry.
func (h *RideHistory) Record(at time.Time) {
	if n := len(h.stamps); n > 0 && at.Before(h.stamps[n-1]) {
		at = h.stamps[n-1]
	}
	h.stamps = append(h.stamps, at)
	h.prune(at.Add(-HistoryWindow))
	if over := len(h.stamps) - HistoryLimit; over > 0 {
		h.stamps = append(h.stamps[:0], h.stamps[over:]...)
	}
}

// CountSince returns the number of completions at or after cutoff.
func (h *RideHistory) CountSince(cutoff time.Time) int {
	n := 0
	for i := len(h.stamps) - 1; i >= 0; i-- {
		if h.stamps[i].Before(cutoff) {
			break
		}
		n++
	}
	return n
}

func (h *RideHistory) Len() int { return len(h.stamps) }

// Timestamps returns a copy of the retained completions, oldest first.
func (h *RideHistory) Timestamps() []time.Time {
	return append([]time.Time(nil), h.stamps...)
}

func (h *RideHistory) prune(cutoff time.Time) {
	i := 0
	for i < len(h.stamps) && h.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		h.stamps = append(h.stamps[:0], h.stamps[i:]...)
	}
}

func (h RideHistory) clone() RideHistory {
	return RideHistory{stamps: append([]time.Time(nil), h.stamps...)}
}
