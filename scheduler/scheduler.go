// Package scheduler converts configured civil delivery times into recurring
// daily cron triggers, re-derived whenever the settings change.
package scheduler

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"

	"github.com/robfig/cron/v3"
)

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Scheduler runs the digest job at configured times of day. Delivery times
// are civil HH:MM strings at a fixed UTC offset; the cron itself runs in
// UTC, so each time is converted (wrapping past midnight) at registration.
type Scheduler struct {
	cron          *cron.Cron
	offsetMinutes int
	job           func()

	mu      sync.Mutex
	entries []cron.EntryID
	started bool
}

// New creates a scheduler. offsetMinutes is the fixed civil-timezone offset
// east of UTC (for example 330 for UTC+5:30); job is invoked on every
// trigger.
func New(offsetMinutes int, job func()) *Scheduler {
	return &Scheduler{
		cron:          cron.New(),
		offsetMinutes: offsetMinutes,
		job:           job,
	}
}

// Reschedule replaces all registered digest triggers with one daily trigger
// per given time. A single bad time is logged and skipped so the remaining
// times still get registered; calling twice with the same input leaves the
// same set of triggers.
func (s *Scheduler) Reschedule(times []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = s.entries[:0]

	for _, t := range times {
		hour, minute, err := parseCivilTime(t)
		if err != nil {
			slog.Warn("skipping invalid delivery time", "time", t, "error", err)
			continue
		}
		utcHour, utcMinute := toUTC(hour, minute, s.offsetMinutes)

		id, err := s.cron.AddFunc(fmt.Sprintf("%d %d * * *", utcMinute, utcHour), s.job)
		if err != nil {
			slog.Warn("failed to register delivery time", "time", t, "error", err)
			continue
		}
		s.entries = append(s.entries, id)
		slog.Info("delivery time registered", "civil", t, "utc", fmt.Sprintf("%02d:%02d", utcHour, utcMinute))
	}
}

// EntryCount returns the number of currently registered digest triggers.
func (s *Scheduler) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.cron.Stop()
		s.started = false
	}
}

func parseCivilTime(timeStr string) (int, int, error) {
	matches := timeRegex.FindStringSubmatch(timeStr)
	if len(matches) != 3 {
		return 0, 0, fmt.Errorf("invalid time format: %q (expected HH:MM)", timeStr)
	}
	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])
	return hour, minute, nil
}

// toUTC converts a civil time-of-day at the fixed offset into UTC,
// wrapping across midnight in either direction.
func toUTC(hour, minute, offsetMinutes int) (int, int) {
	total := hour*60 + minute - offsetMinutes
	total %= 24 * 60
	if total < 0 {
		total += 24 * 60
	}
	return total / 60, total % 60
}
