// Package settings holds the mutable digest configuration: active topic
// set, delivery times, and articles-per-topic count. All mutations are
// validated; delivery-time mutations re-derive the schedule.
package settings

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// ErrLastTopic is returned when a mutation would leave the active topic
// set empty.
var ErrLastTopic = errors.New("cannot remove the last active topic")

const (
	// MaxDeliveryTimes caps the number of daily digest deliveries.
	MaxDeliveryTimes = 2
	// MinArticleCount and MaxArticleCount bound articles-per-topic.
	MinArticleCount = 1
	MaxArticleCount = 10
)

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ScheduleUpdater re-derives recurring triggers from delivery times.
type ScheduleUpdater interface {
	Reschedule(times []string)
}

// Store is the single-operator settings record. Safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	activeTopics  []string
	deliveryTimes []string
	articleCount  int
	sched         ScheduleUpdater
}

// NewStore creates a settings store with the given initial values. The
// initial schedule is NOT derived here; call Reschedule on the updater (or
// mutate a delivery time) once the scheduler is ready.
func NewStore(activeTopics, deliveryTimes []string, articleCount int, sched ScheduleUpdater) (*Store, error) {
	if len(activeTopics) == 0 {
		return nil, fmt.Errorf("at least one active topic is required")
	}
	if len(deliveryTimes) > MaxDeliveryTimes {
		return nil, fmt.Errorf("at most %d delivery times allowed", MaxDeliveryTimes)
	}
	for _, t := range deliveryTimes {
		if !timeRegex.MatchString(t) {
			return nil, fmt.Errorf("invalid delivery time %q", t)
		}
	}
	if articleCount < MinArticleCount || articleCount > MaxArticleCount {
		return nil, fmt.Errorf("article count must be %d-%d, got %d", MinArticleCount, MaxArticleCount, articleCount)
	}

	s := &Store{
		activeTopics:  append([]string(nil), activeTopics...),
		deliveryTimes: append([]string(nil), deliveryTimes...),
		articleCount:  articleCount,
		sched:         sched,
	}
	return s, nil
}

// ActiveTopics returns the active topic keys in order.
func (s *Store) ActiveTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.activeTopics))
	copy(out, s.activeTopics)
	return out
}

// IsActive reports whether the topic key is in the active set.
func (s *Store) IsActive(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(key) >= 0
}

// ActivateTopic adds the key to the active set. Activating an already
// active topic is a no-op.
func (s *Store) ActivateTopic(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(key) >= 0 {
		return
	}
	s.activeTopics = append(s.activeTopics, key)
}

// DeactivateTopic removes the key from the active set. Removing the last
// active topic is rejected with ErrLastTopic; removing an inactive key is
// a no-op.
func (s *Store) DeactivateTopic(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(key)
	if i < 0 {
		return nil
	}
	if len(s.activeTopics) == 1 {
		return ErrLastTopic
	}
	s.activeTopics = append(s.activeTopics[:i], s.activeTopics[i+1:]...)
	return nil
}

// CountOtherActive returns how many active topics other than key exist.
func (s *Store) CountOtherActive(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.activeTopics)
	if s.indexOf(key) >= 0 {
		n--
	}
	return n
}

// DeliveryTimes returns the configured delivery times in slot order.
func (s *Store) DeliveryTimes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.deliveryTimes))
	copy(out, s.deliveryTimes)
	return out
}

// SetDeliveryTime sets the time for the given slot (0 or 1). Slot 1 can
// only be set once slot 0 exists. The schedule is re-derived on success.
func (s *Store) SetDeliveryTime(slot int, hhmm string) error {
	if !timeRegex.MatchString(hhmm) {
		return fmt.Errorf("invalid time %q, expected HH:MM", hhmm)
	}
	if slot < 0 || slot >= MaxDeliveryTimes {
		return fmt.Errorf("invalid delivery slot %d", slot)
	}

	s.mu.Lock()
	switch {
	case slot < len(s.deliveryTimes):
		s.deliveryTimes[slot] = hhmm
	case slot == len(s.deliveryTimes):
		s.deliveryTimes = append(s.deliveryTimes, hhmm)
	default:
		s.mu.Unlock()
		return fmt.Errorf("set slot 0 before slot %d", slot)
	}
	times := append([]string(nil), s.deliveryTimes...)
	s.mu.Unlock()

	s.reschedule(times)
	return nil
}

// RemoveSecondDeliveryTime drops slot 1 if present and re-derives the
// schedule.
func (s *Store) RemoveSecondDeliveryTime() {
	s.mu.Lock()
	if len(s.deliveryTimes) < MaxDeliveryTimes {
		s.mu.Unlock()
		return
	}
	s.deliveryTimes = s.deliveryTimes[:1]
	times := append([]string(nil), s.deliveryTimes...)
	s.mu.Unlock()

	s.reschedule(times)
}

// ArticleCount returns the articles-per-topic count.
func (s *Store) ArticleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.articleCount
}

// SetArticleCount updates the articles-per-topic count.
func (s *Store) SetArticleCount(n int) error {
	if n < MinArticleCount || n > MaxArticleCount {
		return fmt.Errorf("article count must be %d-%d, got %d", MinArticleCount, MaxArticleCount, n)
	}
	s.mu.Lock()
	s.articleCount = n
	s.mu.Unlock()
	return nil
}

func (s *Store) reschedule(times []string) {
	if s.sched != nil {
		s.sched.Reschedule(times)
	}
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(key string) int {
	for i, k := range s.activeTopics {
		if k == key {
			return i
		}
	}
	return -1
}
