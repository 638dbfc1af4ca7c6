package booking

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process [Store]. Copies are returned so callers can
// never mutate stored records.
type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]Booking
	order    []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[string]Booking)}
}

func (s *MemoryStore) Insert(_ context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookings[b.ID]; !exists {
		s.order = append(s.order, b.ID)
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return &b, nil
}

func (s *MemoryStore) ListByStudent(_ context.Context, studentID string) ([]*Booking, error) {
	return s.filter(func(b *Booking) bool { return b.StudentID == studentID }), nil
}

func (s *MemoryStore) ListByMentor(_ context.Context, mentorID string) ([]*Booking, error) {
	return s.filter(func(b *Booking) bool { return b.MentorID == mentorID }), nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]*Booking, error) {
	return s.filter(func(*Booking) bool { return true }), nil
}

func (s *MemoryStore) filter(keep func(*Booking) bool) []*Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Booking, 0)
	for _, id := range s.order {
		b := s.bookings[id]
		if keep(&b) {
			out = append(out, &b)
		}
	}
	return out
}

func (s *MemoryStore) CompareAndSetStatus(_ context.Context, id string, from, to Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return ErrNotFound
	}
	if b.Status != from {
		return ErrStatusChanged
	}

	b.Status = to
	b.UpdatedAt = at
	s.bookings[id] = b
	return nil
}

func (s *MemoryStore) CountByStatus(_ context.Context) (map[Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Status]int64, len(Statuses()))
	for _, st := range Statuses() {
		out[st] = 0
	}
	for _, b := range s.bookings {
		out[b.Status]++
	}
	return out, nil
}
