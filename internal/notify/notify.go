// Package notify collects user-facing notifications produced by the engines.
package notify

import (
	"sync"

	"github.com/google/uuid"
)

// Type is the severity of a notification.
type Type string

const (
	Success Type = "success"
	Error   Type = "error"
	Warning Type = "warning"
	Info    Type = "info"
)

// Notification is one user-facing message.
type Notification struct {
	ID      string `json:"id"`
	Type    Type   `json:"type"`
	Message string `json:"message"`
	Read    bool   `json:"read"`
}

// Sink receives notifications.
type Sink interface {
	Notify(typ Type, message string)
}

// Discard is a Sink that drops every notification.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notify(Type, string) {}

// Store keeps notifications newest first.
type Store struct {
	mu       sync.Mutex
	items    []Notification
	listener func(Notification)
}

// NewStore creates an empty store. listener, if non-nil, is called with
// every new notification after it has been stored.
func NewStore(listener func(Notification)) *Store {
	return &Store{listener: listener}
}

// Notify implements Sink.
func (s *Store) Notify(typ Type, message string) {
	n := Notification{
		ID:      uuid.New().String(),
		Type:    typ,
		Message: message,
	}

	s.mu.Lock()
	s.items = append([]Notification{n}, s.items...)
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener(n)
	}
}

// List returns a copy of all notifications, newest first.
func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Unread returns the number of unread notifications.
func (s *Store) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// MarkAsRead flags the notification with the given id as read.
// Returns false if no such notification exists.
func (s *Store) MarkAsRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Read = true
			return true
		}
	}
	return false
}

// ClearAll removes every notification.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}
