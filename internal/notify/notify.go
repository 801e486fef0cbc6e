// Package notify carries transient, dismissible messages to the user.
package notify

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

type Kind string

const (
	KindInfo          Kind = "info"
	KindSuccess       Kind = "success"
	KindError         Kind = "error"
	KindRedirectLogin Kind = "redirect_login"
)

type Notification struct {
	ID        string
	Kind      Kind
	Message   string
	CreatedAt time.Time
}

type Notifier interface {
	Notify(n Notification)
}

const (
	MessageLoginRequired = "Please log in to continue"
	MessageGenericError  = "Something went wrong. Please try again."
)

// FromError maps an operation error to what the user should see. A nil
// error yields false.
func FromError(err error) (Notification, bool) {
	switch {
	case err == nil:
		return Notification{}, false
	case errors.Is(err, domain.ErrAuthenticationRequired):
		return Notification{Kind: KindRedirectLogin, Message: MessageLoginRequired}, true
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return Notification{Kind: KindError, Message: verr.Message}, true
	}
	if msg, ok := domain.ServerMessage(err); ok {
		return Notification{Kind: KindError, Message: msg}, true
	}
	return Notification{Kind: KindError, Message: MessageGenericError}, true
}

// Queue keeps notifications until they are dismissed or expire.
type Queue struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	pending []Notification
}

// NewQueue returns a queue whose notifications expire after ttl. A zero ttl
// keeps them until dismissed.
func NewQueue(ttl time.Duration, logger *slog.Logger) *Queue {
	return &Queue{ttl: ttl, now: time.Now, logger: logger}
}

func (q *Queue) Notify(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = q.now()
	}
	if n.Kind == "" {
		n.Kind = KindInfo
	}
	q.logger.Debug("notification", "id", n.ID, "kind", n.Kind, "message", n.Message)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, n)
}

// NotifyError is a shorthand for FromError followed by Notify.
func (q *Queue) NotifyError(err error) {
	if n, ok := FromError(err); ok {
		q.Notify(n)
	}
}

func (q *Queue) Pending() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expire()
	out := make([]Notification, len(q.pending))
	copy(out, q.pending)
	return out
}

func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.pending {
		if n.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) expire() {
	if q.ttl <= 0 {
		return
	}
	cutoff := q.now().Add(-q.ttl)
	kept := q.pending[:0]
	for _, n := range q.pending {
		if n.CreatedAt.After(cutoff) {
			kept = append(kept, n)
		}
	}
	q.pending = kept
}
