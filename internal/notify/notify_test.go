package notify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    Kind
		message string
	}{
		{"auth", fmt.Errorf("add: %w", domain.ErrAuthenticationRequired), KindRedirectLogin, MessageLoginRequired},
		{"validation", &domain.ValidationError{Field: domain.FieldPhone, Message: "bad phone"}, KindError, "bad phone"},
		{"server message", &domain.GatewayError{Op: "add", Status: 400, Message: "Out of stock"}, KindError, "Out of stock"},
		{"other", errors.New("boom"), KindError, MessageGenericError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := FromError(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, n.Kind)
			assert.Equal(t, tt.message, n.Message)
		})
	}

	_, ok := FromError(nil)
	assert.False(t, ok)
}

func TestQueue(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q := NewQueue(3*time.Second, logger)
	q.now = func() time.Time { return now }

	q.Notify(Notification{Kind: KindSuccess, Message: "added"})
	q.NotifyError(domain.ErrAuthenticationRequired)
	q.NotifyError(nil)

	pending := q.Pending()
	require.Len(t, pending, 2)
	assert.NotEmpty(t, pending[0].ID)
	assert.Equal(t, KindRedirectLogin, pending[1].Kind)

	assert.True(t, q.Dismiss(pending[0].ID))
	assert.False(t, q.Dismiss(pending[0].ID))
	assert.Len(t, q.Pending(), 1)

	now = now.Add(4 * time.Second)
	assert.Empty(t, q.Pending())
}
