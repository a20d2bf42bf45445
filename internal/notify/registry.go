package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"flocksync/internal/domain"
)

// Registry keys channels by user id and enforces subscription exclusivity:
// opening a channel for a user replaces any existing one instead of
// accumulating, so re-running session setup (e.g. on profile refetch) can
// never double-deliver events.
type Registry struct {
	backend Backend
	alert   Alerter
	log     *zap.Logger

	mu       sync.Mutex
	channels map[string]*Channel
}

func NewRegistry(backend Backend, alert Alerter, log *zap.Logger) *Registry {
	return &Registry{
		backend:  backend,
		alert:    alert,
		log:      log,
		channels: make(map[string]*Channel),
	}
}

// Open opens (or replaces) the channel for the profile's user.
func (r *Registry) Open(ctx context.Context, profile domain.Profile) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.channels[profile.UserID]; ok {
		if err := old.Close(); err != nil {
			r.log.Warn("closing replaced notification channel", zap.Error(err))
		}
		delete(r.channels, profile.UserID)
	}

	ch, err := Open(ctx, r.backend, profile, r.alert, r.log)
	if err != nil {
		return nil, err
	}
	r.channels[profile.UserID] = ch
	return ch, nil
}

// Get returns the open channel for a user, if any.
func (r *Registry) Get(userID string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[userID]
	return ch, ok
}

// Close tears down one user's channel, e.g. on logout.
func (r *Registry) Close(userID string) error {
	r.mu.Lock()
	ch, ok := r.channels[userID]
	delete(r.channels, userID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return ch.Close()
}

// CloseAll tears down every channel, e.g. on app shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]*Channel)
	r.mu.Unlock()

	for _, ch := range channels {
		if err := ch.Close(); err != nil {
			r.log.Warn("closing notification channel", zap.Error(err))
		}
	}
}
