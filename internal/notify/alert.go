package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Alerter is the user-facing surface for a matched event: a transient in-app
// toast plus a best-effort OS-level notification.
type Alerter interface {
	Toast(title, body string)
	Push(title, body string)
}

// NopAlerter drops everything; the default for headless use and tests.
type NopAlerter struct{}

func (NopAlerter) Toast(string, string) {}
func (NopAlerter) Push(string, string)  {}

// Permission models the OS notification permission prompt.
type Permission interface {
	// Request asks the user once and reports whether delivery is allowed.
	Request() bool
}

// Pusher delivers one OS-level notification.
type Pusher interface {
	Push(title, body string) error
}

// PushGate wraps a Pusher behind a lazily requested permission. The prompt
// happens on first need, and a denial (or a nil pusher on unsupported
// platforms) degrades silently: no toast, no retry loop.
type PushGate struct {
	perm   Permission
	pusher Pusher
	log    *zap.Logger

	mu      sync.Mutex
	asked   bool
	granted bool
}

func NewPushGate(perm Permission, pusher Pusher, log *zap.Logger) *PushGate {
	return &PushGate{perm: perm, pusher: pusher, log: log}
}

func (g *PushGate) Push(title, body string) {
	g.mu.Lock()
	if !g.asked {
		g.asked = true
		g.granted = g.pusher != nil && g.perm != nil && g.perm.Request()
	}
	granted := g.granted
	g.mu.Unlock()

	if !granted {
		return
	}
	if err := g.pusher.Push(title, body); err != nil {
		g.log.Debug("os notification failed", zap.Error(err))
	}
}
