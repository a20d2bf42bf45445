// Package notify maintains the near-real-time user-facing counters: unread
// broadcast announcements, pending finance approvals (executive roles only)
// and personal action notifications, fed by one change-feed subscription per
// signed-in user.
package notify

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"flocksync/internal/domain"
	"flocksync/internal/remote"
)

// State of a channel's session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// EventSource is a live change-feed handle; *remote.Subscription is the real
// one, tests feed channels directly.
type EventSource interface {
	Events() <-chan remote.Event
	Close() error
}

// Backend is the slice of the remote store client the channel uses.
type Backend interface {
	Fetch(ctx context.Context, collection domain.Collection, filter remote.Filter) ([]json.RawMessage, error)
	Count(ctx context.Context, collection domain.Collection, filter remote.Filter) (int, error)
	Insert(ctx context.Context, collection domain.Collection, record any) (json.RawMessage, error)
	Update(ctx context.Context, collection domain.Collection, id string, record any) error
	Subscribe(ctx context.Context, key string, tables []domain.Collection) (EventSource, error)
}

// WrapClient adapts *remote.Client to the Backend interface (the Subscribe
// return type differs).
func WrapClient(c *remote.Client) Backend { return clientBackend{c} }

type clientBackend struct{ *remote.Client }

func (b clientBackend) Subscribe(ctx context.Context, key string, tables []domain.Collection) (EventSource, error) {
	return b.Client.Subscribe(ctx, key, tables)
}

var feedTables = []domain.Collection{
	domain.CollectionAnnouncements,
	domain.CollectionReceipts,
	domain.CollectionNotifications,
	domain.CollectionFinanceRequests,
}

// Channel is one user's live notification session.
//
// Lifecycle: Disconnected, then Connecting on Open, then Connected once the
// baseline fetch has anchored the counters, then Disconnected on Close or
// transport loss. Events that arrive between subscribing and baseline
// completion are replayed through the matchers afterwards; the baseline's id
// sets make the replay idempotent, so nothing is double counted or lost.
type Channel struct {
	backend Backend
	alert   Alerter
	log     *zap.Logger
	profile domain.Profile

	state atomic.Int32

	mu       sync.Mutex
	unread   int
	pending  int
	seen     map[string]struct{}   // announcement ids already accounted for
	read     map[string]struct{}   // announcement ids this user has receipted
	items    []domain.Notification // unread personal notifications, newest first
	onChange []func()

	sub    EventSource
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open subscribes, anchors the counters with a baseline fetch, then starts
// processing live events. The subscription is opened first so that nothing
// landing during the baseline can be missed.
func Open(ctx context.Context, backend Backend, profile domain.Profile, alert Alerter, log *zap.Logger) (*Channel, error) {
	if alert == nil {
		alert = NopAlerter{}
	}
	c := &Channel{
		backend: backend,
		alert:   alert,
		log:     log.With(zap.String("user_id", profile.UserID)),
		profile: profile,
		seen:    make(map[string]struct{}),
		read:    make(map[string]struct{}),
	}
	c.state.Store(int32(StateConnecting))

	sub, err := backend.Subscribe(ctx, "notify:"+profile.UserID, feedTables)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return nil, err
	}
	c.sub = sub

	if err := c.baseline(ctx); err != nil {
		sub.Close()
		c.state.Store(int32(StateDisconnected))
		return nil, err
	}

	// Anything already queued raced the baseline fetch: it may or may not be
	// reflected in the snapshot. Replay it through the matchers, which dedup
	// against the baseline's id sets, so a row committed just after the
	// snapshot read is still counted.
	c.replayPreBaseline()

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state.Store(int32(StateConnected))

	c.wg.Add(1)
	go c.loop(loopCtx)

	return c, nil
}

// State reports the channel's lifecycle state.
func (c *Channel) State() State { return State(c.state.Load()) }

// Unread is the broadcast-announcement unread count. Always 0 for executive
// roles; executives never track announcement unread state.
func (c *Channel) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Pending is the pending finance-request count, maintained for executive
// roles only.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Items returns the unread personal notifications, newest first.
func (c *Channel) Items() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Notification, len(c.items))
	copy(out, c.items)
	return out
}

// OnChange registers a callback fired after every counter or list change.
// The UI layer subscribes here instead of polling.
func (c *Channel) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

// MarkRead flips the persisted notification row and drops it from the local
// list. The remote write happens first; on failure the list is untouched.
func (c *Channel) MarkRead(ctx context.Context, id string) error {
	if err := c.backend.Update(ctx, domain.CollectionNotifications, id, map[string]any{"read": true}); err != nil {
		return err
	}

	c.mu.Lock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.notifyChange()
	return nil
}

// Acknowledge records a read receipt for an announcement. The unread counter
// is decremented when the receipt's own insert event arrives, so every tab
// converges on the same count.
func (c *Channel) Acknowledge(ctx context.Context, announcementID string) error {
	receipt := domain.AnnouncementReceipt{
		AnnouncementID: announcementID,
		UserID:         c.profile.UserID,
	}
	_, err := c.backend.Insert(ctx, domain.CollectionReceipts, receipt)
	return err
}

// Focus re-anchors all counters with a fresh baseline fetch. This is the
// system's only reconciliation mechanism for events dropped while the
// subscription was stalled or the device was asleep — there is no sequence
// numbering and no replay log.
func (c *Channel) Focus(ctx context.Context) error {
	if err := c.baseline(ctx); err != nil {
		return err
	}
	c.notifyChange()
	return nil
}

// Close tears the session down and clears the transient counters.
func (c *Channel) Close() error {
	if !c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnected)) {
		c.state.Store(int32(StateDisconnected))
	}
	if c.cancel != nil {
		c.cancel()
	}
	var err error
	if c.sub != nil {
		err = c.sub.Close()
	}
	c.wg.Wait()

	c.mu.Lock()
	c.unread, c.pending = 0, 0
	c.items = nil
	c.seen = make(map[string]struct{})
	c.read = make(map[string]struct{})
	c.mu.Unlock()
	return err
}

// baseline anchors the three concerns against the server: unread
// announcements as the set difference of all announcement ids minus this
// user's read receipts, pending requests via a count-only query, and the
// unread personal notifications directly.
func (c *Channel) baseline(ctx context.Context) error {
	exec := c.profile.Role.Executive()

	var (
		seen   = make(map[string]struct{})
		read   = make(map[string]struct{})
		unread int
	)
	if !exec {
		annRows, err := c.backend.Fetch(ctx, domain.CollectionAnnouncements, nil)
		if err != nil {
			return err
		}
		anns, err := domain.DecodeAnnouncements(annRows)
		if err != nil {
			return err
		}
		rcptRows, err := c.backend.Fetch(ctx, domain.CollectionReceipts,
			remote.Where("user_id", remote.OpEq, c.profile.UserID))
		if err != nil {
			return err
		}
		receipts, err := domain.DecodeReceipts(rcptRows)
		if err != nil {
			return err
		}

		for _, r := range receipts {
			read[r.AnnouncementID] = struct{}{}
		}
		for _, a := range anns {
			seen[a.ID] = struct{}{}
			if _, ok := read[a.ID]; !ok {
				unread++
			}
		}
	}

	pending := 0
	if exec {
		n, err := c.backend.Count(ctx, domain.CollectionFinanceRequests,
			remote.Where("status", remote.OpEq, string(domain.FinanceStatusPending)))
		if err != nil {
			return err
		}
		pending = n
	}

	noteRows, err := c.backend.Fetch(ctx, domain.CollectionNotifications,
		remote.Where("user_id", remote.OpEq, c.profile.UserID).And("read", remote.OpEq, false))
	if err != nil {
		return err
	}
	notes, err := domain.DecodeNotifications(noteRows)
	if err != nil {
		return err
	}
	sortNotificationsNewestFirst(notes)

	c.mu.Lock()
	c.seen = seen
	c.read = read
	c.unread = unread
	c.pending = pending
	c.items = notes
	c.mu.Unlock()
	return nil
}

// replayPreBaseline runs the events queued during the baseline fetch through
// the normal matchers. Announcements, receipts and notifications dedup
// against the baseline's id sets. The pending count comes from a count-only
// query with no ids to dedup against, so finance events are dropped here and
// left to the next focus pass.
func (c *Channel) replayPreBaseline() {
	for {
		select {
		case ev, ok := <-c.sub.Events():
			if !ok {
				return
			}
			if ev.Table == domain.CollectionFinanceRequests {
				c.log.Debug("dropping pre-baseline finance event",
					zap.String("action", ev.Action))
				continue
			}
			c.handle(ev)
		default:
			return
		}
	}
}

func (c *Channel) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.sub.Events():
			if !ok {
				// Transport gone. Not retried here; the focus-triggered
				// correction pass after reconnect is the safety net.
				c.state.Store(int32(StateDisconnected))
				return
			}
			c.handle(ev)
		}
	}
}

// handle runs the four independent matchers against one feed event. Decode
// failures are logged and dropped; they never crash the subscription.
func (c *Channel) handle(ev remote.Event) {
	if ev.Action != remote.ActionInsert {
		return
	}

	changed := false
	switch ev.Table {
	case domain.CollectionAnnouncements:
		changed = c.onAnnouncement(ev.Record)
	case domain.CollectionReceipts:
		changed = c.onReceipt(ev.Record)
	case domain.CollectionNotifications:
		changed = c.onNotification(ev.Record)
	case domain.CollectionFinanceRequests:
		changed = c.onFinanceRequest(ev.Record)
	}
	if changed {
		c.notifyChange()
	}
}

func (c *Channel) onAnnouncement(raw json.RawMessage) bool {
	if c.profile.Role.Executive() {
		return false
	}
	var a domain.Announcement
	if err := json.Unmarshal(raw, &a); err != nil || a.ID == "" {
		c.log.Warn("dropping malformed announcement event", zap.Error(err))
		return false
	}

	c.mu.Lock()
	if _, dup := c.seen[a.ID]; dup {
		c.mu.Unlock()
		return false
	}
	c.seen[a.ID] = struct{}{}
	c.unread++
	c.mu.Unlock()

	c.alert.Toast("New announcement", a.Title)
	c.alert.Push("New announcement", a.Title)
	return true
}

func (c *Channel) onReceipt(raw json.RawMessage) bool {
	var r domain.AnnouncementReceipt
	if err := json.Unmarshal(raw, &r); err != nil || r.AnnouncementID == "" {
		c.log.Warn("dropping malformed receipt event", zap.Error(err))
		return false
	}
	if r.UserID != c.profile.UserID {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.read[r.AnnouncementID]; dup {
		// Already receipted in the baseline or by another tab; the
		// announcement was never counted as unread here.
		return false
	}
	c.read[r.AnnouncementID] = struct{}{}
	if c.unread == 0 {
		// Floor at zero: a receipt for an announcement this session never
		// counted must not drive the counter negative.
		return false
	}
	c.unread--
	return true
}

func (c *Channel) onNotification(raw json.RawMessage) bool {
	var n domain.Notification
	if err := json.Unmarshal(raw, &n); err != nil || n.ID == "" {
		c.log.Warn("dropping malformed notification event", zap.Error(err))
		return false
	}
	if n.UserID != c.profile.UserID || n.Read {
		return false
	}

	c.mu.Lock()
	for _, existing := range c.items {
		if existing.ID == n.ID {
			c.mu.Unlock()
			return false
		}
	}
	c.items = append([]domain.Notification{n}, c.items...)
	c.mu.Unlock()

	c.alert.Toast(n.Title, n.Body)
	c.alert.Push(n.Title, n.Body)
	return true
}

func (c *Channel) onFinanceRequest(raw json.RawMessage) bool {
	if !c.profile.Role.Executive() {
		return false
	}
	var f domain.FinanceRequest
	if err := json.Unmarshal(raw, &f); err != nil || f.ID == "" {
		c.log.Warn("dropping malformed finance request event", zap.Error(err))
		return false
	}
	if !f.Pending() {
		return false
	}

	c.mu.Lock()
	c.pending++
	c.mu.Unlock()

	c.alert.Toast("Finance request pending", f.Purpose)
	return true
}

func (c *Channel) notifyChange() {
	c.mu.Lock()
	fns := make([]func(), len(c.onChange))
	copy(fns, c.onChange)
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func sortNotificationsNewestFirst(notes []domain.Notification) {
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
}
