package schedule

import (
	"sync"
	"time"
)

// WindowView is the evaluated state of one window at a given instant.
type WindowView struct {
	Window    CutWindow
	Status    Status
	Start     time.Time
	End       time.Time
	Remaining time.Duration
	Pinned    bool
	Err       error
}

// ExpireFunc is called after a window's countdown reaches zero and the
// window has been pinned.
type ExpireFunc func(scope string, w CutWindow)

// Board owns the countdowns of active windows and the windows pinned to
// ALREADY_OCCURRED after their countdown expired. Windows are grouped into
// scopes (one per query); evaluating a scope stops the countdowns of windows
// that are no longer part of it.
type Board struct {
	loc      *time.Location
	onExpire ExpireFunc

	mu     sync.Mutex
	pinned map[string]time.Time
	timers map[string]*boardTimer
	scopes map[string]map[string]struct{}
	closed bool
}

type boardTimer struct {
	scope     string
	window    CutWindow
	end       time.Time
	countdown *Countdown
}

// NewBoard creates a board that interprets anchors in loc.
func NewBoard(loc *time.Location, onExpire ExpireFunc) *Board {
	if loc == nil {
		loc = time.Local
	}
	return &Board{
		loc:      loc,
		onExpire: onExpire,
		pinned:   make(map[string]time.Time),
		timers:   make(map[string]*boardTimer),
		scopes:   make(map[string]map[string]struct{}),
	}
}

// Location returns the board's display location.
func (b *Board) Location() *time.Location {
	return b.loc
}

// Evaluate classifies every window of a scope at now. Windows that fail to
// parse are returned with Err set and do not affect the others.
func (b *Board) Evaluate(scope string, now time.Time, windows []CutWindow) []WindowView {
	now = now.In(b.loc)
	views := make([]WindowView, 0, len(windows))
	seen := make(map[string]struct{}, len(windows))

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range windows {
		key := w.Key()
		seen[key] = struct{}{}
		views = append(views, b.evaluateLocked(scope, key, now, w))
	}

	for key := range b.scopes[scope] {
		if _, ok := seen[key]; !ok {
			b.stopLocked(key)
		}
	}
	b.scopes[scope] = seen

	return views
}

// Peek classifies windows like Evaluate but leaves countdowns and scopes
// alone. Remaining time is computed from the window end.
func (b *Board) Peek(now time.Time, windows []CutWindow) []WindowView {
	now = now.In(b.loc)
	views := make([]WindowView, 0, len(windows))

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range windows {
		iv, err := w.Bounds(b.loc)
		if err != nil {
			views = append(views, WindowView{Window: w, Err: err})
			continue
		}
		view := WindowView{Window: w, Start: iv.Start, End: iv.End}
		if end, ok := b.pinned[w.Key()]; ok && end.Equal(iv.End) {
			view.Status = StatusAlreadyOccurred
			view.Pinned = true
		} else {
			view.Status = iv.Classify(now)
			if view.Status == StatusActive {
				view.Remaining = iv.Remaining(now)
			}
		}
		views = append(views, view)
	}
	return views
}

func (b *Board) evaluateLocked(scope, key string, now time.Time, w CutWindow) WindowView {
	iv, err := w.Bounds(b.loc)
	if err != nil {
		b.stopLocked(key)
		return WindowView{Window: w, Err: err}
	}

	view := WindowView{Window: w, Start: iv.Start, End: iv.End}

	if end, ok := b.pinned[key]; ok && end.Equal(iv.End) {
		b.stopLocked(key)
		view.Status = StatusAlreadyOccurred
		view.Pinned = true
		return view
	}

	view.Status = iv.Classify(now)

	switch view.Status {
	case StatusActive:
		t, ok := b.timers[key]
		if !ok || !t.end.Equal(iv.End) {
			b.stopLocked(key)
			t = b.startLocked(scope, key, w, iv.End, now)
		}
		view.Remaining = t.countdown.Remaining()
	case StatusAlreadyOccurred:
		if _, ok := b.timers[key]; ok {
			b.pinned[key] = iv.End
			view.Pinned = true
		}
		b.stopLocked(key)
	default:
		b.stopLocked(key)
	}

	return view
}

func (b *Board) startLocked(scope, key string, w CutWindow, end, now time.Time) *boardTimer {
	t := &boardTimer{
		scope:     scope,
		window:    w,
		end:       end,
		countdown: NewCountdown(end, now),
	}
	b.timers[key] = t

	if !b.closed {
		t.countdown.Start()
		go b.watch(key, t)
	}
	return t
}

func (b *Board) watch(key string, t *boardTimer) {
	select {
	case <-t.countdown.Expired():
	case <-t.countdown.Done():
		return
	}

	b.mu.Lock()
	current, ok := b.timers[key]
	if !ok || current != t {
		b.mu.Unlock()
		return
	}
	b.pinned[key] = t.end
	delete(b.timers, key)
	b.mu.Unlock()

	if b.onExpire != nil {
		b.onExpire(t.scope, t.window)
	}
}

func (b *Board) stopLocked(key string) {
	if t, ok := b.timers[key]; ok {
		t.countdown.Stop()
		delete(b.timers, key)
	}
}

// IsPinned reports whether w has been frozen to ALREADY_OCCURRED.
func (b *Board) IsPinned(w CutWindow) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pinned[w.Key()]
	return ok
}

// ActiveCount returns the number of running countdowns.
func (b *Board) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

// Forget stops every countdown of a scope and drops the scope.
func (b *Board) Forget(scope string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.scopes[scope] {
		b.stopLocked(key)
	}
	delete(b.scopes, scope)
}

// Prune drops pins for windows that ended before cutoff and returns how
// many were removed.
func (b *Board) Prune(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, end := range b.pinned {
		if end.Before(cutoff) {
			delete(b.pinned, key)
			removed++
		}
	}
	return removed
}

// Close stops all countdowns. The board keeps answering Evaluate but no
// longer starts timers.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for key := range b.timers {
		b.stopLocked(key)
	}
}
