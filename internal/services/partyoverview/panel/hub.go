package panel

import (
	"sort"
	"sync"
)

// Hub owns one panel per viewer and fans out change notifications.
type Hub struct {
	deps Deps

	mu          sync.Mutex
	panels      map[string]*Panel
	closed      map[string]struct{}
	subscribers map[uint64]subscriber
	nextID      uint64
}

type subscriber struct {
	viewerID string
	ch       chan struct{}
}

// NewHub returns a hub whose panels share deps.
func NewHub(deps Deps) *Hub {
	return &Hub{
		deps:        deps,
		panels:      make(map[string]*Panel),
		closed:      make(map[string]struct{}),
		subscribers: make(map[uint64]subscriber),
	}
}

// Panel returns the viewer's panel, creating it on first use. A panel
// recreated after Close starts closed.
func (h *Hub) Panel(viewerID string) *Panel {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.panels[viewerID]; ok {
		return p
	}
	p := New(h.deps)
	if _, ok := h.closed[viewerID]; ok {
		p.active = false
		delete(h.closed, viewerID)
	}
	p.notify = func() { h.NotifyViewer(viewerID) }
	h.panels[viewerID] = p
	return p
}

// viewers returns the IDs of viewers with a panel, sorted.
func (h *Hub) viewers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.panels))
	for id := range h.panels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribe registers for changes to viewerID's panel and to the roster.
// The returned cancel func must be called to release the subscription.
//
// Notifications coalesce: a subscriber that has not drained its channel
// misses further signals until it does.
func (h *Hub) Subscribe(viewerID string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	ch := make(chan struct{}, 1)
	h.subscribers[id] = subscriber{viewerID: viewerID, ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			if p, ok := h.panels[viewerID]; ok && !p.isActive() {
				h.releaseLocked(viewerID, p)
			}
			h.mu.Unlock()
		})
	}
}

// Close tears down viewerID's panel. The panel is dropped from the hub
// unless the viewer still has subscribers; only its closed flag is kept.
func (h *Hub) Close(viewerID string) {
	h.mu.Lock()
	p, ok := h.panels[viewerID]
	h.mu.Unlock()
	if !ok {
		return
	}
	p.Close()

	h.mu.Lock()
	h.releaseLocked(viewerID, p)
	h.mu.Unlock()
}

// releaseLocked drops p when it is still viewerID's panel and nobody is
// subscribed to it. h.mu must be held.
func (h *Hub) releaseLocked(viewerID string, p *Panel) {
	if h.panels[viewerID] != p {
		return
	}
	for _, s := range h.subscribers {
		if s.viewerID == viewerID {
			return
		}
	}
	delete(h.panels, viewerID)
	h.closed[viewerID] = struct{}{}
}

// NotifyViewer signals subscribers of viewerID.
func (h *Hub) NotifyViewer(viewerID string) {
	h.broadcast(func(s subscriber) bool { return s.viewerID == viewerID })
}

// NotifyAll signals every subscriber, e.g. after a roster change.
func (h *Hub) NotifyAll() {
	h.broadcast(func(subscriber) bool { return true })
}

func (h *Hub) broadcast(match func(subscriber) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subscribers {
		if !match(s) {
			continue
		}
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}
