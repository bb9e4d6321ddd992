// Package sse streams conversion progress to HTTP clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event is a named SSE message. Data is encoded as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Book event kinds accepted by PublishBookEvent.
const (
	BookConverted = "converted"
	BookFailed    = "failed"
	BookRemoved   = "removed"
)

// BookEvent is the payload of a book.* event.
type BookEvent struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Warnings int    `json:"warnings,omitempty"`
	Error    string `json:"error,omitempty"`
}

const (
	clientBuffer = 64
	keepAlive    = 15 * time.Second
)

// hub is the state owned by the broker loop.
type hub struct {
	clients     map[chan []byte]struct{}
	lastCatalog time.Time
}

func (h *hub) send(frame []byte) {
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
			// slow client, drop
		}
	}
}

// Broker fans events out to subscribed clients. All client bookkeeping
// happens on one goroutine; public methods hand it closures over ops.
type Broker struct {
	catalogMin time.Duration

	ops     chan func(*hub)
	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. catalogThrottle is the minimum gap between two
// catalog.updated events; non-positive means two seconds.
func NewBroker(catalogThrottle time.Duration) *Broker {
	if catalogThrottle <= 0 {
		catalogThrottle = 2 * time.Second
	}
	b := &Broker{
		catalogMin: catalogThrottle,
		ops:        make(chan func(*hub), 256),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)
	h := &hub{clients: make(map[chan []byte]struct{})}
	for {
		select {
		case <-b.stop:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// do queues op on the broker loop. It reports false once the broker is
// closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// doWait is do followed by waiting for op to finish.
func (b *Broker) doWait(op func(*hub)) bool {
	done := make(chan struct{})
	if !b.do(func(h *hub) { op(h); close(done) }) {
		return false
	}
	select {
	case <-done:
		return true
	case <-b.stopped:
		// op may have run just before the loop exited.
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// Close stops the loop and closes every client channel. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed by
// Unsubscribe or Close; on a closed broker it comes back already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.doWait(func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.doWait(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	n := 0
	b.doWait(func(h *hub) { n = len(h.clients) })
	return n
}

// Publish sends an event to all connected clients. Events whose data does
// not encode are dropped.
func (b *Broker) Publish(event Event) {
	msg, err := frame(event)
	if err != nil {
		return
	}
	b.do(func(h *hub) { h.send(msg) })
}

// PublishBookEvent publishes book.<kind> and, unless the book failed, a
// throttled catalog.updated. Unknown kinds are ignored.
func (b *Broker) PublishBookEvent(kind string, ev BookEvent) {
	switch kind {
	case BookConverted, BookFailed, BookRemoved:
	default:
		return
	}
	msg, err := frame(Event{Type: "book." + kind, Data: ev})
	if err != nil {
		return
	}
	b.do(func(h *hub) {
		h.send(msg)
		if kind == BookFailed {
			return
		}
		if now := time.Now(); now.Sub(h.lastCatalog) >= b.catalogMin {
			h.lastCatalog = now
			h.send(catalogUpdated)
		}
	})
}

var catalogUpdated = []byte("event: catalog.updated\ndata: {}\n\n")

func frame(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event.Type, payload), nil
}

// ServeHTTP streams events to one client until it disconnects or the
// broker closes. Idle streams get a comment line every 15 seconds so
// proxies keep them open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
