// Package dispatch emits flight-status requests to oracles. The in-process
// transport is a fan-out of buffered channels; additional transports (Redis
// pub/sub) can be attached through the Broadcaster interface.
package dispatch

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/surety/pkg/flight"
)

// subscriberBuffer bounds each subscriber channel. A subscriber that falls
// this far behind misses requests rather than blocking the dispatcher.
const subscriberBuffer = 16

// Broadcaster delivers a status request to an out-of-process audience.
type Broadcaster interface {
	Broadcast(ctx context.Context, req flight.StatusRequest) error
}

// Dispatcher opens status requests and broadcasts them to every subscriber.
// One request is active per flight key at a time; reopening supersedes the
// previous request without invalidating tallies accumulated under it.
type Dispatcher struct {
	mu          sync.RWMutex
	active      map[string]flight.StatusRequest
	subscribers map[int]chan flight.StatusRequest
	nextSub     int
	extra       []Broadcaster
	labelSpace  int
	clock       func() time.Time
	log         *slog.Logger
}

// NewDispatcher creates a dispatcher drawing index labels from [0, labelSpace).
func NewDispatcher(labelSpace int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		active:      make(map[string]flight.StatusRequest),
		subscribers: make(map[int]chan flight.StatusRequest),
		labelSpace:  labelSpace,
		clock:       time.Now,
		log:         logger.With("component", "dispatch"),
	}
}

// WithClock overrides the clock for testing.
func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	d.clock = clock
	return d
}

// AttachBroadcaster adds an out-of-process transport. Broadcast failures are
// logged, not propagated; the in-process fan-out is authoritative.
func (d *Dispatcher) AttachBroadcaster(b Broadcaster) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.extra = append(d.extra, b)
}

// Subscribe returns a channel of future status requests and a cancel
// function releasing the subscription.
func (d *Dispatcher) Subscribe() (<-chan flight.StatusRequest, func()) {
	ch := make(chan flight.StatusRequest, subscriberBuffer)
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subscribers[id] = ch
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if sub, ok := d.subscribers[id]; ok {
			delete(d.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// RequestStatus opens a request for the flight key, tagged with a label
// picked uniformly at random, and broadcasts it. Any previously open request
// for the key is superseded.
func (d *Dispatcher) RequestStatus(ctx context.Context, key flight.Key) (flight.StatusRequest, error) {
	label, err := randomLabel(d.labelSpace)
	if err != nil {
		return flight.StatusRequest{}, err
	}
	req := flight.StatusRequest{
		ID:         uuid.NewString(),
		FlightKey:  key,
		IndexLabel: label,
		CreatedAt:  d.clock(),
	}

	d.mu.Lock()
	d.active[key.String()] = req
	subs := make([]chan flight.StatusRequest, 0, len(d.subscribers))
	for _, ch := range d.subscribers {
		subs = append(subs, ch)
	}
	extra := make([]Broadcaster, len(d.extra))
	copy(extra, d.extra)
	d.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- req:
		default:
			// Subscriber backlogged; it misses this request.
		}
	}
	for _, b := range extra {
		if err := b.Broadcast(ctx, req); err != nil {
			d.log.Warn("external broadcast failed",
				"flight", key.String(), "error", err)
		}
	}

	d.log.Info("status request opened",
		"flight", key.String(), "index_label", label, "request_id", req.ID)
	return req, nil
}

// ActiveLabel returns the index label of the currently open request for key.
func (d *Dispatcher) ActiveLabel(key flight.Key) (int, bool) {
	req, ok := d.ActiveRequest(key)
	if !ok {
		return 0, false
	}
	return req.IndexLabel, true
}

// ActiveRequest returns the currently open request for key.
func (d *Dispatcher) ActiveRequest(key flight.Key) (flight.StatusRequest, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	req, ok := d.active[key.String()]
	return req, ok
}

func randomLabel(space int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(space)))
	if err != nil {
		return 0, fmt.Errorf("label draw: %w", err)
	}
	return int(n.Int64()), nil
}
