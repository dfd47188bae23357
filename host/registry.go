/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package host

import (
	"context"
	"sync"
	"time"

	loglib "github.com/sabouaram/cqlcore/logger"
)

// Config configures a Registry.
type Config struct {
	Reconnection ReconnectionPolicy
	// Probe attempts one reconnection to endpoint; a nil error brings the
	// Host back up.
	Probe  func(ctx context.Context, endpoint string) error
	Logger loglib.Logger
}

type entry struct {
	host     *Host
	attempt  int
	cancel   context.CancelFunc
	inflight bool
}

// Registry is the authoritative set of known hosts (spec.md §4.3).
type Registry struct {
	cfg Config
	log loglib.Logger

	mu     sync.RWMutex
	hosts  map[string]*entry
	closed bool

	subMu     sync.Mutex
	subs      map[uint64]chan Event
	nextSubID uint64
}

func New(cfg Config) *Registry {
	log := cfg.Logger
	if log == nil {
		log = loglib.New()
	}
	return &Registry{
		cfg:   cfg,
		log:   log,
		hosts: make(map[string]*entry),
		subs:  make(map[uint64]chan Event),
	}
}

// AddOrBringUp creates the Host if unknown, or brings it up if it was
// down. Returns true if this call transitioned down->up or created the
// Host (spec.md §4.3).
func (r *Registry) AddOrBringUp(endpoint string, meta Meta) bool {
	r.mu.Lock()
	e, known := r.hosts[endpoint]

	if !known {
		h := &Host{Endpoint: endpoint, Meta: meta, Status: StatusUp}
		e = &entry{host: h}
		r.hosts[endpoint] = e
		r.mu.Unlock()

		r.emit(Event{Type: EventAdded, Host: h})
		r.emit(Event{Type: EventUp, Host: h})
		return true
	}

	wasDown := e.host.Status == StatusDown
	h := &Host{Endpoint: endpoint, Meta: meta, Status: StatusUp}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.host = h
	e.attempt = 0
	r.mu.Unlock()

	if wasDown {
		r.emit(Event{Type: EventUp, Host: h})
	}
	return wasDown
}

// SetDown marks endpoint down and schedules a reconnection attempt via
// the Reconnection Policy.
func (r *Registry) SetDown(endpoint string) {
	r.mu.Lock()
	e, known := r.hosts[endpoint]
	if !known || e.host.Status == StatusDown {
		r.mu.Unlock()
		return
	}

	h := &Host{Endpoint: e.host.Endpoint, Meta: e.host.Meta, Status: StatusDown}
	e.host = h
	closed := r.closed
	r.mu.Unlock()

	r.emit(Event{Type: EventDown, Host: h})

	if !closed {
		r.scheduleReconnect(endpoint)
	}
}

// Remove drops endpoint entirely, cancelling any pending reconnection.
func (r *Registry) Remove(endpoint string) {
	r.mu.Lock()
	e, known := r.hosts[endpoint]
	if !known {
		r.mu.Unlock()
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(r.hosts, endpoint)
	r.mu.Unlock()

	r.emit(Event{Type: EventRemoved, Host: e.host})
}

// TryGet returns the current Host snapshot for endpoint, if known.
func (r *Registry) TryGet(endpoint string) (*Host, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.hosts[endpoint]
	if !ok {
		return nil, false
	}
	return e.host, true
}

// Snapshot returns every known Host.
func (r *Registry) Snapshot() []*Host {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Host, 0, len(r.hosts))
	for _, e := range r.hosts {
		out = append(out, e.host)
	}
	return out
}

// Subscribe returns a Subscription delivering every future Event.
func (r *Registry) Subscribe() *Subscription {
	ch := make(chan Event, 16)

	r.subMu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = ch
	r.subMu.Unlock()

	return &Subscription{C: ch, r: r, id: id}
}

// Close cancels every pending reconnection attempt and closes every
// Subscription's channel.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	for _, e := range r.hosts {
		if e.cancel != nil {
			e.cancel()
		}
	}
	r.mu.Unlock()

	r.subMu.Lock()
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.subMu.Unlock()
}

func (r *Registry) emit(ev Event) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (r *Registry) scheduleReconnect(endpoint string) {
	r.mu.Lock()
	e, known := r.hosts[endpoint]
	if !known || e.inflight {
		r.mu.Unlock()
		return
	}
	e.inflight = true
	attempt := e.attempt
	e.attempt++

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	var delay time.Duration
	if r.cfg.Reconnection != nil {
		delay = r.cfg.Reconnection.NextDelay(attempt)
	}

	h := *e.host
	h.NextReconnect = time.Now().Add(delay)
	e.host = &h
	r.mu.Unlock()

	go r.runReconnect(ctx, endpoint, delay)
}

func (r *Registry) runReconnect(ctx context.Context, endpoint string, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		r.clearInflight(endpoint)
		return
	case <-timer.C:
	}

	var err error
	if r.cfg.Probe != nil {
		err = r.cfg.Probe(ctx, endpoint)
	}

	r.clearInflight(endpoint)

	if err == nil {
		r.AddOrBringUp(endpoint, r.currentMeta(endpoint))
		return
	}

	if r.log != nil {
		r.log.Debug("reconnection attempt failed", loglib.Fields{"endpoint": endpoint, "error": err})
	}

	r.mu.RLock()
	e, known := r.hosts[endpoint]
	down := known && e.host.Status == StatusDown
	closed := r.closed
	r.mu.RUnlock()

	if known && down && !closed {
		r.scheduleReconnect(endpoint)
	}
}

func (r *Registry) currentMeta(endpoint string) Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.hosts[endpoint]; ok {
		return e.host.Meta
	}
	return Meta{}
}

func (r *Registry) clearInflight(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.hosts[endpoint]; ok {
		e.inflight = false
	}
}

// Subscription is a Registry.Subscribe handle, grounded on the
// mongo-driver Server.Subscribe/ServerSubscription pattern.
type Subscription struct {
	C  <-chan Event
	r  *Registry
	id uint64
}

// Unsubscribe closes the Subscription's channel and stops delivery.
func (s *Subscription) Unsubscribe() {
	s.r.subMu.Lock()
	defer s.r.subMu.Unlock()
	if ch, ok := s.r.subs[s.id]; ok {
		close(ch)
		delete(s.r.subs, s.id)
	}
}
