// Package registry holds the process-wide subscription and alarm state of
// the simulator.
package registry

import (
	"sort"
	"strconv"
	"sync"
)

// Subscription parameter names understood by the typed accessors.
const (
	ParamURI      = "uri"
	ParamBuffer   = "buffer"
	ParamInterval = "interval"
)

// Subscription is a named set of client-supplied parameters. Params are kept
// verbatim, so what a client writes is exactly what it reads back.
type Subscription struct {
	Name   string
	Params map[string]string
}

func (s Subscription) URI() string {
	return s.Params[ParamURI]
}

func (s Subscription) BufferMode() string {
	return s.Params[ParamBuffer]
}

// Interval returns the interval in seconds, and false when it is absent or
// not an integer.
func (s Subscription) Interval() (int, bool) {
	raw, ok := s.Params[ParamInterval]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DefaultSubscriptions is the subscription a factory-fresh adapter reports.
func DefaultSubscriptions() []Subscription {
	return []Subscription{
		{
			Name: "sally",
			Params: map[string]string{
				ParamURI:      "vehicle/data/Temperature",
				ParamBuffer:   "queue",
				ParamInterval: "10",
			},
		},
	}
}

// Subscriptions is a guarded map of subscriptions keyed by name.
type Subscriptions struct {
	mu   sync.RWMutex
	subs map[string]map[string]string
}

func NewSubscriptions(seed ...Subscription) *Subscriptions {
	s := &Subscriptions{subs: make(map[string]map[string]string)}
	for _, sub := range seed {
		s.Put(sub.Name, sub.Params)
	}
	return s
}

// Put creates or fully replaces the subscription name.
func (s *Subscriptions) Put(name string, params map[string]string) Subscription {
	stored := cloneParams(params)

	s.mu.Lock()
	s.subs[name] = stored
	s.mu.Unlock()

	return Subscription{Name: name, Params: cloneParams(stored)}
}

func (s *Subscriptions) Get(name string) (Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	params, ok := s.subs[name]
	if !ok {
		return Subscription{}, false
	}
	return Subscription{Name: name, Params: cloneParams(params)}, true
}

// Delete removes name and returns what was stored under it.
func (s *Subscriptions) Delete(name string) (Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	params, ok := s.subs[name]
	if !ok {
		return Subscription{}, false
	}
	delete(s.subs, name)
	return Subscription{Name: name, Params: params}, true
}

// Names returns the subscription names in sorted order.
func (s *Subscriptions) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.subs))
	for name := range s.subs {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (s *Subscriptions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func cloneParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Alarms is a guarded set of alarm names.
type Alarms struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

func NewAlarms() *Alarms {
	return &Alarms{names: make(map[string]struct{})}
}

// Register adds name and reports whether it was not registered before.
func (a *Alarms) Register(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.names[name]; ok {
		return false
	}
	a.names[name] = struct{}{}
	return true
}

func (a *Alarms) Has(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.names[name]
	return ok
}

// Names returns the registered alarm names in sorted order.
func (a *Alarms) Names() []string {
	a.mu.RLock()
	names := make([]string, 0, len(a.names))
	for name := range a.names {
		names = append(names, name)
	}
	a.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (a *Alarms) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.names)
}
