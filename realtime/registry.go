package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pielancer314/PizzaForPi/model"
)

var ErrForbidden = errors.New("subscription not allowed")

// Subscriber is one live connection.
type Subscriber interface {
	ID() string
	Principal() model.Principal
	// Deliver enqueues msg without blocking and reports whether it fit.
	Deliver(msg Message) bool
}

type Authorizer interface {
	CanSubscribe(ctx context.Context, p model.Principal, t Topic) error
}

// OrderAccess decides whether p may watch an order.
type OrderAccess func(ctx context.Context, p model.Principal, orderID string) error

// Policy is the subscription policy: a user topic belongs to that user, a
// restaurant topic to its staff, and order topics are delegated to Orders.
// Admins may subscribe to anything.
type Policy struct {
	Orders OrderAccess
}

func (pol Policy) CanSubscribe(ctx context.Context, p model.Principal, t Topic) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if p.IsAdmin() {
		return nil
	}
	switch t.Kind {
	case KindUser:
		id, _ := t.NumericID()
		if id != p.UserID {
			return fmt.Errorf("%w: %s", ErrForbidden, t)
		}
	case KindRestaurant:
		id, _ := t.NumericID()
		if !p.WorksAt(id) {
			return fmt.Errorf("%w: %s", ErrForbidden, t)
		}
	case KindOrder:
		if pol.Orders == nil {
			return fmt.Errorf("%w: %s", ErrForbidden, t)
		}
		if err := pol.Orders(ctx, p, t.ID); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrForbidden, t, err)
		}
	}
	return nil
}

// Registry tracks topic membership in both directions.
type Registry struct {
	mu     sync.RWMutex
	topics map[Topic]map[string]Subscriber
	subs   map[string]map[Topic]struct{}

	auth Authorizer
}

func NewRegistry(auth Authorizer) *Registry {
	return &Registry{
		topics: make(map[Topic]map[string]Subscriber),
		subs:   make(map[string]map[Topic]struct{}),
		auth:   auth,
	}
}

// Subscribe adds s to t once the authorizer agrees. Subscribing twice is
// a no-op.
func (r *Registry) Subscribe(ctx context.Context, s Subscriber, t Topic) error {
	if err := r.auth.CanSubscribe(ctx, s.Principal(), t); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.topics[t]
	if !ok {
		members = make(map[string]Subscriber)
		r.topics[t] = members
	}
	members[s.ID()] = s

	joined, ok := r.subs[s.ID()]
	if !ok {
		joined = make(map[Topic]struct{})
		r.subs[s.ID()] = joined
	}
	joined[t] = struct{}{}
	return nil
}

// Unsubscribe removes id from t. Once it returns no publish can hand the
// subscriber another event for t.
func (r *Registry) Unsubscribe(id string, t Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(id, t)
}

// UnsubscribeAll drops every membership of id. Safe to call repeatedly.
func (r *Registry) UnsubscribeAll(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t := range r.subs[id] {
		r.remove(id, t)
	}
	delete(r.subs, id)
}

func (r *Registry) remove(id string, t Topic) {
	if members, ok := r.topics[t]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.topics, t)
		}
	}
	if joined, ok := r.subs[id]; ok {
		delete(joined, t)
		if len(joined) == 0 {
			delete(r.subs, id)
		}
	}
}

// MembersOf returns the subscriber ids of t, sorted.
func (r *Registry) MembersOf(t Topic) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.topics[t]))
	for id := range r.topics[t] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) IsSubscribed(id string, t Topic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[id][t]
	return ok
}

// TopicsOf returns the topics id is subscribed to.
func (r *Registry) TopicsOf(id string) []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Topic, 0, len(r.subs[id]))
	for t := range r.subs[id] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// each calls fn for every member of t under the read lock, so a
// concurrent Unsubscribe waits until fn has returned for everyone.
func (r *Registry) each(t Topic, fn func(Subscriber)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.topics[t] {
		fn(s)
	}
}
