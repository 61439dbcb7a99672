// Package memory is an in-process store.Store. It mirrors the Postgres store's
// unique constraints and transaction semantics: a unit of work runs against a
// cloned state that replaces the live one only when the callback succeeds.
package memory

import (
	"context"
	"sync"

	leadsdomain "permit_ingest_backend/internal/leads/domain"
	outboxdomain "permit_ingest_backend/internal/outbox/domain"
	permitsdomain "permit_ingest_backend/internal/permits/domain"
	"permit_ingest_backend/internal/store"

	"github.com/google/uuid"
)

type state struct {
	permits map[uuid.UUID]permitsdomain.Permit
	leads   map[uuid.UUID]leadsdomain.Lead
	events  []outboxdomain.Event
	seq     int64
}

func newState() *state {
	return &state{
		permits: map[uuid.UUID]permitsdomain.Permit{},
		leads:   map[uuid.UUID]leadsdomain.Lead{},
	}
}

func (s *state) clone() *state {
	c := &state{
		permits: make(map[uuid.UUID]permitsdomain.Permit, len(s.permits)),
		leads:   make(map[uuid.UUID]leadsdomain.Lead, len(s.leads)),
		events:  make([]outboxdomain.Event, len(s.events)),
		seq:     s.seq,
	}
	for id, p := range s.permits {
		c.permits[id] = p
	}
	for id, l := range s.leads {
		c.leads[id] = l
	}
	copy(c.events, s.events)
	return c
}

// holder lets a nested unit of work publish its state to its parent.
type holder struct {
	st *state
}

// scope is what every view operates on. mu is set only for direct calls on
// the root store; inside a unit of work the root lock is already held.
type scope struct {
	h  *holder
	mu *sync.Mutex
}

func (s scope) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Store is a store.Store kept entirely in memory. Units of work are serialized.
type Store struct {
	mu   sync.Mutex
	root holder
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{root: holder{st: newState()}}
}

func (s *Store) rootScope() scope {
	return scope{h: &s.root, mu: &s.mu}
}

func (s *Store) Permits() store.PermitStore { return permitView{s.rootScope()} }
func (s *Store) Leads() store.LeadStore     { return leadView{s.rootScope()} }
func (s *Store) Events() store.EventStore   { return eventView{s.rootScope()} }

// WithinTx runs fn against a private copy of the state and publishes it only
// when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return within(ctx, &s.root, fn)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func within(ctx context.Context, parent *holder, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	child := &holder{st: parent.st.clone()}
	if err := fn(ctx, txScope{h: child}); err != nil {
		return err
	}
	parent.st = child.st
	return nil
}

type txScope struct {
	h *holder
}

func (t txScope) Permits() store.PermitStore { return permitView{scope{h: t.h}} }
func (t txScope) Leads() store.LeadStore     { return leadView{scope{h: t.h}} }
func (t txScope) Events() store.EventStore   { return eventView{scope{h: t.h}} }

func (t txScope) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return within(ctx, t.h, fn)
}
