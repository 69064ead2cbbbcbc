// Package intent records revertible user actions as entities and supports per-user undo and redo.
//
// Every intent carries its user and timestamp. Two ordered indexes keyed (user, timestamp) split intents
// into applied and reverted ones, so undo (latest applied), redo (oldest reverted) and history lookups
// are range queries instead of scans.
package intent

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	"pkg.world.dev/world-engine/ecstore/index"
	"pkg.world.dev/world-engine/ecstore/search/filter"
	"pkg.world.dev/world-engine/ecstore/types"
)

var (
	ErrUnknownIntent = eris.New("intent handler not registered")
	ErrNothingToUndo = eris.New("nothing to undo")
	ErrNothingToRedo = eris.New("nothing to redo")
)

// Components holds the descriptors of the intent components.
type Components struct {
	ID        component.Typed[string]
	Name      component.Typed[string]
	UserID    component.Typed[string]
	Timestamp component.Typed[time.Duration]
	Payload   component.Typed[string]
	Reverted  component.Typed[component.EmptyValue]
	Applied   component.Typed[component.EmptyValue]
}

// RegisterComponents registers the intent components. It is idempotent.
func RegisterComponents(r *component.Registry) (Components, error) {
	var c Components
	var err error
	wire := component.WithAttributes(component.Serializable, component.Networked)
	if c.ID, err = component.Register[string](r, "intent::id", wire); err != nil {
		return c, err
	}
	if c.Name, err = component.Register[string](r, "intent::name", wire); err != nil {
		return c, err
	}
	if c.UserID, err = component.Register[string](r, "intent::user_id", wire); err != nil {
		return c, err
	}
	if c.Timestamp, err = component.Register[time.Duration](r, "intent::timestamp", wire,
		component.WithDescription("time since the unix epoch")); err != nil {
		return c, err
	}
	if c.Payload, err = component.Register[string](r, "intent::payload", wire); err != nil {
		return c, err
	}
	marker := component.WithAttributes(component.Networked)
	if c.Reverted, err = component.Register[component.EmptyValue](r, "intent::reverted", marker); err != nil {
		return c, err
	}
	if c.Applied, err = component.Register[component.EmptyValue](r, "intent::applied", marker); err != nil {
		return c, err
	}
	return c, nil
}

// Handler applies and reverts one kind of intent against the world.
type Handler interface {
	Apply(w *gamestate.World, intent types.EntityID, payload string) error
	Revert(w *gamestate.World, intent types.EntityID, payload string) error
}

// Record describes one intent.
type Record struct {
	Entity    types.EntityID
	ID        string
	Name      string
	UserID    string
	Timestamp time.Duration
	Payload   string
}

// Log is the intent log of one world.
type Log struct {
	world    *gamestate.World
	comps    Components
	handlers map[string]Handler
	applied  *index.Indexer
	reverted *index.Indexer
	now      func() time.Time
}

type Option func(*Log)

// WithClock replaces the clock used to timestamp pushed intents.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// NewLog builds the log over w. The intent components must have been registered with RegisterComponents
// before w was created.
func NewLog(w *gamestate.World, opts ...Option) (*Log, error) {
	comps, err := RegisterComponents(w.Registry())
	if err != nil {
		return nil, err
	}
	l := &Log{
		world:    w,
		comps:    comps,
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.applied = index.NewIndexer(index.New(comps.UserID.Desc, comps.Timestamp.Desc),
		filter.Contains(comps.Applied.Desc), filter.Contains(comps.Reverted.Desc))
	l.reverted = index.NewIndexer(index.New(comps.UserID.Desc, comps.Timestamp.Desc),
		filter.Contains(comps.Reverted.Desc), filter.Contains(comps.Applied.Desc))
	l.Sync()
	return l, nil
}

func (l *Log) Components() Components {
	return l.comps
}

func (l *Log) Register(name string, h Handler) {
	l.handlers[name] = h
}

// Sync updates both indexes from the world.
func (l *Log) Sync() {
	l.applied.Update(l.world)
	l.reverted.Update(l.world)
}

func userRange(user string) (index.Key, index.Key) {
	return index.KeyMin(index.Exact(user), index.Min()), index.KeyMax(index.Exact(user), index.Max())
}

// Push applies a new intent for user and records it. The user's reverted intents can no longer be
// redone and are removed.
func (l *Log) Push(user, name, payload string) (Record, error) {
	h, ok := l.handlers[name]
	if !ok {
		return Record{}, eris.Wrapf(ErrUnknownIntent, "intent %q", name)
	}
	rec := Record{
		ID:        uuid.NewString(),
		Name:      name,
		UserID:    user,
		Timestamp: time.Duration(l.now().UnixNano()),
		Payload:   payload,
	}
	id, err := l.world.Spawn(
		component.NewUnit(l.comps.ID, rec.ID),
		component.NewUnit(l.comps.Name, rec.Name),
		component.NewUnit(l.comps.UserID, rec.UserID),
		component.NewUnit(l.comps.Timestamp, rec.Timestamp),
		component.NewUnit(l.comps.Payload, rec.Payload),
	)
	if err != nil {
		return Record{}, err
	}
	rec.Entity = id
	if err := h.Apply(l.world, id, payload); err != nil {
		_, _ = l.world.Despawn(id)
		return Record{}, eris.Wrapf(err, "failed to apply intent %q", name)
	}
	if err := gamestate.Add(l.world, l.comps.Applied, id, component.EmptyValue{}); err != nil {
		if rerr := h.Revert(l.world, id, payload); rerr != nil {
			l.world.Logger().Error().Err(rerr).Str("intent", name).Str("user", user).
				Msg("failed to revert intent that could not be marked applied")
		}
		_, _ = l.world.Despawn(id)
		return Record{}, eris.Wrapf(err, "failed to mark intent %q applied", name)
	}

	var stale []types.EntityID
	lo, hi := userRange(user)
	l.reverted.Index().Range(lo, hi, func(e index.Entry) bool {
		stale = append(stale, e.ID)
		return true
	})
	for _, sid := range stale {
		if _, err := l.world.Despawn(sid); err != nil {
			return Record{}, err
		}
	}
	l.Sync()
	return rec, nil
}

// Undo reverts the most recent applied intent of user.
func (l *Log) Undo(user string) (Record, error) {
	lo, hi := userRange(user)
	e, ok := l.applied.Index().Last(lo, hi)
	if !ok {
		return Record{}, eris.Wrapf(ErrNothingToUndo, "user %q", user)
	}
	rec, h, err := l.load(e.ID)
	if err != nil {
		return Record{}, err
	}
	if err := h.Revert(l.world, e.ID, rec.Payload); err != nil {
		return Record{}, eris.Wrapf(err, "failed to revert intent %q", rec.Name)
	}
	if _, err := l.world.Remove(e.ID, l.comps.Applied.Desc); err != nil {
		return Record{}, err
	}
	if err := gamestate.Add(l.world, l.comps.Reverted, e.ID, component.EmptyValue{}); err != nil {
		return Record{}, err
	}
	l.Sync()
	return rec, nil
}

// Redo re-applies the oldest reverted intent of user.
func (l *Log) Redo(user string) (Record, error) {
	lo, hi := userRange(user)
	e, ok := l.reverted.Index().First(lo, hi)
	if !ok {
		return Record{}, eris.Wrapf(ErrNothingToRedo, "user %q", user)
	}
	rec, h, err := l.load(e.ID)
	if err != nil {
		return Record{}, err
	}
	if err := h.Apply(l.world, e.ID, rec.Payload); err != nil {
		return Record{}, eris.Wrapf(err, "failed to apply intent %q", rec.Name)
	}
	if _, err := l.world.Remove(e.ID, l.comps.Reverted.Desc); err != nil {
		return Record{}, err
	}
	if err := gamestate.Add(l.world, l.comps.Applied, e.ID, component.EmptyValue{}); err != nil {
		return Record{}, err
	}
	l.Sync()
	return rec, nil
}

// Last returns the most recent applied intent of user.
func (l *Log) Last(user string) (Record, bool) {
	lo, hi := userRange(user)
	e, ok := l.applied.Index().Last(lo, hi)
	if !ok {
		return Record{}, false
	}
	rec, _, err := l.load(e.ID)
	if err != nil {
		return Record{}, false
	}
	return rec, true
}

// History returns the applied intents of user, oldest first.
func (l *Log) History(user string) []Record {
	var out []Record
	lo, hi := userRange(user)
	l.applied.Index().Range(lo, hi, func(e index.Entry) bool {
		if rec, _, err := l.load(e.ID); err == nil {
			out = append(out, rec)
		}
		return true
	})
	return out
}

func (l *Log) load(id types.EntityID) (Record, Handler, error) {
	rec := Record{Entity: id}
	var err error
	if rec.ID, err = gamestate.Get(l.world, l.comps.ID, id); err != nil {
		return rec, nil, err
	}
	if rec.Name, err = gamestate.Get(l.world, l.comps.Name, id); err != nil {
		return rec, nil, err
	}
	if rec.UserID, err = gamestate.Get(l.world, l.comps.UserID, id); err != nil {
		return rec, nil, err
	}
	if rec.Timestamp, err = gamestate.Get(l.world, l.comps.Timestamp, id); err != nil {
		return rec, nil, err
	}
	if rec.Payload, err = gamestate.Get(l.world, l.comps.Payload, id); err != nil {
		return rec, nil, err
	}
	h, ok := l.handlers[rec.Name]
	if !ok {
		return rec, nil, eris.Wrapf(ErrUnknownIntent, "intent %q", rec.Name)
	}
	return rec, h, nil
}
