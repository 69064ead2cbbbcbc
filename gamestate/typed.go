package gamestate

import (
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/types"
)

// Get returns the value of component c on id.
func Get[T any](w *World, c component.Typed[T], id types.EntityID) (T, error) {
	var zero T
	v, err := w.Get(id, c.Desc)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, eris.Wrapf(component.ErrTypeMismatch, "component %q holds %T", c.Path(), v)
	}
	return t, nil
}

func Set[T any](w *World, c component.Typed[T], id types.EntityID, value T) error {
	return w.Set(id, c.Desc, value)
}

func Add[T any](w *World, c component.Typed[T], id types.EntityID, value T) error {
	return w.Add(id, c.Desc, value)
}

// Update replaces the value of c on id with fn applied to a copy of it.
func Update[T any](w *World, c component.Typed[T], id types.EntityID, fn func(T) T) error {
	v, err := Get(w, c, id)
	if err != nil {
		return err
	}
	cloned, err := c.Clone(v)
	if err != nil {
		return err
	}
	return Set(w, c, id, fn(cloned.(T)))
}

// Resource returns the value of c on the resource entity.
func Resource[T any](w *World, c component.Typed[T]) (T, error) {
	return Get(w, c, w.resource)
}

func SetResource[T any](w *World, c component.Typed[T], value T) error {
	return w.SetResource(c.Desc, value)
}
