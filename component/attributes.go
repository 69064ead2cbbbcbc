package component

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Flag is a boolean attribute consulted by generic systems (networking, snapshots, default synthesis).
type Flag uint16

const (
	Debuggable Flag = 1 << iota
	Networked
	Store
	Resource
	MaybeResource
	Serializable
	Enum
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{Debuggable, "Debuggable"},
	{Networked, "Networked"},
	{Store, "Store"},
	{Resource, "Resource"},
	{MaybeResource, "MaybeResource"},
	{Serializable, "Serializable"},
	{Enum, "Enum"},
}

// ParseFlag resolves an attribute name such as "Serializable". Matching is case-insensitive.
func ParseFlag(name string) (Flag, error) {
	for _, f := range flagNames {
		if strings.EqualFold(f.name, name) {
			return f.flag, nil
		}
	}
	return 0, eris.Errorf("unknown component attribute %q", name)
}

func (f Flag) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// Attributes is the attribute store attached to a component descriptor.
type Attributes struct {
	Flags       Flag
	Name        string
	Description string

	defaultVal any
	hasDefault bool
}

func (a Attributes) Has(flag Flag) bool {
	return a.Flags&flag == flag
}

// Default returns the value registered with WithDefault, if any.
func (a Attributes) Default() (any, bool) {
	return a.defaultVal, a.hasDefault
}

// Option augments the attributes of a component at registration time.
type Option func(*Attributes)

func WithAttributes(flags ...Flag) Option {
	return func(a *Attributes) {
		for _, f := range flags {
			a.Flags |= f
		}
	}
}

func WithName(name string) Option {
	return func(a *Attributes) {
		a.Name = name
	}
}

func WithDescription(description string) Option {
	return func(a *Attributes) {
		a.Description = description
	}
}

// WithDefault sets the value used when a component has to be synthesized. The value must have the
// component's type; Register rejects it otherwise.
func WithDefault(value any) Option {
	return func(a *Attributes) {
		a.defaultVal = value
		a.hasDefault = true
	}
}
