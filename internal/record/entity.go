package record

import (
	"github.com/google/uuid"
)

// Entity is a record of some entity type: a (type, id) identity plus an
// insertion-ordered mapping from attribute name to Value.
//
// An absent key means the attribute is not set. Assigning Null during
// update is a distinct instruction meaning "clear this attribute"; stored
// records never hold Null values.
type Entity struct {
	Type string
	ID   uuid.UUID

	names []string
	attrs map[string]Value
}

// New creates an empty entity of the given type.
func New(entityType string) *Entity {
	return &Entity{Type: entityType}
}

// NewWithID creates an entity of the given type and id.
func NewWithID(entityType string, id uuid.UUID) *Entity {
	return &Entity{Type: entityType, ID: id}
}

// Set assigns an attribute value. A nil value is stored as Null.
// Re-assigning an existing attribute keeps its original position.
func (e *Entity) Set(name string, v Value) {
	if v == nil {
		v = Null{}
	}
	if e.attrs == nil {
		e.attrs = make(map[string]Value)
	}
	if _, exists := e.attrs[name]; !exists {
		e.names = append(e.names, name)
	}
	e.attrs[name] = v
}

// Get returns the attribute value and whether it is set.
func (e *Entity) Get(name string) (Value, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// Has reports whether the attribute is set.
func (e *Entity) Has(name string) bool {
	_, ok := e.attrs[name]
	return ok
}

// Remove deletes the attribute if present.
func (e *Entity) Remove(name string) {
	if _, ok := e.attrs[name]; !ok {
		return
	}
	delete(e.attrs, name)
	for i, n := range e.names {
		if n == name {
			e.names = append(e.names[:i], e.names[i+1:]...)
			break
		}
	}
}

// Names returns the attribute names in insertion order.
func (e *Entity) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Len returns the number of set attributes.
func (e *Entity) Len() int { return len(e.attrs) }

// Clone returns a deep-enough copy: value kinds are immutable, so
// copying the attribute map and order slice is sufficient.
func (e *Entity) Clone() *Entity {
	c := &Entity{Type: e.Type, ID: e.ID}
	if e.attrs != nil {
		c.attrs = make(map[string]Value, len(e.attrs))
		for k, v := range e.attrs {
			c.attrs[k] = v
		}
		c.names = make([]string, len(e.names))
		copy(c.names, e.names)
	}
	return c
}

// Reference returns a Ref pointing at this entity.
func (e *Entity) Reference() Ref {
	return Ref{Entity: e.Type, ID: e.ID}
}

// GetString returns a string attribute, or "" if unset or another kind.
func (e *Entity) GetString(name string) string {
	if v, ok := e.attrs[name]; ok {
		if s, ok := Unwrap(v).(String); ok {
			return string(s)
		}
	}
	return ""
}

// GetRef returns a reference attribute and whether it is one.
func (e *Entity) GetRef(name string) (Ref, bool) {
	if v, ok := e.attrs[name]; ok {
		if r, ok := Unwrap(v).(Ref); ok {
			return r, true
		}
	}
	return Ref{}, false
}

// GetInt returns an integer attribute, or 0 if unset or another kind.
func (e *Entity) GetInt(name string) int64 {
	if v, ok := e.attrs[name]; ok {
		if n, ok := Unwrap(v).(Int); ok {
			return int64(n)
		}
	}
	return 0
}

// GetOption returns an enumeration attribute and whether it is one.
func (e *Entity) GetOption(name string) (Option, bool) {
	if v, ok := e.attrs[name]; ok {
		if o, ok := Unwrap(v).(Option); ok {
			return o, true
		}
	}
	return 0, false
}
