package record

import (
	"time"

	"github.com/google/uuid"
)

// Value is a sealed interface representing the attribute value kinds the
// simulated platform supports. Only types in this package implement it.
//
// Value kinds:
//   - Null: explicit "clear this attribute" instruction on update
//   - String, Int, Float, Bool, Time: scalars
//   - GUID: a plain identifier (primary-key attributes)
//   - Ref: a reference to another entity (type + id + cached display text)
//   - Option: an enumeration value (small integer code)
//   - Money: a monetary amount
//   - Aliased: a value sourced from a joined entity, tagged with the
//     join's alias so it cannot collide with root-entity attributes
type Value interface {
	attributeValue() // Marker method - seals interface to this package
}

// Null marks an attribute for removal during update. Stored records never
// contain Null values; an absent key means "not set".
type Null struct{}

func (Null) attributeValue() {}

// String is a text value.
type String string

func (String) attributeValue() {}

// Int is an integer value. Always int64.
type Int int64

func (Int) attributeValue() {}

// Float is a decimal/double value.
type Float float64

func (Float) attributeValue() {}

// Bool is a boolean (two-options) value.
type Bool bool

func (Bool) attributeValue() {}

// Time is a date-time value. The engine normalizes stored Time values
// to UTC on create and update.
type Time time.Time

func (Time) attributeValue() {}

// Std returns the value as a time.Time.
func (t Time) Std() time.Time { return time.Time(t) }

// GUID is a plain unique-identifier value, as stored in primary-key
// attributes. Distinct from Ref: comparing a GUID attribute against a
// Ref value is a type mismatch on the real platform.
type GUID uuid.UUID

func (GUID) attributeValue() {}

// UUID returns the identifier as a uuid.UUID.
func (g GUID) UUID() uuid.UUID { return uuid.UUID(g) }

// Ref is a reference to another entity. Name caches the display text
// taken from the referenced entity's primary-name attribute.
type Ref struct {
	Entity string
	ID     uuid.UUID
	Name   string
}

func (Ref) attributeValue() {}

// Option is an enumeration value code.
type Option int

func (Option) attributeValue() {}

// Money is a monetary amount.
type Money float64

func (Money) attributeValue() {}

// Aliased wraps a value sourced from a joined entity. Alias is the join
// alias, Attribute the attribute name on the joined entity.
type Aliased struct {
	Alias     string
	Attribute string
	Value     Value
}

func (Aliased) attributeValue() {}

// NewTime wraps a time.Time as a Value.
func NewTime(t time.Time) Time { return Time(t) }

// Unwrap strips any Aliased wrapper and returns the underlying value.
// Non-aliased values are returned unchanged.
func Unwrap(v Value) Value {
	for {
		a, ok := v.(Aliased)
		if !ok {
			return v
		}
		v = a.Value
	}
}

// IsNull reports whether v is absent (nil) or an explicit Null.
// Aliased wrappers are unwrapped before the test.
func IsNull(v Value) bool {
	v = Unwrap(v)
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}
