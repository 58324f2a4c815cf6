package record

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/crmock/crmock/internal/faults"
)

// Fold normalizes a string for comparison: NFC form, lower case.
// The platform being emulated compares text case-insensitively.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// Equal reports coercing equality between an attribute value and a
// comparison value, using the platform's cross-type rules:
//
//   - a reference attribute may be compared against a raw identifier or
//     its string form
//   - a plain identifier attribute compared against a reference value is
//     a genuine type mismatch and returns a fault
//   - enumeration values compare by code, money by amount, strings
//     case-insensitively
//
// Aliased wrappers are unwrapped on both sides. Null operands are the
// caller's concern; Equal treats them as unequal to everything.
func Equal(a, b Value) (bool, error) {
	a, b = Unwrap(a), Unwrap(b)
	if IsNull(a) || IsNull(b) {
		return false, nil
	}

	switch av := a.(type) {
	case Ref:
		id, err := identifierOf(b, true)
		if err != nil {
			return false, err
		}
		return av.ID == id, nil

	case GUID:
		if _, isRef := b.(Ref); isRef {
			return false, faults.TypeMismatch("reference value compared against plain identifier attribute")
		}
		id, err := identifierOf(b, false)
		if err != nil {
			return false, err
		}
		return uuid.UUID(av) == id, nil

	case String:
		bs, ok := stringOf(b)
		if !ok {
			return false, faults.TypeMismatch("cannot compare string attribute against %T value", b)
		}
		return Fold(string(av)) == Fold(bs), nil

	case Bool:
		bb, err := boolOf(b)
		if err != nil {
			return false, err
		}
		return bool(av) == bb, nil

	case Time:
		bt, ok := TimeOf(b)
		if !ok {
			return false, faults.TypeMismatch("cannot compare date-time attribute against %T value", b)
		}
		return time.Time(av).Equal(bt), nil

	case Int, Float, Option, Money:
		af, _ := numberOf(a)
		bf, ok := numberOf(b)
		if !ok {
			return false, faults.TypeMismatch("cannot compare numeric attribute against %T value", b)
		}
		return af == bf, nil
	}

	return false, faults.TypeMismatch("unsupported attribute value type %T", a)
}

// Compare orders two values: -1, 0 or 1. Reference and identifier values
// have no ordering; comparing them returns a type-mismatch fault.
// Null operands are the caller's concern.
func Compare(a, b Value) (int, error) {
	a, b = Unwrap(a), Unwrap(b)

	switch av := a.(type) {
	case String:
		bs, ok := stringOf(b)
		if !ok {
			return 0, faults.TypeMismatch("cannot order string attribute against %T value", b)
		}
		return strings.Compare(Fold(string(av)), Fold(bs)), nil

	case Time:
		bt, ok := TimeOf(b)
		if !ok {
			return 0, faults.TypeMismatch("cannot order date-time attribute against %T value", b)
		}
		at := time.Time(av)
		switch {
		case at.Before(bt):
			return -1, nil
		case at.After(bt):
			return 1, nil
		default:
			return 0, nil
		}

	case Bool:
		bb, err := boolOf(b)
		if err != nil {
			return 0, err
		}
		return boolCompare(bool(av), bb), nil

	case Int, Float, Option, Money:
		af, _ := numberOf(a)
		bf, ok := numberOf(b)
		if !ok {
			return 0, faults.TypeMismatch("cannot order numeric attribute against %T value", b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}

	return 0, faults.TypeMismatch("values of type %T have no ordering", a)
}

// TimeOf extracts a time.Time from a Time value or a parseable string.
func TimeOf(v Value) (time.Time, bool) {
	switch tv := Unwrap(v).(type) {
	case Time:
		return time.Time(tv), true
	case String:
		return parseTimeString(string(tv))
	}
	return time.Time{}, false
}

// parseTimeString accepts the literal date forms the markup grammar uses.
func parseTimeString(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// identifierOf extracts a uuid from a GUID, Ref (when allowRef) or a
// string-form identifier. String identifiers are parsed transparently.
func identifierOf(v Value, allowRef bool) (uuid.UUID, error) {
	switch bv := v.(type) {
	case GUID:
		return uuid.UUID(bv), nil
	case Ref:
		if allowRef {
			return bv.ID, nil
		}
	case String:
		id, err := uuid.Parse(string(bv))
		if err != nil {
			return uuid.Nil, faults.TypeMismatch("value %q is not a valid identifier", string(bv))
		}
		return id, nil
	}
	return uuid.Nil, faults.TypeMismatch("cannot compare identifier attribute against %T value", v)
}

func stringOf(v Value) (string, bool) {
	switch sv := v.(type) {
	case String:
		return string(sv), true
	case GUID:
		return uuid.UUID(sv).String(), true
	}
	return "", false
}

func boolOf(v Value) (bool, error) {
	switch bv := v.(type) {
	case Bool:
		return bool(bv), nil
	case Int:
		return bv != 0, nil
	case String:
		switch Fold(string(bv)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	}
	return false, faults.TypeMismatch("cannot compare boolean attribute against %T value", v)
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// numberOf extracts a float64 from any numeric value kind or a numeric
// string literal.
func numberOf(v Value) (float64, bool) {
	switch nv := v.(type) {
	case Int:
		return float64(nv), true
	case Float:
		return float64(nv), true
	case Option:
		return float64(nv), true
	case Money:
		return float64(nv), true
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(nv)), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
