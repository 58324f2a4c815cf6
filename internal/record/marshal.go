package record

import (
	"time"
)

// ToJSONValue converts a Value into a plain Go value suitable for
// encoding/json. Uses type-switch dispatch over the sealed variant.
func ToJSONValue(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return time.Time(val).Format(time.RFC3339)
	case GUID:
		return val.UUID().String()
	case Ref:
		out := map[string]any{
			"entity": val.Entity,
			"id":     val.ID.String(),
		}
		if val.Name != "" {
			out["name"] = val.Name
		}
		return out
	case Option:
		return int(val)
	case Money:
		return float64(val)
	case Aliased:
		return ToJSONValue(val.Value)
	default:
		return nil
	}
}

// ToJSONObject converts an entity into a plain map for JSON output.
// Joined columns keep their "alias.attribute" keys.
func ToJSONObject(e *Entity) map[string]any {
	out := map[string]any{
		"entity": e.Type,
		"id":     e.ID.String(),
	}
	attrs := make(map[string]any, e.Len())
	for _, name := range e.Names() {
		v, _ := e.Get(name)
		attrs[name] = ToJSONValue(v)
	}
	out["attributes"] = attrs
	return out
}
