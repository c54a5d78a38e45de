package snapshot

import "encoding/json"

// Value is a captured field value: either a single scalar or an ordered
// list of strings. A second occurrence of the same field name promotes
// the scalar to a list; later occurrences append.
type Value struct {
	vals []string
	list bool
}

// String creates a scalar Value.
func String(s string) Value {
	return Value{vals: []string{s}}
}

// List creates a list Value preserving the given order.
func List(vs ...string) Value {
	return Value{vals: append([]string(nil), vs...), list: true}
}

// Append adds a value, promoting a scalar to a list on the second entry.
func (v Value) Append(s string) Value {
	return Value{vals: append(v.vals, s), list: true}
}

// IsList reports whether the value was promoted to a list.
func (v Value) IsList() bool { return v.list }

// First returns the scalar value, or the first list entry.
func (v Value) First() string {
	if len(v.vals) == 0 {
		return ""
	}
	return v.vals[0]
}

// Strings returns all captured values in encounter order.
func (v Value) Strings() []string { return v.vals }

// Len returns the number of captured values.
func (v Value) Len() int { return len(v.vals) }

// Contains reports whether s is among the captured values. For a scalar
// this is an equality test.
func (v Value) Contains(s string) bool {
	for _, x := range v.vals {
		if x == s {
			return true
		}
	}
	return false
}

// MarshalJSON emits a bare string for scalars and an array for lists.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.list {
		return json.Marshal(v.vals)
	}
	return json.Marshal(v.First())
}

// UnmarshalJSON accepts either a string or an array of strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var vs []string
		if err := json.Unmarshal(data, &vs); err != nil {
			return err
		}
		*v = Value{vals: vs, list: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Value{vals: []string{s}}
	return nil
}
