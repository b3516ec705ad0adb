package types

import "encoding/json"

// Tag is an optional intent tag. The zero value is None.
type Tag struct {
	value string
	ok    bool
}

// Some returns a present tag
func Some(tag string) Tag {
	return Tag{value: tag, ok: true}
}

// None returns an absent tag
func None() Tag {
	return Tag{}
}

// Get returns the tag and whether it is present
func (t Tag) Get() (string, bool) {
	return t.value, t.ok
}

// IsNone reports whether no intent was matched
func (t Tag) IsNone() bool {
	return !t.ok
}

// String returns the tag, or "<none>" when absent
func (t Tag) String() string {
	if !t.ok {
		return "<none>"
	}
	return t.value
}

// MarshalJSON encodes an absent tag as null
func (t Tag) MarshalJSON() ([]byte, error) {
	if !t.ok {
		return []byte("null"), nil
	}
	return json.Marshal(t.value)
}

// UnmarshalJSON decodes null as None
func (t *Tag) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = None()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Some(s)
	return nil
}
