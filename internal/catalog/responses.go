package catalog

import "sort"

// ResponseTable maps an intent tag to its canned responses. Read-only after construction.
type ResponseTable map[string][]string

// Lookup returns the responses for a tag
func (t ResponseTable) Lookup(tag string) ([]string, bool) {
	responses, ok := t[tag]
	if !ok || len(responses) == 0 {
		return nil, false
	}
	return responses, true
}

// Has reports whether the tag is known
func (t ResponseTable) Has(tag string) bool {
	_, ok := t.Lookup(tag)
	return ok
}

// Tags returns all tags in sorted order
func (t ResponseTable) Tags() []string {
	tags := make([]string, 0, len(t))
	for tag := range t {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
