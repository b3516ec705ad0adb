package responder

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/gustavo-mcp/internal/catalog"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

// sequence returns its values in order, wrapping around
type sequence struct {
	values []int
	next   int
	asked  []int
}

func (s *sequence) IntN(n int) int {
	s.asked = append(s.asked, n)
	v := s.values[s.next%len(s.values)]
	s.next++
	return v % n
}

func testTable() catalog.ResponseTable {
	return catalog.ResponseTable{
		"greeting": {"Ciao!", "Salve!", "Buongiorno!"},
		"orari":    {"Dalle 8 alle 14."},
		"vuoto":    {},
	}
}

func TestSelectUsesSource(t *testing.T) {
	src := &sequence{values: []int{2, 0, 1}}
	s := New(testTable(), WithSource(src))

	assert.Equal(t, "Buongiorno!", s.Select(types.Some("greeting")))
	assert.Equal(t, "Ciao!", s.Select(types.Some("greeting")))
	assert.Equal(t, "Salve!", s.Select(types.Some("greeting")))
	assert.Equal(t, []int{3, 3, 3}, src.asked)
}

func TestSelectSingleResponse(t *testing.T) {
	src := &sequence{values: []int{0}}
	s := New(testTable(), WithSource(src))

	assert.Equal(t, "Dalle 8 alle 14.", s.Select(types.Some("orari")))
	assert.Empty(t, src.asked)
}

func TestSelectFallback(t *testing.T) {
	tests := []struct {
		name string
		tag  types.Tag
	}{
		{"none", types.None()},
		{"unknown tag", types.Some("meteo")},
		{"no responses", types.Some("vuoto")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(testTable())
			assert.Equal(t, DefaultFallback, s.Select(tt.tag))
		})
	}
}

func TestWithFallback(t *testing.T) {
	s := New(testTable(), WithFallback("Scusa?"))
	assert.Equal(t, "Scusa?", s.Fallback())
	assert.Equal(t, "Scusa?", s.Select(types.None()))

	s = New(testTable(), WithFallback(""))
	assert.Equal(t, DefaultFallback, s.Fallback())
}

func TestSelectAlwaysFromTable(t *testing.T) {
	s := New(testTable(), WithSource(rand.New(rand.NewPCG(1, 2))))
	allowed := testTable()["greeting"]

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		reply := s.Select(types.Some("greeting"))
		assert.Contains(t, allowed, reply)
		seen[reply] = true
	}
	assert.Len(t, seen, len(allowed))
}
