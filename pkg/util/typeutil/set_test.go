package typeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet[string]()
	s.Insert("a")
	s.Insert("b")
	s.Insert("a")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contain("a"))
	assert.False(t, s.Contain("c"))

	assert.True(t, s.TryInsert("c"))
	assert.False(t, s.TryInsert("c"))

	s.Remove("a")
	assert.False(t, s.Contain("a"))
	assert.ElementsMatch(t, []string{"b", "c"}, s.Collect())
}
