package pathenc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSibling_Deterministic(t *testing.T) {
	a := Sibling("/tmp/d")
	b := Sibling("/tmp/d")
	assert.Equal(t, a, b)
}

func TestSibling_SameParent(t *testing.T) {
	s := Sibling("/tmp/d")
	assert.Equal(t, "/tmp", filepath.Dir(s))
}

func TestSibling_DifferentOriginalsDiffer(t *testing.T) {
	assert.NotEqual(t, Sibling("/tmp/d"), Sibling("/tmp/e"))
}

func TestSibling_NeverMatchesPlainGlob(t *testing.T) {
	s := Sibling("/tmp/d")
	base := filepath.Base(s)
	ok, err := filepath.Match("d", base)
	assert.NoError(t, err)
	assert.False(t, ok, "encoded sibling %q must not collide with the plain original name", base)
}
