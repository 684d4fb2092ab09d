package ctypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandWebpage(t *testing.T) {
	r, err := Expand("webpage", []string{"https://example.com", "Example", "a site"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", r["url"])
	assert.Equal(t, "Example", r["title"])
	assert.Equal(t, "a site", r["description"])
}

func TestExpandUnknownCtype(t *testing.T) {
	_, err := Expand("carrier-pigeon", []string{"x"})
	assert.Error(t, err)
}

func TestExpandWrongArity(t *testing.T) {
	_, err := Expand("email", []string{"only-one"})
	assert.Error(t, err)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("phone"))
	assert.False(t, Known("fax"))
}
