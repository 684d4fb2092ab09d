package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortString(t *testing.T) {
	assert.Equal(t, "7648", portString(0x1de0))
	assert.Equal(t, "0", portString(0))
}
