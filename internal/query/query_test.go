package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dreamware/dindex/internal/record"
)

func TestCompileDropsInvalidPattern(t *testing.T) {
	q := record.Record{"NAME": "[unterminated", "NUMBER": "^555.*"}
	c := Compile(q)
	_, hasName := c["NAME"]
	_, hasNumber := c["NUMBER"]
	assert.False(t, hasName)
	assert.True(t, hasNumber)
}

func TestMatchNoSharedKeysIsFalse(t *testing.T) {
	c := Compile(record.Record{"NAME": ".*"})
	r := record.Record{"NUMBER": "5551234"}
	assert.False(t, Match(c, r))
}

func TestMatchAllSharedKeysMustMatch(t *testing.T) {
	c := Compile(record.Record{"NAME": "^Lorem", "NUMBER": "^555"})
	good := record.Record{"NAME": "Lorem Ipsum", "NUMBER": "5551234"}
	bad := record.Record{"NAME": "Lorem Ipsum", "NUMBER": "4441234"}
	assert.True(t, Match(c, good))
	assert.False(t, Match(c, bad))
}

func TestMatchPartialKeyOverlap(t *testing.T) {
	c := Compile(record.Record{"NAME": "^Lorem"})
	r := record.Record{"NAME": "Lorem Ipsum", "EXTRA": "whatever"}
	assert.True(t, Match(c, r))
}

func TestEmptyCompiled(t *testing.T) {
	c := Compile(record.Record{"BAD": "["})
	assert.True(t, c.Empty())
	assert.False(t, Match(c, record.Record{"BAD": "x"}))
}
