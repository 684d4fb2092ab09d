package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/dindex/internal/record"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := Message{Action: ActionPublish, Record: record.Record{"NAME": "Lorem Ipsum"}}
	b, err := Encode(m)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, m.Action, got.Action)
	assert.Equal(t, m.Record, got.Record)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "query", ActionQuery.String())
	assert.Equal(t, "end_of_results", ActionEndOfResults.String())
}

func TestFrameScannerReadsMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	first := Message{Action: ActionResult, Record: record.Record{"a": "1"}}
	second := Message{Action: ActionEndOfResults, Record: record.Record{}}

	require.NoError(t, WriteFramed(&buf, first))
	require.NoError(t, WriteFramed(&buf, second))

	scanner := NewFrameScanner(&buf)

	m1, err := scanner.Next()
	require.NoError(t, err)
	assert.Equal(t, ActionResult, m1.Action)

	m2, err := scanner.Next()
	require.NoError(t, err)
	assert.Equal(t, ActionEndOfResults, m2.Action)

	_, err = scanner.Next()
	assert.ErrorIs(t, err, io.EOF)
}
