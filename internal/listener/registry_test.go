package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/dindex/internal/query"
	"github.com/dreamware/dindex/internal/record"
	"github.com/dreamware/dindex/internal/wire"
)

func TestNotifyInsertMatchesOnly(t *testing.T) {
	reg := NewRegistry(10, nil)

	out := make(chan wire.Message, 1)
	l := NewListener("l1", query.Compile(record.Record{"NAME": "^Lorem"}), out)
	reg.Register(l)

	reg.NotifyInsert(record.Record{"NAME": "Lorem Ipsum"})
	select {
	case msg := <-out:
		assert.Equal(t, wire.ActionResult, msg.Action)
	default:
		t.Fatal("expected a match to be delivered")
	}

	reg.NotifyInsert(record.Record{"NAME": "Someone Else"})
	select {
	case msg := <-out:
		t.Fatalf("unexpected delivery: %+v", msg)
	default:
	}
}

func TestNotifyInsertSkipsDeadListener(t *testing.T) {
	reg := NewRegistry(10, nil)
	out := make(chan wire.Message, 1)
	l := NewListener("l1", query.Compile(record.Record{"NAME": ".*"}), out)
	reg.Register(l)
	l.Close()

	reg.NotifyInsert(record.Record{"NAME": "anything"})
	select {
	case msg := <-out:
		t.Fatalf("dead listener should not receive: %+v", msg)
	default:
	}
}

func TestNotifyInsertDropsOnFullChannel(t *testing.T) {
	reg := NewRegistry(10, nil)
	out := make(chan wire.Message) // unbuffered, nobody reading
	l := NewListener("l1", query.Compile(record.Record{"NAME": ".*"}), out)
	reg.Register(l)

	// Must not block even though nothing drains `out`.
	reg.NotifyInsert(record.Record{"NAME": "anything"})
}

func TestRegisterEvictsOldestPastMax(t *testing.T) {
	reg := NewRegistry(2, nil)

	out1 := make(chan wire.Message, 1)
	out2 := make(chan wire.Message, 1)
	out3 := make(chan wire.Message, 1)

	l1 := NewListener("l1", query.Compile(record.Record{}), out1)
	l2 := NewListener("l2", query.Compile(record.Record{}), out2)
	l3 := NewListener("l3", query.Compile(record.Record{}), out3)

	reg.Register(l1)
	reg.Register(l2)
	reg.Register(l3)

	require.Equal(t, 2, reg.Len())
	assert.False(t, l1.Alive())

	select {
	case msg := <-out1:
		assert.Equal(t, wire.ActionEndOfResults, msg.Action)
	default:
		t.Fatal("expected end_of_results on evicted listener")
	}
}

func TestTrimInvalidReapsDeadListeners(t *testing.T) {
	reg := NewRegistry(10, nil)
	out := make(chan wire.Message, 1)
	l := NewListener("l1", query.Compile(record.Record{}), out)
	reg.Register(l)
	l.Close()

	reg.TrimInvalid()
	assert.Equal(t, 0, reg.Len())
}

func TestTrimAllClearsAndNotifies(t *testing.T) {
	reg := NewRegistry(10, nil)
	out := make(chan wire.Message, 1)
	l := NewListener("l1", query.Compile(record.Record{}), out)
	reg.Register(l)

	reg.TrimAll()
	assert.Equal(t, 0, reg.Len())
	assert.False(t, l.Alive())

	select {
	case msg := <-out:
		assert.Equal(t, wire.ActionEndOfResults, msg.Action)
	default:
		t.Fatal("expected end_of_results")
	}
}
