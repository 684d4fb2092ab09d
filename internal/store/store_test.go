package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/dindex/internal/listener"
	"github.com/dreamware/dindex/internal/query"
	"github.com/dreamware/dindex/internal/record"
	"github.com/dreamware/dindex/internal/wire"
)

func TestInsertSkipsEmptyRecord(t *testing.T) {
	s := New(4, 0, nil)
	assert.False(t, s.Insert(record.Record{}))
	assert.Equal(t, 0, s.total())
}

func TestInsertAndSearch(t *testing.T) {
	s := New(4, 0, nil)
	require.True(t, s.Insert(record.Record{"NAME": "Lorem Ipsum", "NUMBER": "5551234"}))
	require.True(t, s.Insert(record.Record{"NAME": "Alice", "NUMBER": "4449999"}))

	got, err := s.Search(context.Background(), record.Record{"NAME": "^Lorem"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Lorem Ipsum", got[0]["NAME"])
}

func TestSearchEmptyQueryMatchesNothing(t *testing.T) {
	s := New(4, 0, nil)
	s.Insert(record.Record{"NAME": "Lorem Ipsum"})
	got, err := s.Search(context.Background(), record.Record{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := New(1, 2, nil)
	s.Insert(record.Record{"n": "1"})
	s.Insert(record.Record{"n": "2"})
	s.Insert(record.Record{"n": "3"})

	got, err := s.Search(context.Background(), record.Record{"n": ".*"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	values := []string{got[0]["n"], got[1]["n"]}
	assert.ElementsMatch(t, []string{"2", "3"}, values)
}

func TestInsertNotifiesListeners(t *testing.T) {
	reg := listener.NewRegistry(10, nil)
	s := New(4, 0, reg)
	out := make(chan wire.Message, 1)
	reg.Register(listener.NewListener("l1", query.Compile(record.Record{"NAME": "^Lorem"}), out))

	s.Insert(record.Record{"NAME": "Lorem Ipsum"})
	assert.Equal(t, 1, reg.Len())
	select {
	case msg := <-out:
		assert.Equal(t, "Lorem Ipsum", msg.Record["NAME"])
	default:
		t.Fatal("expected the insert to be fanned out to the matching listener")
	}
}

func TestConcurrentInsertsDoNotRace(t *testing.T) {
	s := New(8, 0, nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Insert(record.Record{"n": "x"})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, s.total())
}

func TestSearchCallbackStreamsAndCanStopEarly(t *testing.T) {
	s := New(4, 0, nil)
	for i := 0; i < 4; i++ {
		require.True(t, s.Insert(record.Record{"n": "x"}))
	}

	var seen int
	err := s.SearchCallback(context.Background(), record.Record{"n": ".*"}, func(record.Record) bool {
		seen++
		return seen < 2
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, seen, 1)
}

func TestSearchCallbackEmptyQueryMatchesNothing(t *testing.T) {
	s := New(4, 0, nil)
	s.Insert(record.Record{"NAME": "Lorem Ipsum"})
	called := false
	err := s.SearchCallback(context.Background(), record.Record{}, func(record.Record) bool {
		called = true
		return true
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestLoadAllAndAll(t *testing.T) {
	s := New(4, 0, nil)
	records := []record.Record{{"a": "1"}, {"a": "2"}, {"a": "3"}}
	s.LoadAll(records)
	assert.ElementsMatch(t, records, s.All())
}
