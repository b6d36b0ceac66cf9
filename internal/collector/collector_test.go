package collector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[E any](t *testing.T, ch <-chan E) []E {
	t.Helper()
	var out []E
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestReplay_EmitsInOrderThenCloses(t *testing.T) {
	r := NewReplay([]int{1, 2, 3})

	events, err := r.Stream(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, drain(t, events))
	assert.NoError(t, r.Err())
}

func TestChannel_ErrSurvivesClose(t *testing.T) {
	events := make(chan int, 1)
	c := NewChannel(events)

	stream, err := c.Stream(context.Background())
	require.NoError(t, err)

	events <- 42
	boom := errors.New("producer died")
	c.Fail(boom)
	close(events)

	assert.Equal(t, []int{42}, drain(t, stream))
	assert.ErrorIs(t, c.Err(), boom)
}

func TestMerge_ForwardsAllSourcesAndTaps(t *testing.T) {
	// The tap runs on the forwarding goroutines, so it must synchronize.
	var mu sync.Mutex
	var tapped []int
	m := NewMerge(func(ev int) {
		mu.Lock()
		tapped = append(tapped, ev)
		mu.Unlock()
	},
		NewReplay([]int{1, 2}),
		NewReplay([]int{10}),
	)

	events, err := m.Stream(context.Background())
	require.NoError(t, err)

	got := drain(t, events)
	assert.ElementsMatch(t, []int{1, 2, 10}, got)
	assert.ElementsMatch(t, []int{1, 2, 10}, tapped)
	assert.NoError(t, m.Err())
}

func TestMerge_JoinsSourceErrors(t *testing.T) {
	events := make(chan int)
	failing := NewChannel(events)
	boom := errors.New("socket torn")
	failing.Fail(boom)
	close(events)

	m := NewMerge[int](nil, failing, NewReplay([]int{1}))
	stream, err := m.Stream(context.Background())
	require.NoError(t, err)
	drain(t, stream)

	assert.ErrorIs(t, m.Err(), boom)
}
