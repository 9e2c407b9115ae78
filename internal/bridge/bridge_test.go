package bridge

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDrainAllJoinsInPushOrder(t *testing.T) {
	b := New()
	require.True(t, b.Push("a"))
	require.True(t, b.Push("b"))
	require.True(t, b.Push("c"))

	require.Equal(t, "a b c", b.DrainAll())
	require.Equal(t, "", b.DrainAll())
}

func TestPushTrimsAndDropsEmpty(t *testing.T) {
	var b Bridge
	require.True(t, b.Push("  hello world \n"))
	require.False(t, b.Push(""))
	require.False(t, b.Push(" \t\n"))

	require.Equal(t, 1, b.Len())
	require.Equal(t, "hello world", b.DrainAll())
	require.Zero(t, b.Len())
}

func TestDrainAllOnNeverUsedBridge(t *testing.T) {
	b := New()
	require.Equal(t, "", b.DrainAll())
}

func TestConcurrentProducersLoseNothing(t *testing.T) {
	b := New()

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	drained := make(chan string, 1024)
	done := make(chan struct{})

	go func() {
		defer close(drained)
		for {
			select {
			case <-done:
				if rest := b.DrainAll(); rest != "" {
					drained <- rest
				}
				return
			default:
				if text := b.DrainAll(); text != "" {
					drained <- text
				}
			}
		}
	}()

	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				b.Push(fmt.Sprintf("p%d-%d", p, i))
			}
		}()
	}
	wg.Wait()
	close(done)

	var all []string
	for chunk := range drained {
		all = append(all, strings.Fields(chunk)...)
	}
	require.Len(t, all, producers*perProducer)

	// Each producer's messages must keep their relative order.
	next := make(map[string]int)
	for _, msg := range all {
		var p, i int
		_, err := fmt.Sscanf(msg, "p%d-%d", &p, &i)
		require.NoError(t, err)
		key := fmt.Sprintf("p%d", p)
		require.Equal(t, next[key], i)
		next[key]++
	}
}
