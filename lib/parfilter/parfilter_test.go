package parfilter

import (
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []string {
	items := make([]string, n)
	for i := range items {
		items[i] = "record-" + strconv.Itoa(i)
	}
	return items
}

func TestFilterPreservesOrder(t *testing.T) {
	items := makeItems(1000)

	for _, workers := range []int{1, 4, len(items)} {
		got := Filter(items, func(string) bool { return true }, Options{
			Workers:         workers,
			MinParallelSize: 1,
		})
		require.Empty(t, cmp.Diff(items, got), "workers=%d", workers)
	}
}

func TestFilterPredicate(t *testing.T) {
	items := makeItems(500)
	even := func(s string) bool {
		n, err := strconv.Atoi(s[len("record-"):])
		require.NoError(t, err)
		return n%2 == 0
	}

	got := Filter(items, even, Options{Workers: 4, MinParallelSize: 1})
	require.Len(t, got, 250)
	for i, s := range got {
		require.Equal(t, "record-"+strconv.Itoa(i*2), s)
	}
}

func TestFilterSmallInputRunsSequentially(t *testing.T) {
	items := makeItems(10)
	got := Filter(items, func(string) bool { return true }, Options{Workers: 8})
	require.Equal(t, items, got)
}

func TestFilterEmptyInput(t *testing.T) {
	require.Nil(t, Filter(nil, func(string) bool { return true }, Options{}))
}

func TestFilterCancelReturnsDecidedPrefix(t *testing.T) {
	items := makeItems(2000)

	var calls atomic.Int64
	cancel := func() bool {
		return calls.Load() > 300
	}
	predicate := func(string) bool {
		calls.Add(1)
		return true
	}

	got := Filter(items, predicate, Options{
		Workers:         4,
		MinParallelSize: 1,
		CancelCheck:     cancel,
	})

	require.Less(t, len(got), len(items))
	// the partial result must be exactly the leading run of the input
	for i, s := range got {
		require.Equal(t, items[i], s)
	}
}

func TestFilterCancelSequential(t *testing.T) {
	items := makeItems(100)

	seen := 0
	got := Filter(items, func(string) bool {
		seen++
		return true
	}, Options{
		Workers:     1,
		CancelCheck: func() bool { return seen >= 30 },
	})

	require.Equal(t, items[:30], got)
}

func TestResolveWorkers(t *testing.T) {
	require.Equal(t, SuggestWorkers(), ResolveWorkers(0))
	require.Equal(t, SuggestWorkers(), ResolveWorkers(-3))
	require.Equal(t, 5, ResolveWorkers(5))

	suggested := SuggestWorkers()
	require.GreaterOrEqual(t, suggested, 2)
	require.LessOrEqual(t, suggested, 8)
}
