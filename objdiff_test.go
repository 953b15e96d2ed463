package objdiff

import (
	"fmt"
	"hash"
	"hash/fnv"
	"reflect"
	"strings"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatures(t *testing.T) {
	m := New()
	assert.True(t, m.IsEnabled(EqualityUseEquals))
	assert.False(t, m.IsEnabled(EqualityUseHash))

	m.Enable(EqualityUseHash)
	assert.True(t, m.IsEnabled(EqualityUseHash))
	assert.False(t, m.IsEnabled(EqualityUseEquals), "equality features are mutually exclusive")

	m.Enable(EqualityUseEquals)
	assert.False(t, m.IsEnabled(EqualityUseHash))

	m.Enable(IgnoreTransient)
	m.Enable(SlicesAsArrays)
	assert.True(t, m.IsEnabled(IgnoreTransient))
	assert.True(t, m.IsEnabled(EqualityUseEquals))
	m.Disable(IgnoreTransient)
	assert.False(t, m.IsEnabled(IgnoreTransient))
	assert.True(t, m.IsEnabled(SlicesAsArrays))

	assert.Equal(t, "IgnoreGlobalMergeHandlers", IgnoreGlobalMergeHandlers.String())
	assert.Equal(t, "Feature(99)", Feature(99).String())
	assert.Equal(t, "CloneCollectionsOnly", CloneCollectionsOnly.String())
}

type cached struct {
	Name   string
	lookup map[string]int `objdiff:"transient"`
	Secret string         `objdiff:"-"`
	note   string
}

func TestFieldFilters(t *testing.T) {
	src := cached{Name: "a", lookup: map[string]int{"x": 1}, Secret: "s", note: "n"}
	target := cached{Name: "a", lookup: map[string]int{"x": 2}, Secret: "t", note: "m"}

	cases := []struct {
		description string
		features    []Feature
		expect      *DiffNode
	}{
		{"defaults", nil, noop(kids{
			"lookup": noop(kids{"x": Updated(1, 2)}),
			"note":   Updated("n", "m"),
		})},
		{"ignore transient", []Feature{IgnoreTransient}, noop(kids{
			"note": Updated("n", "m"),
		})},
		{"ignore unexported", []Feature{IgnoreUnexported}, Unchanged()},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			got, err := Diff(src, target, OptionEnable(c.features...))
			require.NoError(t, err)
			if diff := cmp.Diff(c.expect, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHashEquality(t *testing.T) {
	// hashstructure only sees exported fields, so records that differ in
	// unexported state hash the same
	src := cached{Name: "a", note: "n"}
	target := cached{Name: "a", note: "m"}

	got, err := Diff(src, target)
	require.NoError(t, err)
	assert.False(t, got.IsEmpty())

	got, err = Diff(src, target, OptionEnable(EqualityUseHash))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	got, err = Diff(
		map[string]interface{}{"a": []interface{}{1.0, 2.0}, "b": "x"},
		map[string]interface{}{"a": []interface{}{1.0, 3.0}, "b": "x"},
		OptionEnable(EqualityUseHash),
	)
	require.NoError(t, err)
	assert.Equal(t, noop(kids{"a": noop(kids{1: Updated(2.0, 3.0)})}), got)
}

func TestHashFunction(t *testing.T) {
	prev := NewHash
	defer func() { NewHash = prev }()

	calls := 0
	NewHash = func() hash.Hash64 {
		calls++
		return fnv.New64a()
	}

	got, err := Diff(address{"Main", 1}, address{"Main", 1}, OptionEnable(EqualityUseHash))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, 2, calls)
}

func TestEqualityCheckers(t *testing.T) {
	m := New()
	EqualityFor(m, strings.EqualFold)

	got, err := m.Diff(
		map[string]string{"a": "Hello", "b": "x"},
		map[string]string{"a": "HELLO", "b": "y"},
	)
	require.NoError(t, err)
	assert.Equal(t, noop(kids{"b": Updated("x", "y")}), got)

	// checkers apply to values reached through pointers
	a, b := "Hi", "hi"
	got, err = m.Diff(&a, &b)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	// a registered checker wins over the hash policy
	m.RegisterEqualityChecker(reflect.TypeOf(address{}), func(a, b interface{}) bool {
		return a.(address).Street == b.(address).Street
	})
	m.Enable(EqualityUseHash)
	got, err = m.Diff(address{"Main", 1}, address{"Main", 2})
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

type link struct {
	Val  int
	Next *link
}

func chain(n, tail int) *link {
	head := &link{}
	cur := head
	for i := 1; i < n; i++ {
		cur.Next = &link{}
		cur = cur.Next
	}
	cur.Val = tail
	return head
}

func TestLongChains(t *testing.T) {
	const depth = 5000
	m := New()
	EqualityFor(m, func(a, b *link) bool { return false })

	src, target := chain(depth, 0), chain(depth, 1)
	node, err := m.Diff(src, target)
	require.NoError(t, err)

	n := node
	for i := 1; i < depth; i++ {
		n = n.Child("Next")
		require.NotNil(t, n, "missing node at depth %d", i)
	}
	assert.Equal(t, Updated(0, 1), n.Child("Val"))

	got, err := m.ApplyDiff(src, node)
	require.NoError(t, err)
	assert.Same(t, src, got)

	cur := src
	for cur.Next != nil {
		cur = cur.Next
	}
	assert.Equal(t, 1, cur.Val)

	st := CalcStats(node)
	assert.Equal(t, depth+1, st.Nodes)
	assert.Equal(t, 1, st.Updates)
}

func TestDeepDocuments(t *testing.T) {
	const depth = 5000
	build := func(leaf string) map[string]interface{} {
		root := map[string]interface{}{}
		cur := root
		for i := 0; i < depth; i++ {
			next := map[string]interface{}{}
			cur[fmt.Sprintf("k%d", i)] = next
			cur = next
		}
		cur["leaf"] = leaf
		return root
	}

	src, target := build("a"), build("b")
	node, err := Diff(src, target, OptionEnable(EqualityUseEquals))
	require.NoError(t, err)

	got, err := ApplyDiff(src, node, CloneFullObject)
	require.NoError(t, err)

	rest, err := Diff(got, target)
	require.NoError(t, err)
	assert.True(t, rest.IsEmpty())

	// the source was cloned, so it still differs
	rest, err = Diff(src, target)
	require.NoError(t, err)
	assert.False(t, rest.IsEmpty())
}

func TestLogging(t *testing.T) {
	m := newReleaseMapper(OptionSetLogger(testr.NewWithOptions(t, testr.Options{Verbosity: 2})))
	assert.True(t, m.Logger().V(2).Enabled())

	src := release{Price: money{100}, Version: semver{1, 0}}
	node, err := m.Diff(src, release{Price: money{300}, Version: semver{1, 0}})
	require.NoError(t, err)
	_, err = m.ApplyDiff(&src, noop(kids{"Price": noop(kids{"Cents": Updated(100, 300)})}), CloneRootOnly)
	require.NoError(t, err)
	assert.Equal(t, noop(kids{"Price": Updated(1, 3)}), node)

	assert.False(t, New().Logger().Enabled())
}

func TestConcurrentUse(t *testing.T) {
	m := New()
	DiffHandlerFor(m, wholeUnits)

	done := make(chan error)
	for i := 0; i < 8; i++ {
		go func(i int) {
			src := map[string]interface{}{"price": money{100}, "n": float64(i)}
			target := map[string]interface{}{"price": money{200}, "n": float64(i + 1)}
			node, err := m.Diff(src, target)
			if err != nil {
				done <- err
				return
			}
			_, err = m.ApplyDiff(src, node)
			done <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-done)
	}
}
