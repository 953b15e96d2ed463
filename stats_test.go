package objdiff

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const (
	statsA = `{"a": 100,"foo": [1,2,3],"bar": false,"baz": {"a": {"b": 4,"c": false,"d": "apples-and-oranges"},"e": null,"g": "apples-and-oranges"}}`
	statsB = `{"a": 99,"foo": [1,2,3],"bar": false,"baz": {"a": {"b": 5,"c": false,"d": "apples-and-oranges"},"e": "thirty-thousand-something-dogecoin","f": {"a" : false, "b": true}}}`
)

func unmarshalPair(t *testing.T, a, b string) (x, y map[string]interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(a), &x))
	require.NoError(t, json.Unmarshal([]byte(b), &y))
	return x, y
}

func TestCalcStats(t *testing.T) {
	a, b := unmarshalPair(t, statsA, statsB)

	expect := &Stats{
		Nodes:   8,
		Adds:    1,
		Updates: 3,
		Removes: 1,
	}
	stats := &Stats{}
	node, err := Diff(a, b, OptionSetStats(stats))
	require.NoError(t, err)

	if diff := cmp.Diff(expect, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(expect, CalcStats(node)); diff != "" {
		t.Errorf("calculated stats mismatch (-want +got):\n%s", diff)
	}
	if expect.NodeChange() != stats.NodeChange() {
		t.Errorf("wrong node change. want: %d. got: %d", expect.NodeChange(), stats.NodeChange())
	}
	if stats.Changes() != 5 {
		t.Errorf("wrong change count. want: 5. got: %d", stats.Changes())
	}
}

func TestStatsResetBetweenDiffs(t *testing.T) {
	stats := &Stats{}
	m := New(OptionSetStats(stats))

	_, err := m.Diff([]int{1, 2}, []int{3, 4, 5})
	require.NoError(t, err)
	if diff := cmp.Diff(&Stats{Nodes: 4, Updates: 2, Adds: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	_, err = m.Diff(1, 1)
	require.NoError(t, err)
	if diff := cmp.Diff(&Stats{Nodes: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(&Stats{}, CalcStats(nil)); diff != "" {
		t.Errorf("nil node stats mismatch (-want +got):\n%s", diff)
	}
}

func TestDatasetStats(t *testing.T) {
	a := loadDocument(t, "testdata/dataset_a.json")
	b := loadDocument(t, "testdata/dataset_b.json")

	node, err := Diff(a, b)
	require.NoError(t, err)

	expect := &Stats{Nodes: 20, Adds: 10, Updates: 3, Removes: 3}
	if diff := cmp.Diff(expect, CalcStats(node)); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}
