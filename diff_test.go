package objdiff

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kids = map[interface{}]*DiffNode

// with attaches children to n
func with(n *DiffNode, children kids) *DiffNode {
	n.Children = children
	return n
}

func noop(children kids) *DiffNode {
	return with(Unchanged(), children)
}

type address struct {
	Street string
	Zip    int
}

type contact struct {
	Name    string
	Age     int
	Tags    []string
	Address *address
	Extra   map[string]interface{}
	notes   string
}

func TestDiff(t *testing.T) {
	shared := &address{Street: "Main", Zip: 1}
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)

	cases := []struct {
		description string
		src, target interface{}
		opts        []Option
		setup       func(m *Mapper)
		expect      *DiffNode
	}{
		{"equal ints", 1, 1, nil, nil, Unchanged()},
		{"nil values", nil, nil, nil, nil, Unchanged()},
		{"changed int", 1, 2, nil, nil, Updated(1, 2)},
		{"leaves of different types", 1, "one", nil, nil, Updated(1, "one")},
		{"value to nil", "a", nil, nil, nil, Updated("a", nil)},
		{"nil to map", nil, map[string]int{"a": 1}, nil, nil, Updated(nil, map[string]int{"a": 1})},
		{"identical pointers", shared, shared, nil, nil, Unchanged()},
		{"equal times in different zones", now, now.In(loc), nil, nil, Unchanged()},

		{"positional list",
			[]string{"a", "b"}, []string{"b", "b", "c"}, nil, nil,
			noop(kids{0: Updated("a", "b"), 2: Added("c")}),
		},
		{"shrinking list",
			[]int{1, 2, 3}, []int{1}, nil, nil,
			noop(kids{1: Removed(2), 2: Removed(3)}),
		},
		{"equal lists with distinct backing arrays",
			[]int{1, 2}, []int{1, 2}, nil, nil,
			Unchanged(),
		},
		{"map key union",
			map[string]int{"a": 1, "b": 2}, map[string]int{"b": 1, "c": 2}, nil, nil,
			noop(kids{"a": Removed(1), "b": Updated(2, 1), "c": Added(2)}),
		},
		{"int keyed map",
			map[int]string{1: "a", 2: "b"}, map[int]string{2: "c"}, nil, nil,
			noop(kids{1: Removed("a"), 2: Updated("b", "c")}),
		},
		{"set membership",
			map[string]struct{}{"a": {}, "b": {}}, map[string]struct{}{"b": {}, "c": {}}, nil, nil,
			noop(kids{0: Removed("a"), 1: Added("c")}),
		},
		{"go array",
			[3]int{1, 2, 3}, [3]int{1, 2, 4}, nil, nil,
			noop(kids{2: Updated(3, 4)}),
		},
		{"slices as arrays",
			[]int{1, 2, 3}, []int{1, 5}, []Option{OptionEnable(SlicesAsArrays)}, nil,
			with(Resized(3, 2), kids{1: Updated(2, 5), 2: Removed(3)}),
		},
		{"slice registered as array",
			[]string{"a"}, []string{"a", "b"}, nil,
			func(m *Mapper) { m.RegisterKind(reflect.TypeOf([]string{}), KindArray) },
			with(Resized(1, 2), kids{1: Added("b")}),
		},
		{"struct registered as leaf",
			address{"Main", 1}, address{"Main", 2}, nil,
			func(m *Mapper) { m.RegisterKind(reflect.TypeOf(address{}), KindLeaf) },
			Updated(address{"Main", 1}, address{"Main", 2}),
		},
		{"record fields",
			contact{Name: "a", Age: 1, Tags: []string{"x"}, Address: &address{"Main", 1}, notes: "n"},
			contact{Name: "b", Age: 1, Tags: []string{"x", "y"}, Address: &address{"Main", 2}, notes: "m"},
			nil, nil,
			noop(kids{
				"Name":    Updated("a", "b"),
				"Tags":    noop(kids{1: Added("y")}),
				"Address": noop(kids{"Zip": Updated(1, 2)}),
				"notes":   Updated("n", "m"),
			}),
		},
		{"pointer to record",
			&contact{Name: "a"}, &contact{Name: "a", Extra: map[string]interface{}{"k": true}},
			nil, nil,
			noop(kids{"Extra": Updated(nil, map[string]interface{}{"k": true})}),
		},
		{"nested documents",
			map[string]interface{}{"a": []interface{}{1.0, "x"}, "b": map[string]interface{}{"c": true}},
			map[string]interface{}{"a": []interface{}{1.0, "y"}, "b": map[string]interface{}{"c": true}},
			nil, nil,
			noop(kids{"a": noop(kids{1: Updated("x", "y")})}),
		},
		{"nil inside a document",
			map[string]interface{}{"a": nil, "b": 1.0},
			map[string]interface{}{"a": "x", "b": nil},
			nil, nil,
			noop(kids{"a": Updated(nil, "x"), "b": Updated(1.0, nil)}),
		},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			m := New(c.opts...)
			if c.setup != nil {
				c.setup(m)
			}
			got, err := m.Diff(c.src, c.target)
			require.NoError(t, err)
			if diff := cmp.Diff(c.expect, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiffErrors(t *testing.T) {
	cases := []struct {
		description string
		src, target interface{}
		path        string
	}{
		{"map against list", map[string]int{"a": 1}, []int{1}, "/"},
		{"nested kind mismatch",
			map[string]interface{}{"x": map[string]interface{}{}},
			map[string]interface{}{"x": []interface{}{}},
			"/x",
		},
		{"different record types", address{}, contact{}, "/"},
		{"arrays of different lengths", [2]int{}, [3]int{}, "/"},
		{"set against map", map[string]struct{}{"a": {}}, map[string]int{"a": 1}, "/"},
	}

	for _, c := range cases {
		t.Run(c.description, func(t *testing.T) {
			_, err := Diff(c.src, c.target)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDiff), "expected ErrDiff, got %v", err)

			var de *DiffError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, c.path, de.Path)
		})
	}
}

func TestDiffDoesNotModifyInputs(t *testing.T) {
	src := map[string]interface{}{"a": []interface{}{"x", "y"}, "b": 1.0}
	target := map[string]interface{}{"a": []interface{}{"y"}, "c": 2.0}

	_, err := Diff(src, target)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"a": []interface{}{"x", "y"}, "b": 1.0}, src)
	assert.Equal(t, map[string]interface{}{"a": []interface{}{"y"}, "c": 2.0}, target)
}

func TestDiffNodeKeys(t *testing.T) {
	n := noop(kids{"b": Added(1), 2: Added(1), "a": Added(1), 10: Added(1)})
	assert.Equal(t, []interface{}{2, 10, "a", "b"}, n.Keys())
	assert.Nil(t, Unchanged().Keys())

	var empty *DiffNode
	assert.True(t, empty.IsEmpty())
	assert.Nil(t, empty.Child("a"))
	assert.True(t, noop(kids{}).IsEmpty())
	assert.False(t, Added(nil).IsEmpty())
}
