package objdiff

import (
	"encoding/json"
	"fmt"
)

func ExampleDiff() {
	// start with two slightly different json documents
	aJSON := []byte(`{
		"a": 100,
		"foo": [1,2,3],
		"bar": false,
		"baz": {
			"a": {
				"b": 4,
				"c": false,
				"d": "apples-and-oranges"
			},
			"e": null,
			"g": "apples-and-oranges"
		}
	}`)

	bJSON := []byte(`{
		"a": 99,
		"foo": [1,2,3],
		"bar": false,
		"baz": {
			"a": {
				"b": 5,
				"c": false,
				"d": "apples-and-oranges"
			},
			"e": "thirty-thousand-something-dogecoin",
			"f": false
		}
	}`)

	// unmarshal the data into generic interfaces
	var a, b interface{}
	if err := json.Unmarshal(aJSON, &a); err != nil {
		panic(err)
	}
	if err := json.Unmarshal(bJSON, &b); err != nil {
		panic(err)
	}

	// Diff produces a tree of changes shaped like the documents
	node, err := Diff(a, b)
	if err != nil {
		panic(err)
	}

	// Format the changes for terminal output
	change, err := FormatPrettyString(node, false)
	if err != nil {
		panic(err)
	}

	fmt.Print(change)
	// Output: ~a: 100 -> 99
	// baz:
	//   a:
	//     ~b: 4 -> 5
	//   ~e: null -> "thirty-thousand-something-dogecoin"
	//   +f: false
	//   -g: "apples-and-oranges"
}

func ExampleMapper_ApplyDiff() {
	type user struct {
		Name  string
		Roles []string
	}

	m := New()
	src := &user{Name: "ada", Roles: []string{"admin"}}
	node, err := m.Diff(src, &user{Name: "ada", Roles: []string{"admin", "ops"}})
	if err != nil {
		panic(err)
	}

	// clone the source first, leaving it untouched
	merged, err := m.ApplyDiff(src, node, CloneFullObject)
	if err != nil {
		panic(err)
	}

	fmt.Println(src.Roles, merged.(*user).Roles)
	// Output: [admin] [admin ops]
}

func ExampleFormatPrettyStats() {
	stats := &Stats{}
	if _, err := Diff([]string{"a", "b"}, []string{"b", "b", "c"}, OptionSetStats(stats)); err != nil {
		panic(err)
	}
	fmt.Print(FormatPrettyStats(stats))
	// Output: +1 element. 1 add. 0 removes. 1 update.
}
