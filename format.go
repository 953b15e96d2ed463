package objdiff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/qri-io/objdiff/traverse"
)

// FormatPrettyString is a convenience wrapper that outputs to a string
// instead of an io.Writer
func FormatPrettyString(node *DiffNode, colorTTY bool) (string, error) {
	buf := &bytes.Buffer{}
	if err := FormatPretty(buf, node, colorTTY); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatPretty writes a text report of a diff tree to w, one line per node,
// children indented under their parent. if colorTTY is true it will add
// green "+" for additions
// red "-" for removals
// blue "~" for updates
// yellow "#" for resizes
func FormatPretty(w io.Writer, node *DiffNode, colorTTY bool) error {
	colors := map[Operation]*color.Color{
		OpNoop:   color.New(color.FgWhite),
		OpAdd:    color.New(color.FgGreen),
		OpRemove: color.New(color.FgRed),
		OpUpdate: color.New(color.FgBlue),
		OpResize: color.New(color.FgYellow),
	}
	for _, c := range colors {
		if colorTTY {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	if node.IsEmpty() {
		return nil
	}

	root := nodeRef{node: node}
	for walk := traverse.NewPreOrder[nodeRef](root); walk.Next(); {
		r := walk.Value()
		depth := walk.Depth()
		if r.parent == nil && (r.node.Op == OpNoop || r.node.Op == "") {
			continue
		}
		if r.parent != nil && (node.Op == OpNoop || node.Op == "") {
			depth--
		}

		op := r.node.Op
		if op == "" {
			op = OpNoop
		}
		key := ""
		if r.parent != nil {
			key = keyString(r.key)
		}
		data, err := entryString(r.node.Entry)
		if err != nil {
			return err
		}

		line := fmt.Sprintf("%s%s:%s", op, key, data)
		if op == OpNoop {
			line = fmt.Sprintf("%s:%s", key, data)
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), colors[op].Sprint(line)); err != nil {
			return err
		}
	}
	return nil
}

func entryString(e Entry) (string, error) {
	switch e.Op {
	case OpAdd:
		return valueString(e.Next)
	case OpRemove:
		return valueString(e.Prev)
	case OpUpdate, OpResize:
		prev, err := valueString(e.Prev)
		if err != nil {
			return "", err
		}
		next, err := valueString(e.Next)
		if err != nil {
			return "", err
		}
		return prev + " ->" + next, nil
	}
	return "", nil
}

// valueString renders v as JSON where possible, falling back to Go syntax for
// values JSON can't represent
func valueString(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		var unsupported *json.UnsupportedTypeError
		var unsupportedVal *json.UnsupportedValueError
		if errors.As(err, &unsupported) || errors.As(err, &unsupportedVal) {
			return fmt.Sprintf(" %#v", v), nil
		}
		return "", err
	}
	return " " + string(data), nil
}

func keyString(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// FormatPrettyStats prints a string of stats info
func FormatPrettyStats(diffStat *Stats) string {
	return formatStats(diffStat, false)
}

// FormatPrettyStatsColor prints a string of stats info with ANSI colors
func FormatPrettyStatsColor(diffStat *Stats) string {
	return formatStats(diffStat, true)
}

func plural(n int, word string) string {
	if n == 1 || n == -1 {
		return word
	}
	return word + "s"
}

func formatStats(ds *Stats, colorTTY bool) string {
	if ds == nil {
		return "<nil>"
	}

	neutral := color.New(color.FgWhite)
	add := color.New(color.FgGreen)
	remove := color.New(color.FgRed)
	update := color.New(color.FgBlue)
	resize := color.New(color.FgYellow)
	for _, c := range []*color.Color{neutral, add, remove, update, resize} {
		if colorTTY {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	buf := &bytes.Buffer{}

	elsColor, sign := add, "+"
	change := ds.NodeChange()
	if change < 0 {
		elsColor, sign = remove, ""
	} else if change == 0 {
		elsColor, sign = neutral, ""
	}
	buf.WriteString(elsColor.Sprintf("%s%d", sign, change))
	buf.WriteString(neutral.Sprintf(" %s.", plural(change, "element")))

	buf.WriteString(add.Sprintf(" %d %s.", ds.Adds, plural(ds.Adds, "add")))
	buf.WriteString(remove.Sprintf(" %d %s.", ds.Removes, plural(ds.Removes, "remove")))
	buf.WriteString(update.Sprintf(" %d %s.", ds.Updates, plural(ds.Updates, "update")))
	if ds.Resizes > 0 {
		buf.WriteString(resize.Sprintf(" %d %s.", ds.Resizes, plural(ds.Resizes, "resize")))
	}

	buf.WriteRune('\n')
	return buf.String()
}
