package objdiff

import (
	"reflect"
	"time"

	"github.com/pkg/errors"
)

// UnixMilli is the name the millisecond time handlers are registered under
// on every Mapper, for use in struct tags:
//
//	Modified time.Time `objdiff:"diff=unixmilli,merge=unixmilli"`
const UnixMilli = "unixmilli"

// UnixMilliDiffHandler records changes to time.Time (or *time.Time) fields as
// Unix millisecond timestamps, ignoring sub-millisecond differences &
// location changes
var UnixMilliDiffHandler = DiffHandlerFunc(func(src, target interface{}, ctx *DiffContext) (*DiffNode, error) {
	a, aok, err := unixMilli(src)
	if err != nil {
		return nil, err
	}
	b, bok, err := unixMilli(target)
	if err != nil {
		return nil, err
	}
	if aok == bok && a == b {
		return nil, nil
	}
	return Updated(millisOrNil(a, aok), millisOrNil(b, bok)), nil
})

// UnixMilliMergeHandler applies diffs made by UnixMilliDiffHandler, keeping
// the location of the value being merged into
var UnixMilliMergeHandler = MergeHandlerFunc(func(src interface{}, node *DiffNode, ctx *MergeContext) (interface{}, error) {
	if node.Op == OpNoop {
		return src, nil
	}
	if node.Op != OpUpdate && node.Op != OpAdd {
		return nil, errors.Errorf("unixmilli: cannot apply %q", node.Op)
	}

	cur, ok, err := unixMilli(src)
	if err != nil {
		return nil, err
	}
	if node.Op == OpUpdate && ctx.Mapper().IsEnabled(ValidateSourceValue) && !sameMillis(cur, ok, node.Prev) {
		return nil, &MergeValidationError{Path: ctx.Path(), Expected: node.Prev, Actual: millisOrNil(cur, ok)}
	}

	loc := time.UTC
	if t, ok := asTime(src); ok {
		loc = t.Location()
	}
	pointer := ctx.Type() != nil && ctx.Type().Kind() == reflect.Ptr

	if node.Next == nil {
		if pointer {
			return (*time.Time)(nil), nil
		}
		return time.Time{}, nil
	}
	ms, ok := node.Next.(int64)
	if !ok {
		return nil, errors.Errorf("unixmilli: expected int64 timestamp, got %T", node.Next)
	}
	t := time.UnixMilli(ms).In(loc)
	if pointer {
		return &t, nil
	}
	return t, nil
})

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

// unixMilli reads a timestamp from v. ok is false for nil values
func unixMilli(v interface{}) (ms int64, ok bool, err error) {
	if v == nil {
		return 0, false, nil
	}
	if t, isTime := asTime(v); isTime {
		return t.UnixMilli(), true, nil
	}
	if p, isPtr := v.(*time.Time); isPtr && p == nil {
		return 0, false, nil
	}
	return 0, false, errors.Errorf("unixmilli: expected time.Time, got %T", v)
}

func millisOrNil(ms int64, ok bool) interface{} {
	if !ok {
		return nil
	}
	return ms
}

func sameMillis(ms int64, ok bool, recorded interface{}) bool {
	if !ok {
		return recorded == nil
	}
	r, isInt := recorded.(int64)
	return isInt && r == ms
}
