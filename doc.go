// Package objdiff computes structural differences between arbitrary Go values
// and applies them back, producing merged values.
//
// A diff is a tree of DiffNodes mirroring the shape of the values compared.
// Each node records one Operation: no-op, add, update, remove, or resize.
// Children are keyed by struct field name, sequence index, map key, or a
// synthetic index for set elements. Values are classified as:
//
//	leaves     bools, numbers, strings, funcs, time.Time
//	arrays     Go arrays, or slices registered as KindArray
//	lists      slices
//	sets       map[K]struct{}
//	maps       any other map
//	records    structs
//
// Pointers and interfaces are followed. nil pointers, maps, slices and
// interfaces are treated as absent.
//
// Lists are compared position by position, with no attempt to align moved
// elements: diffing ["a","b"] against ["b","b","c"] updates index 0 & adds
// index 2.
//
// Diffing and merging are iterative, driven by the traverse package, so
// graphs of any depth can be processed. Behaviour is configured on a Mapper
// through features, merge strategies & handlers. Handlers can be declared
// for a single struct field (with an objdiff struct tag), for a type (by
// implementing SelfDiffer or SelfMerger), or globally on the Mapper.
package objdiff
