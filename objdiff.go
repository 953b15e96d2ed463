package objdiff

import (
	"hash"
	"reflect"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-logr/logr"
	"github.com/qri-io/objdiff/clone"
	"github.com/qri-io/objdiff/internal/shape"
)

// Kind is the structural category a Mapper assigns to a type
type Kind = shape.Kind

// Kinds a type can be registered as with RegisterKind
const (
	KindLeaf   = shape.Leaf
	KindArray  = shape.Array
	KindList   = shape.List
	KindSet    = shape.Set
	KindMap    = shape.Map
	KindRecord = shape.Record
)

// NewHash returns the hash function used when the EqualityUseHash feature is
// enabled, wrapped in a function so package consumers can swap algorithms.
// default is 64-bit xxHash
var NewHash = func() hash.Hash64 {
	return xxhash.New()
}

// Diff computes the difference between src & target with a Mapper built
// from opts
func Diff(src, target interface{}, opts ...Option) (*DiffNode, error) {
	return New(opts...).Diff(src, target)
}

// ApplyDiff applies node to src with a default Mapper. see Mapper.ApplyDiff
func ApplyDiff(src interface{}, node *DiffNode, strategies ...MergeStrategy) (interface{}, error) {
	return New().ApplyDiff(src, node, strategies...)
}

// Config holds Mapper settings. Options adjust a Config before a Mapper is
// created
type Config struct {
	// Features to enable on top of the defaults
	Features []Feature
	// Strategies applied to every ApplyDiff call
	Strategies []MergeStrategy
	// Logger receives debug output. verbosity 1 logs per-call summaries,
	// verbosity 2 logs handler & clone decisions
	Logger logr.Logger
	// Provide a non-nil stats pointer & Diff will populate it with counts from
	// the most recent diff
	Stats *Stats
}

// Option is a function that adjusts a config. zero or more Options can be
// passed to New or Diff
type Option func(cfg *Config)

// OptionEnable turns on features
func OptionEnable(features ...Feature) Option {
	return func(cfg *Config) {
		cfg.Features = append(cfg.Features, features...)
	}
}

// OptionMergeStrategy enables merge strategies for every ApplyDiff call
func OptionMergeStrategy(strategies ...MergeStrategy) Option {
	return func(cfg *Config) {
		cfg.Strategies = append(cfg.Strategies, strategies...)
	}
}

// OptionSetLogger sets the logger
func OptionSetLogger(log logr.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = log
	}
}

// OptionSetStats will set the passed-in stats pointer when Diff is called
func OptionSetStats(st *Stats) Option {
	return func(cfg *Config) {
		cfg.Stats = st
	}
}

// Mapper diffs & merges object graphs. It holds the feature flags &
// handler registrations that steer both. Configure a Mapper before sharing
// it between goroutines, registration after that point is safe but will
// race with in-flight calls for which handlers they see. A Mapper with a
// Stats pointer set must not run Diff concurrently
type Mapper struct {
	log    logr.Logger
	stats  *Stats
	cloner *clone.Cloner

	mu            sync.RWMutex
	features      featureSet
	strategies    strategySet
	kinds         map[reflect.Type]Kind
	equality      map[reflect.Type]EqualityFunc
	diffHandlers  map[reflect.Type]DiffHandler
	mergeHandlers map[reflect.Type]MergeHandler
	namedDiff     map[string]DiffHandler
	namedMerge    map[string]MergeHandler
}

var timeType = reflect.TypeOf(time.Time{})

// New creates a Mapper. time.Time is registered as a leaf compared with its
// Equal method, & the "unixmilli" field handlers are available to struct tags
func New(opts ...Option) *Mapper {
	cfg := &Config{Logger: logr.Discard()}
	for _, opt := range opts {
		opt(cfg)
	}

	m := &Mapper{
		log:           cfg.Logger,
		stats:         cfg.Stats,
		features:      featureSet(0).with(EqualityUseEquals),
		kinds:         map[reflect.Type]Kind{},
		equality:      map[reflect.Type]EqualityFunc{},
		diffHandlers:  map[reflect.Type]DiffHandler{},
		mergeHandlers: map[reflect.Type]MergeHandler{},
		namedDiff:     map[string]DiffHandler{},
		namedMerge:    map[string]MergeHandler{},
	}
	m.cloner = &clone.Cloner{Immutable: func(t reflect.Type) bool {
		return m.kindOf(t) == KindLeaf
	}}

	for _, f := range cfg.Features {
		m.Enable(f)
	}
	m.strategies = newStrategySet(cfg.Strategies...)

	m.RegisterKind(timeType, KindLeaf)
	EqualityFor(m, time.Time.Equal)
	m.RegisterNamedDiffHandler(UnixMilli, UnixMilliDiffHandler)
	m.RegisterNamedMergeHandler(UnixMilli, UnixMilliMergeHandler)
	return m
}

// Logger returns the Mapper's logger
func (m *Mapper) Logger() logr.Logger { return m.log }

// Enable turns on a feature. enabling one of a mutually exclusive group
// disables the others
func (m *Mapper) Enable(f Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = m.features.with(f)
}

// Disable turns off a feature
func (m *Mapper) Disable(f Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features = m.features.without(f)
}

// IsEnabled reports whether a feature is on
func (m *Mapper) IsEnabled(f Feature) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.features.has(f)
}

// EnableStrategy turns on a merge strategy for every ApplyDiff call
func (m *Mapper) EnableStrategy(s MergeStrategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies |= 1 << s
}

// DisableStrategy turns off a globally enabled merge strategy
func (m *Mapper) DisableStrategy(s MergeStrategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies &^= 1 << s
}

// StrategyEnabled reports whether s is enabled globally or listed in oneOff
func (m *Mapper) StrategyEnabled(s MergeStrategy, oneOff ...MergeStrategy) bool {
	return m.strategySet(oneOff).has(s)
}

func (m *Mapper) strategySet(oneOff []MergeStrategy) strategySet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strategies | newStrategySet(oneOff...)
}

// RegisterKind overrides the structural kind of t. registering a slice type
// as KindArray makes it diff as a fixed-length sequence, registering a
// struct as KindLeaf makes it compare & replace whole
func (m *Mapper) RegisterKind(t reflect.Type, k Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[t] = k
}

// RegisterEqualityChecker sets the equality function used for values of
// type t. registered checkers take precedence over every equality feature
func (m *Mapper) RegisterEqualityChecker(t reflect.Type, fn EqualityFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equality[t] = fn
}

// RegisterDiffHandler sets the handler that diffs values of type t
func (m *Mapper) RegisterDiffHandler(t reflect.Type, h DiffHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diffHandlers[t] = h
}

// RegisterMergeHandler sets the handler that merges diffs into values of
// type t
func (m *Mapper) RegisterMergeHandler(t reflect.Type, h MergeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeHandlers[t] = h
}

// RegisterNamedDiffHandler makes h available to struct tags as diff=name
func (m *Mapper) RegisterNamedDiffHandler(name string, h DiffHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namedDiff[name] = h
}

// RegisterNamedMergeHandler makes h available to struct tags as merge=name
func (m *Mapper) RegisterNamedMergeHandler(name string, h MergeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namedMerge[name] = h
}

func (m *Mapper) kindOf(t reflect.Type) Kind {
	m.mu.RLock()
	k, ok := m.kinds[t]
	asArrays := m.features.has(SlicesAsArrays)
	m.mu.RUnlock()
	if ok {
		return k
	}

	k = shape.Of(t).Kind
	if k == KindList && asArrays {
		return KindArray
	}
	return k
}

// resolve finds the registration for v's type, trying each type along v's
// chain of pointers & interfaces. it returns the value the match was made on
func resolve[H any](m *Mapper, table map[reflect.Type]H, v reflect.Value) (H, reflect.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for v.IsValid() {
		if h, ok := table[v.Type()]; ok {
			return h, v, true
		}
		if k := v.Kind(); (k != reflect.Ptr && k != reflect.Interface) || v.IsNil() {
			break
		}
		v = v.Elem()
	}
	var zero H
	return zero, reflect.Value{}, false
}

func lookup[K comparable, H any](m *Mapper, table map[K]H, k K) (H, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := table[k]
	return h, ok
}
