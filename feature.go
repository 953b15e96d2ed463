package objdiff

import "fmt"

// Feature is a toggle that changes how a Mapper diffs or merges
type Feature uint8

const (
	// EqualityUseEquals compares values with value equality, honouring Equal
	// methods. enabled by default
	EqualityUseEquals Feature = iota
	// EqualityUseHash compares values by structural hash. mutually exclusive
	// with EqualityUseEquals
	EqualityUseHash

	// IgnoreTransient skips struct fields tagged `objdiff:"transient"`
	IgnoreTransient
	// IgnoreUnexported skips unexported struct fields
	IgnoreUnexported

	// ValidateSourceValue checks live values against the previous values a
	// diff recorded before changing them
	ValidateSourceValue
	// ValidateFieldExistence fails a merge when a diff names a struct field
	// the live value doesn't have
	ValidateFieldExistence

	IgnoreFieldDiffHandlers
	IgnoreClassDiffHandlers
	IgnoreGlobalDiffHandlers

	IgnoreFieldMergeHandlers
	IgnoreClassMergeHandlers
	IgnoreGlobalMergeHandlers

	// SlicesAsArrays diffs every slice as a fixed-length sequence, producing
	// resize entries instead of element adds & removes
	SlicesAsArrays

	numFeatures
)

var featureNames = [numFeatures]string{
	"EqualityUseEquals",
	"EqualityUseHash",
	"IgnoreTransient",
	"IgnoreUnexported",
	"ValidateSourceValue",
	"ValidateFieldExistence",
	"IgnoreFieldDiffHandlers",
	"IgnoreClassDiffHandlers",
	"IgnoreGlobalDiffHandlers",
	"IgnoreFieldMergeHandlers",
	"IgnoreClassMergeHandlers",
	"IgnoreGlobalMergeHandlers",
	"SlicesAsArrays",
}

func (f Feature) String() string {
	if f < numFeatures {
		return featureNames[f]
	}
	return fmt.Sprintf("Feature(%d)", uint8(f))
}

// siblings lists the features that can't be enabled alongside f
func (f Feature) siblings() []Feature {
	switch f {
	case EqualityUseEquals:
		return []Feature{EqualityUseHash}
	case EqualityUseHash:
		return []Feature{EqualityUseEquals}
	}
	return nil
}

type featureSet uint32

func (s featureSet) has(f Feature) bool { return s&(1<<f) != 0 }

func (s featureSet) with(f Feature) featureSet {
	for _, sib := range f.siblings() {
		s = s.without(sib)
	}
	return s | 1<<f
}

func (s featureSet) without(f Feature) featureSet { return s &^ (1 << f) }

// MergeStrategy controls what ApplyDiff copies before changing it. with no
// strategy enabled diffs are applied in place
type MergeStrategy uint8

const (
	// CloneFullObject deep-clones the root value before applying
	CloneFullObject MergeStrategy = iota
	// CloneRootOnly shallow-clones the root value before applying
	CloneRootOnly
	// CloneCollectionsOnly shallow-clones every slice, array, set & map the
	// diff touches
	CloneCollectionsOnly

	numStrategies
)

var strategyNames = [numStrategies]string{"CloneFullObject", "CloneRootOnly", "CloneCollectionsOnly"}

func (s MergeStrategy) String() string {
	if s < numStrategies {
		return strategyNames[s]
	}
	return fmt.Sprintf("MergeStrategy(%d)", uint8(s))
}

type strategySet uint8

func newStrategySet(strategies ...MergeStrategy) strategySet {
	var s strategySet
	for _, st := range strategies {
		s |= 1 << st
	}
	return s
}

func (s strategySet) has(st MergeStrategy) bool { return s&(1<<st) != 0 }

func (s strategySet) list() []MergeStrategy {
	var l []MergeStrategy
	for st := MergeStrategy(0); st < numStrategies; st++ {
		if s.has(st) {
			l = append(l, st)
		}
	}
	return l
}
