package reconciler

import (
	"strings"
)

// TombstonePolicy decides what happens to items that vanished from their source.
type TombstonePolicy string

const (
	// TombstoneRetain keeps vanished items in the next snapshot with status deleted.
	TombstoneRetain TombstonePolicy = "retain"
	// TombstonePrune drops vanished items from the next snapshot.
	TombstonePrune TombstonePolicy = "prune"
)

// String returns the string representation of a policy.
func (p TombstonePolicy) String() string {
	return string(p)
}

// Name returns the title-cased policy name.
func (p TombstonePolicy) Name() string {
	return titleWord(string(p))
}

// DuplicatePolicy decides how repeated ids inside one bucket are handled.
type DuplicatePolicy string

const (
	// DuplicateReject fails the bucket with a DuplicateIDError.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateFirstMatch keeps the first occurrence and logs the rest.
	DuplicateFirstMatch DuplicatePolicy = "first-match"
)

// String returns the string representation of a policy.
func (p DuplicatePolicy) String() string {
	return string(p)
}

// Name returns the title-cased policy name.
func (p DuplicatePolicy) Name() string {
	words := strings.Split(string(p), "-")
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
