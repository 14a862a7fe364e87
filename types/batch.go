package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Batch selects one shard of the suite list, 1-indexed.
type Batch struct {
	Index int
	Count int
}

// ParseBatch parses a batch specifier of the form "<index>-<count>", e.g. "2-4".
func ParseBatch(s string) (*Batch, error) {
	idx, count, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return nil, fmt.Errorf("bad batch input format %q: expected <index>-<count>", s)
	}
	index, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil {
		return nil, fmt.Errorf("bad batch input format %q: %w", s, err)
	}
	total, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil {
		return nil, fmt.Errorf("bad batch input format %q: %w", s, err)
	}
	b := &Batch{Index: index, Count: total}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks 1 <= Index <= Count.
func (b Batch) Validate() error {
	if b.Index <= 0 || b.Count <= 0 {
		return errors.New("test batch number or batch counts must be non-zero values")
	}
	if b.Index > b.Count {
		return errors.New("test batch number is larger than batch counts")
	}
	return nil
}

func (b Batch) String() string {
	return fmt.Sprintf("%d-%d", b.Index, b.Count)
}
