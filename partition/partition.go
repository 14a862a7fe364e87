// Package partition splits an ordered suite list into contiguous CI shards.
package partition

import "fmt"

// Partition returns the contiguous slice of items owned by shard index
// (1-indexed) out of count shards. Every shard holds ceil(len(items)/count)
// items except the last, which takes whatever remains.
//
// For a fixed input, the shards 1..count cover items exactly once, in order.
func Partition[T any](items []T, index, count int) ([]T, error) {
	if count < 1 {
		return nil, fmt.Errorf("batch count must be at least 1, got %d", count)
	}
	if index < 1 || index > count {
		return nil, fmt.Errorf("batch index %d out of range [1, %d]", index, count)
	}

	chunkSize := (len(items) + count - 1) / count
	start := min((index-1)*chunkSize, len(items))
	end := len(items)
	if index < count {
		end = min(index*chunkSize, len(items))
	}
	return items[start:end:end], nil
}
