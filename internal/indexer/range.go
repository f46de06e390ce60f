package indexer

import "fmt"

// blockRange is an inclusive block span.
type blockRange struct {
	from uint64
	to   uint64
}

func splitRange(from, to, batchSize uint64) ([]blockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]blockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, blockRange{from: start, to: end})
		if end == to {
			return ranges, nil
		}
	}
}
