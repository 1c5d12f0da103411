// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/exr

package exr

import "fmt"

const (
	maxInt32  = int(^uint32(0) >> 1)
	maxUint32 = uint64(^uint32(0))

	// DefaultMaxAllocation is the default upper bound for any single
	// allocation whose size is derived from file contents.
	DefaultMaxAllocation = 1 << 30
)

// i32FromInt converts an int to an int32.
func i32FromInt(n int) (int32, error) {
	if n < -maxInt32-1 || n > maxInt32 {
		return 0, ErrSizeOverflow
	}

	return int32(n), nil
}

// u32FromInt converts an int to a uint32.
func u32FromInt(n int) (uint32, error) {
	if n < 0 || uint64(n) > maxUint32 {
		return 0, ErrSizeOverflow
	}

	// #nosec G115 -- bounds checked above.
	return uint32(n), nil
}

// mulSize multiplies non-negative sizes and reports overflow past int64.
func mulSize(factors ...int64) (int64, error) {
	total := int64(1)
	for _, f := range factors {
		if f < 0 {
			return 0, ErrSizeOverflow
		}
		if f != 0 && total > (1<<62)/f {
			return 0, ErrSizeOverflow
		}
		total *= f
	}

	return total, nil
}

// checkAlloc fails with ErrAllocationTooLarge when size exceeds limit.
// A non-positive limit disables the check.
func checkAlloc(size, limit int64, what string) error {
	if size < 0 {
		return fmt.Errorf("%w: %s: negative size %d", ErrAllocationTooLarge, what, size)
	}
	if limit > 0 && size > limit {
		return fmt.Errorf("%w: %s needs %d bytes, limit is %d", ErrAllocationTooLarge, what, size, limit)
	}

	return nil
}
