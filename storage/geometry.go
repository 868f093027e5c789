// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package storage implements the page-structured, CRC-protected,
// append-only log over raw NOR flash (§4.2, C3): geometry computation, boot
// scan and write-frontier recovery, page flush, and indexed tail storage.
package storage

import (
	"errors"
	"fmt"

	"github.com/rdts/logger-core/frame"
)

// TailPages is the reserved tail region size, in pages (§3).
const TailPages = 256

// ErrGeometry is returned by ComputeGeometry when the chip is too small to
// host the reserved tail region (§7 Geometry error kind).
var ErrGeometry = errors.New("storage: geometry")

// Geometry describes how total_pages splits into the IMU region, sync
// region, and reserved tail storage (§3 Flash geometry).
type Geometry struct {
	TotalPages  uint32
	ImuPages    uint32
	SyncPages   uint32
	StorageBase uint32 // first page of the reserved tail, total_pages-256
}

// ComputeGeometry splits totalPages into the three contiguous regions of
// §3. It returns ErrGeometry if totalPages < TailPages (256), per §7.
func ComputeGeometry(totalPages uint32) (Geometry, error) {
	if totalPages < TailPages {
		return Geometry{}, fmt.Errorf("%w: %d pages is smaller than the %d-page reserved tail", ErrGeometry, totalPages, TailPages)
	}
	recordPages := totalPages - TailPages
	var syncPages uint32
	if recordPages > 0 {
		syncPages = clamp(recordPages/800, 1, recordPages-1)
	}
	return Geometry{
		TotalPages:  totalPages,
		ImuPages:    recordPages - syncPages,
		SyncPages:   syncPages,
		StorageBase: totalPages - TailPages,
	}, nil
}

func clamp(v, lo, hi uint32) uint32 {
	if hi < lo {
		// recordPages == 0 is handled by the caller before this is reached;
		// a zero-width clamp range degenerates to lo.
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SyncRegionStart returns the first page of the sync region.
func (g Geometry) SyncRegionStart() uint32 { return g.ImuPages }

// footerOffset is the byte offset of a page footer within a page.
const footerOffset = frame.PageSize - frame.FooterSize

// crcInput returns the bytes a page's CRC16 is computed over: the full
// frame region plus the footer bytes preceding the CRC16 field itself.
func crcInput(page []byte) []byte {
	return page[:footerOffset+6]
}
