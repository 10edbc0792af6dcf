// Copyright (c) 2025 The chd Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of chd.
//
// chd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// chd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with chd.  If not, see <https://www.gnu.org/licenses/>.

package chd

import "errors"

// Allocation limits that bound untrusted header fields before they drive
// allocations, so a corrupt or hostile file cannot force unbounded memory use.
const (
	// MaxCompMapLen is the largest compressed hunk-map payload accepted (100MB).
	MaxCompMapLen = 100 * 1024 * 1024

	// MaxNumHunks is the largest hunk count accepted (10M hunks).
	MaxNumHunks = 10_000_000

	// MaxMetadataLen is the largest metadata entry accepted (16MB, matches the 24-bit length field).
	MaxMetadataLen = 16 * 1024 * 1024

	// MaxMetadataEntries bounds the metadata chain walk against cycles.
	MaxMetadataEntries = 1000

	// maxSelfRecursion bounds SELF-reference recursion depth against pathological chains.
	maxSelfRecursion = 1000
)

// Errors returned by this package, grouped by the taxonomy in spec.md §7.
var (
	// Format errors: malformed header.
	ErrInvalidMagic       = errors.New("chd: invalid magic, expected MComprHD")
	ErrInvalidHeader      = errors.New("chd: invalid header")
	ErrUnsupportedVersion = errors.New("chd: unsupported version, only V5 is supported")

	// Integrity errors: CRC/overflow/trailing-data mismatches.
	ErrMapCRCMismatch   = errors.New("chd: hunk map CRC mismatch")
	ErrHunkCRCMismatch  = errors.New("chd: hunk CRC mismatch")
	ErrDecompressFailed = errors.New("chd: decompression failed")

	// Dispatch errors: codec slot/tag problems.
	ErrUnsupportedCodec = errors.New("chd: unsupported or absent codec")

	// Structure errors: malformed map or missing/mismatched parent.
	ErrInvalidHunk    = errors.New("chd: invalid hunk reference")
	ErrNoParent       = errors.New("chd: parent reference with no parent attached")
	ErrParentMismatch = errors.New("chd: parent SHA1 does not match parentsha1")

	// Range errors: seeks outside [0, size].
	ErrSeekRange = errors.New("chd: seek out of range")

	// Structure errors: metadata chain.
	ErrInvalidMetadata = errors.New("chd: invalid metadata")
)
