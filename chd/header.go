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

// Package chd provides a read-only decoder for the MAME Compressed Hunks of
// Data (CHD) version 5 container format.
package chd

import (
	"fmt"
	"io"
)

var chdMagic = [8]byte{'M', 'C', 'o', 'm', 'p', 'r', 'H', 'D'}

const (
	headerSizeV5  = 124
	minHunkBytes  = 1
	maxHunkBytes  = 524288
	supportedVersion = 5
)

// Header is a parsed V5 CHD header, per spec.md §3/§6.
type Header struct {
	Version      uint32
	Compressors  [4]uint32
	LogicalBytes uint64
	MapOffset    uint64
	MetaOffset   uint64
	HunkBytes    uint32
	UnitBytes    uint32
	RawSHA1      [20]byte
	SHA1         [20]byte
	ParentSHA1   [20]byte
}

// parseHeader reads and validates the 124-byte V5 header at the start of r,
// per spec.md §4.5.
func parseHeader(r io.ReaderAt) (*Header, error) {
	buf, err := readBytesAt(r, 0, headerSizeV5)
	if err != nil {
		return nil, fmt.Errorf("chd: read header: %w", err)
	}

	var magic [8]byte
	copy(magic[:], buf[0:8])
	if magic != chdMagic {
		return nil, ErrInvalidMagic
	}

	length := beUint32(buf[8:12])
	if length != headerSizeV5 {
		return nil, fmt.Errorf("%w: header length %d, want %d", ErrInvalidHeader, length, headerSizeV5)
	}

	version := beUint32(buf[12:16])
	if version != supportedVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, version)
	}

	h := &Header{Version: version}
	h.Compressors[0] = beUint32(buf[16:20])
	h.Compressors[1] = beUint32(buf[20:24])
	h.Compressors[2] = beUint32(buf[24:28])
	h.Compressors[3] = beUint32(buf[28:32])
	h.LogicalBytes = beUint64(buf[32:40])
	h.MapOffset = beUint64(buf[40:48])
	h.MetaOffset = beUint64(buf[48:56])
	h.HunkBytes = beUint32(buf[56:60])
	h.UnitBytes = beUint32(buf[60:64])
	copy(h.RawSHA1[:], buf[64:84])
	copy(h.SHA1[:], buf[84:104])
	copy(h.ParentSHA1[:], buf[104:124])

	if h.HunkBytes < minHunkBytes || h.HunkBytes > maxHunkBytes {
		return nil, fmt.Errorf("%w: hunk bytes %d out of [%d, %d]", ErrInvalidHeader, h.HunkBytes, minHunkBytes, maxHunkBytes)
	}
	if h.UnitBytes == 0 || h.UnitBytes > h.HunkBytes {
		return nil, fmt.Errorf("%w: unit bytes %d invalid for hunk bytes %d", ErrInvalidHeader, h.UnitBytes, h.HunkBytes)
	}
	if h.HunkBytes%h.UnitBytes != 0 {
		return nil, fmt.Errorf("%w: hunk bytes %d not a multiple of unit bytes %d", ErrInvalidHeader, h.HunkBytes, h.UnitBytes)
	}

	return h, nil
}

// HunkCount returns ⌈LogicalBytes / HunkBytes⌉, rejecting overflow of u32.
func (h *Header) HunkCount() (uint32, error) {
	count := (h.LogicalBytes + uint64(h.HunkBytes) - 1) / uint64(h.HunkBytes)
	if count > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: hunk count %d overflows u32", ErrInvalidHeader, count)
	}
	return uint32(count), nil
}

// Compressed reports whether the header names a compressed-map CHD (slot 0 nonzero).
func (h *Header) Compressed() bool {
	return h.Compressors[0] != 0
}

// HasParent reports whether any byte of ParentSHA1 is nonzero.
func (h *Header) HasParent() bool {
	var zero [20]byte
	return h.ParentSHA1 != zero
}
