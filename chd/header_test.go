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

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// buildHeaderBytes constructs a well-formed 124-byte V5 header, allowing the
// caller to mutate individual fields via mutate before returning the bytes.
func buildHeaderBytes(t *testing.T, hunkBytes, unitBytes uint32, logicalBytes uint64, mutate func([]byte)) []byte {
	t.Helper()

	buf := make([]byte, headerSizeV5)
	copy(buf[0:8], chdMagic[:])
	binary.BigEndian.PutUint32(buf[8:12], headerSizeV5)
	binary.BigEndian.PutUint32(buf[12:16], supportedVersion)
	// compressors[0..4] left zero (uncompressed)
	binary.BigEndian.PutUint64(buf[32:40], logicalBytes)
	// mapoffset, metaoffset left zero
	binary.BigEndian.PutUint32(buf[56:60], hunkBytes)
	binary.BigEndian.PutUint32(buf[60:64], unitBytes)

	if mutate != nil {
		mutate(buf)
	}
	return buf
}

func TestParseHeaderValid(t *testing.T) {
	t.Parallel()

	buf := buildHeaderBytes(t, 4096, 512, 44267, nil)
	h, err := parseHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	if h.HunkBytes != 4096 || h.UnitBytes != 512 {
		t.Errorf("got hunkBytes=%d unitBytes=%d", h.HunkBytes, h.UnitBytes)
	}

	count, err := h.HunkCount()
	if err != nil {
		t.Fatalf("HunkCount: %v", err)
	}
	if count != 11 { // ceil(44267/4096)
		t.Errorf("HunkCount() = %d, want 11", count)
	}
	if h.Compressed() {
		t.Error("Compressed() = true for all-zero compressors")
	}
	if h.HasParent() {
		t.Error("HasParent() = true for all-zero parentsha1")
	}
}

func TestParseHeaderInvalidMagic(t *testing.T) {
	t.Parallel()

	buf := buildHeaderBytes(t, 4096, 512, 1000, func(b []byte) {
		copy(b[0:8], "XXXXXXXX")
	})
	_, err := parseHeader(bytes.NewReader(buf))
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("err = %v, want ErrInvalidMagic", err)
	}
}

func TestParseHeaderInvalidLength(t *testing.T) {
	t.Parallel()

	buf := buildHeaderBytes(t, 4096, 512, 1000, func(b []byte) {
		binary.BigEndian.PutUint32(b[8:12], 100)
	})
	_, err := parseHeader(bytes.NewReader(buf))
	if !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("err = %v, want ErrInvalidHeader", err)
	}
}

func TestParseHeaderUnsupportedVersion(t *testing.T) {
	t.Parallel()

	buf := buildHeaderBytes(t, 4096, 512, 1000, func(b []byte) {
		binary.BigEndian.PutUint32(b[12:16], 4)
	})
	_, err := parseHeader(bytes.NewReader(buf))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestParseHeaderHunkBytesOutOfRange(t *testing.T) {
	t.Parallel()

	buf := buildHeaderBytes(t, 0, 1, 1000, nil)
	if _, err := parseHeader(bytes.NewReader(buf)); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("hunkBytes=0: err = %v, want ErrInvalidHeader", err)
	}

	buf = buildHeaderBytes(t, maxHunkBytes+1, 1, 1000, nil)
	if _, err := parseHeader(bytes.NewReader(buf)); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("hunkBytes too large: err = %v, want ErrInvalidHeader", err)
	}
}

func TestParseHeaderUnitBytesInvalid(t *testing.T) {
	t.Parallel()

	// unitBytes larger than hunkBytes.
	buf := buildHeaderBytes(t, 512, 1024, 1000, nil)
	if _, err := parseHeader(bytes.NewReader(buf)); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("unitBytes > hunkBytes: err = %v, want ErrInvalidHeader", err)
	}

	// hunkBytes not a multiple of unitBytes.
	buf = buildHeaderBytes(t, 1000, 512, 1000, nil)
	if _, err := parseHeader(bytes.NewReader(buf)); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("non-multiple unit bytes: err = %v, want ErrInvalidHeader", err)
	}
}

func TestHeaderCompressedAndHasParent(t *testing.T) {
	t.Parallel()

	buf := buildHeaderBytes(t, 4096, 512, 1000, func(b []byte) {
		copy(b[16:20], []byte("zlib"))
		b[104] = 0x01 // one nonzero byte of parentsha1
	})
	h, err := parseHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("parseHeader: %v", err)
	}
	if !h.Compressed() {
		t.Error("Compressed() = false, want true")
	}
	if !h.HasParent() {
		t.Error("HasParent() = false, want true")
	}
}
