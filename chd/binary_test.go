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
	"testing"
)

func TestBigEndianReads(t *testing.T) {
	t.Parallel()

	b := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	if got := beUint16(b[0:2]); got != 0x0102 {
		t.Errorf("beUint16 = 0x%04x, want 0x0102", got)
	}
	if got := beUint24(b[0:3]); got != 0x010203 {
		t.Errorf("beUint24 = 0x%06x, want 0x010203", got)
	}
	if got := beUint32(b[0:4]); got != 0x01020304 {
		t.Errorf("beUint32 = 0x%08x, want 0x01020304", got)
	}
	if got := beUint48(b[0:6]); got != 0x010203040506 {
		t.Errorf("beUint48 = 0x%012x, want 0x010203040506", got)
	}
	if got := beUint64(b); got != 0x0102030405060708 {
		t.Errorf("beUint64 = 0x%016x, want 0x0102030405060708", got)
	}
}

func TestCRC16CCITTFalseCheckValue(t *testing.T) {
	t.Parallel()

	// The standard CRC-16/CCITT-FALSE check value for the ASCII string
	// "123456789", per the CRC catalogue this variant is defined by.
	got := crc16CCITTFalse([]byte("123456789"))
	if got != 0x29B1 {
		t.Errorf("crc16CCITTFalse(\"123456789\") = 0x%04x, want 0x29B1", got)
	}
}

func TestCRC16CCITTFalseEmpty(t *testing.T) {
	t.Parallel()

	if got := crc16CCITTFalse(nil); got != 0xFFFF {
		t.Errorf("crc16CCITTFalse(nil) = 0x%04x, want 0xFFFF (init value)", got)
	}
}

func TestReadAtShortRead(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte{1, 2, 3})
	buf := make([]byte, 4)
	if err := readAt(r, 0, buf); err == nil {
		t.Fatal("expected error reading past end of source")
	}
}

func TestReadBytesAt(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	got, err := readBytesAt(r, 1, 2)
	if err != nil {
		t.Fatalf("readBytesAt: %v", err)
	}
	if !bytes.Equal(got, []byte{0xBB, 0xCC}) {
		t.Errorf("readBytesAt = %x, want bbcc", got)
	}
}
