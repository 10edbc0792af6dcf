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
	"fmt"
	"io"
)

// MetadataEntry is one link of the file's metadata chain: a 4-byte ASCII
// tag, flags, and the raw payload bytes. CHD stores track layout, disc
// identity and similar data here; decoding those formats is out of scope —
// callers that need them can do so from the raw Data.
type MetadataEntry struct {
	Tag   uint32
	Flags uint8
	Data  []byte
	Next  uint64
}

// TagString renders Tag as its 4-character ASCII form (e.g. "CHT2").
func (e MetadataEntry) TagString() string {
	return string([]byte{byte(e.Tag >> 24), byte(e.Tag >> 16), byte(e.Tag >> 8), byte(e.Tag)})
}

// Metadata walks the file's metadata chain starting at header.MetaOffset and
// returns every entry found. An offset of zero means no metadata at all.
func (rd *Reader) Metadata() ([]MetadataEntry, error) {
	if rd.header.MetaOffset == 0 {
		return nil, nil
	}
	return readMetadataChain(rd.r, rd.header.MetaOffset)
}

func readMetadataChain(r io.ReaderAt, offset uint64) ([]MetadataEntry, error) {
	entries := make([]MetadataEntry, 0, 8)
	visited := make(map[uint64]bool)

	for offset != 0 {
		if visited[offset] {
			return entries, fmt.Errorf("%w: circular metadata chain at offset %d", ErrInvalidMetadata, offset)
		}
		visited[offset] = true

		if len(entries) >= MaxMetadataEntries {
			return entries, fmt.Errorf("%w: too many metadata entries (%d)", ErrInvalidMetadata, len(entries))
		}

		entry, err := readMetadataEntry(r, offset)
		if err != nil {
			return entries, fmt.Errorf("chd: read metadata at %d: %w", offset, err)
		}

		entries = append(entries, entry)
		offset = entry.Next
	}

	return entries, nil
}

// readMetadataEntry reads a single metadata entry. Layout: tag (4, BE),
// flags (1), length (3, BE), next offset (8, BE), then length bytes of data.
func readMetadataEntry(r io.ReaderAt, offset uint64) (MetadataEntry, error) {
	header, err := readBytesAt(r, int64(offset), 16)
	if err != nil {
		return MetadataEntry{}, fmt.Errorf("read metadata header: %w", err)
	}

	entry := MetadataEntry{
		Tag:   beUint32(header[0:4]),
		Flags: header[4],
		Next:  beUint64(header[8:16]),
	}

	length := beUint24(header[5:8])
	if length > MaxMetadataLen {
		return MetadataEntry{}, fmt.Errorf("%w: metadata entry too large (%d > %d)", ErrInvalidMetadata, length, MaxMetadataLen)
	}
	if length > 0 {
		data, err := readBytesAt(r, int64(offset)+16, int(length))
		if err != nil {
			return MetadataEntry{}, fmt.Errorf("read metadata data: %w", err)
		}
		entry.Data = data
	}

	return entry, nil
}
