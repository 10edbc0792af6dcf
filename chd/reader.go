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
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader is an open CHD file: header, hunk map, initialized codec slots, a
// single-hunk read-through cache, and an optional linked parent, per
// spec.md §4.7.
type Reader struct {
	r        io.ReaderAt
	closer   io.Closer
	header   *Header
	hunkMap  *hunkMap
	codecs   [4]Codec
	fileSize int64
	pos      int64
	parent   *Reader

	cacheValid bool
	cacheIndex uint32
	cacheData  []byte
}

// Open opens the CHD file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-supplied by design
	if err != nil {
		return nil, fmt.Errorf("chd: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("chd: stat %s: %w", path, err)
	}

	rd, err := newReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	rd.closer = f
	return rd, nil
}

// OpenReaderAt opens a CHD image from an already-open io.ReaderAt of the
// given total size, without taking ownership of any underlying file.
func OpenReaderAt(r io.ReaderAt, size int64) (*Reader, error) {
	return newReader(r, size)
}

func newReader(r io.ReaderAt, fileSize int64) (*Reader, error) {
	header, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	hm, err := buildHunkMap(r, header)
	if err != nil {
		return nil, err
	}

	rd := &Reader{
		r:        r,
		header:   header,
		hunkMap:  hm,
		fileSize: fileSize,
	}
	for k, tag := range header.Compressors {
		if tag == CodecNone {
			continue
		}
		rd.codecs[k] = newCodecForTag(tag)
	}
	return rd, nil
}

// Close releases the underlying file, if Open opened one.
func (rd *Reader) Close() error {
	if rd.closer != nil {
		return rd.closer.Close()
	}
	return nil
}

// SetParent links other as this reader's parent, verifying other.SHA1
// matches this file's recorded ParentSHA1.
func (rd *Reader) SetParent(other *Reader) error {
	if other.header.SHA1 != rd.header.ParentSHA1 {
		return ErrParentMismatch
	}
	rd.parent = other
	return nil
}

// FileSize returns the size in bytes of the CHD file itself.
func (rd *Reader) FileSize() int64 { return rd.fileSize }

// Version returns the CHD format version (always 5).
func (rd *Reader) Version() uint32 { return rd.header.Version }

// Size returns the logical (decompressed) size in bytes.
func (rd *Reader) Size() uint64 { return rd.header.LogicalBytes }

// HunkSize returns the number of bytes per hunk.
func (rd *Reader) HunkSize() uint32 { return rd.header.HunkBytes }

// HunkCount returns the total number of hunks.
func (rd *Reader) HunkCount() uint32 { return rd.hunkMap.numHunks() }

// UnitSize returns the number of bytes per unit within a hunk.
func (rd *Reader) UnitSize() uint32 { return rd.header.UnitBytes }

// ReadHunk decodes hunk i in full into dst, which must have length HunkSize().
func (rd *Reader) ReadHunk(i uint32, dst []byte) error {
	return rd.readHunk(i, dst, 0)
}

func (rd *Reader) readHunk(i uint32, dst []byte, depth int) error {
	compression, off, length, err := rd.hunkMap.locate(i)
	if err != nil {
		return err
	}

	switch compression {
	case compNone:
		return readAt(rd.r, int64(off), dst)

	case compSelf:
		if depth+1 > maxSelfRecursion {
			return fmt.Errorf("%w: SELF recursion exceeds %d", ErrInvalidHunk, maxSelfRecursion)
		}
		return rd.readHunk(uint32(off), dst, depth+1)

	case compParent:
		if rd.parent == nil {
			return ErrNoParent
		}
		parentPos := int64(off) * int64(rd.parent.header.UnitBytes)
		if err := rd.parent.Seek(parentPos); err != nil {
			return fmt.Errorf("chd: seek parent: %w", err)
		}
		n, err := rd.parent.Read(dst)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("chd: read parent: %w", err)
		}
		for j := n; j < len(dst); j++ {
			dst[j] = 0
		}
		return nil

	case compCodec0, compCodec1, compCodec2, compCodec3:
		codec := rd.codecs[compression]
		if codec == nil {
			return ErrUnsupportedCodec
		}
		scratch, err := readBytesAt(rd.r, int64(off), int(length))
		if err != nil {
			return err
		}
		if _, err := codec.Decompress(dst, scratch); err != nil {
			return err
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown compression kind %d", ErrInvalidHunk, compression)
	}
}

// Seek positions the reader at byte offset pos within [0, Size()].
func (rd *Reader) Seek(pos int64) error {
	if pos < 0 || uint64(pos) > rd.header.LogicalBytes {
		return ErrSeekRange
	}
	rd.pos = pos
	return nil
}

// Read copies up to len(buf) decoded bytes starting at the current position,
// clipped to the logical end of the data, advancing the position by the
// number of bytes produced. It satisfies io.Reader.
func (rd *Reader) Read(buf []byte) (int, error) {
	remaining := int64(rd.header.LogicalBytes) - rd.pos
	if remaining <= 0 {
		if len(buf) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	n := len(buf)
	if int64(n) > remaining {
		n = int(remaining)
	}

	hunkBytes := int64(rd.header.HunkBytes)
	produced := 0
	for produced < n {
		curPos := rd.pos + int64(produced)
		//nolint:gosec // hunkBytes > 0, curPos bounded by LogicalBytes
		hunkIdx := uint32(curPos / hunkBytes)
		start := curPos % hunkBytes
		end := start + int64(n-produced)
		if end > hunkBytes {
			end = hunkBytes
		}
		window := end - start

		if window == hunkBytes && (!rd.cacheValid || rd.cacheIndex != hunkIdx) {
			if err := rd.ReadHunk(hunkIdx, buf[produced:produced+int(window)]); err != nil {
				return produced, err
			}
		} else {
			if !rd.cacheValid || rd.cacheIndex != hunkIdx {
				if int64(len(rd.cacheData)) != hunkBytes {
					rd.cacheData = make([]byte, hunkBytes)
				}
				if err := rd.ReadHunk(hunkIdx, rd.cacheData); err != nil {
					rd.cacheValid = false
					return produced, err
				}
				rd.cacheValid = true
				rd.cacheIndex = hunkIdx
			}
			copy(buf[produced:produced+int(window)], rd.cacheData[start:end])
		}

		produced += int(window)
	}

	rd.pos += int64(produced)
	return produced, nil
}

// ValidateHunk decodes hunk i (following SELF references) and checks it
// against the map's stored CRC. PARENT hunks are never validatable (spec.md §9).
func (rd *Reader) ValidateHunk(i uint32) error {
	return rd.validateHunk(i, 0)
}

func (rd *Reader) validateHunk(i uint32, depth int) error {
	compression, off, _, err := rd.hunkMap.locate(i)
	if err != nil {
		return err
	}
	switch compression {
	case compSelf:
		if depth+1 > maxSelfRecursion {
			return fmt.Errorf("%w: SELF recursion exceeds %d", ErrInvalidHunk, maxSelfRecursion)
		}
		return rd.validateHunk(uint32(off), depth+1)
	case compParent:
		return fmt.Errorf("%w: cannot validate a PARENT hunk", ErrInvalidHunk)
	}

	buf := make([]byte, rd.header.HunkBytes)
	if err := rd.ReadHunk(i, buf); err != nil {
		return err
	}
	return rd.hunkMap.validate(i, buf)
}

// Validate decodes and CRC-checks every hunk, stopping at the first failure.
func (rd *Reader) Validate() error {
	for i := range rd.hunkMap.numHunks() {
		if err := rd.ValidateHunk(i); err != nil {
			return fmt.Errorf("hunk %d: %w", i, err)
		}
	}
	return nil
}

// tagToASCII renders a 4-byte big-endian codec tag as its ASCII string,
// replacing any byte outside printable ASCII (0x20..0x7E) with '?', matching the reference tool's
// compression-line rendering.
func tagToASCII(tag uint32) string {
	b := [4]byte{byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)}
	for i, c := range b {
		if c < 0x20 || c > 0x7E {
			b[i] = '?'
		}
	}
	return string(b[:])
}

// WriteSummary writes a human-readable summary of the CHD file to w, per
// spec.md §6.
func (rd *Reader) WriteSummary(w io.Writer) error {
	h := rd.header
	lines := []struct {
		label string
		value any
	}{
		{"File size", rd.fileSize},
		{"CHD version", h.Version},
		{"Logical size", h.LogicalBytes},
		{"Hunk Size", h.HunkBytes},
		{"Total Hunks", rd.hunkMap.numHunks()},
		{"Unit Size", h.UnitBytes},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s: %v\n", l.label, l.value); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprint(w, "Compression:"); err != nil {
		return err
	}
	for i, tag := range h.Compressors {
		if tag == CodecNone {
			if i == 0 {
				if _, err := fmt.Fprint(w, " none"); err != nil {
					return err
				}
			}
			break
		}
		if _, err := fmt.Fprintf(w, " %s (%08x)", tagToASCII(tag), tag); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	ratio := 1e2 * float64(rd.fileSize) / float64(h.LogicalBytes)
	if _, err := fmt.Fprintf(w, "Ratio: %.1f%%\n", ratio); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "SHA1: %x\n", h.SHA1); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Data SHA1: %x\n", h.RawSHA1); err != nil {
		return err
	}
	if h.HasParent() {
		if _, err := fmt.Fprintf(w, "Parent SHA1: %x\n", h.ParentSHA1); err != nil {
			return err
		}
	}
	return nil
}
