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
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

func init() {
	RegisterCodec(CodecLZMA, func() Codec { return &lzmaCodec{} })
	RegisterCodec(CodecCDLZMA, func() Codec { return &cdLZMACodec{} })
}

// lzmaPropsByte is CHD's fixed LZMA property byte: lc=3, lp=0, pb=2, encoded
// as lc + lp*9 + pb*45 = 3 + 0 + 90 = 93 = 0x5D.
const lzmaPropsByte = 0x5D

// computeLZMADictSize mirrors MAME's configure_properties / LzmaEncProps_Normalize:
// level 8 with reduceSize set to the hunk size, giving the smallest dictionary
// of the form 2<<i or 3<<i (i from 11 to 30, so never below 4096) that is
// >= hunkBytes.
func computeLZMADictSize(hunkBytes uint32) uint32 {
	for i := uint32(11); i <= 30; i++ {
		if hunkBytes <= (2 << i) {
			return 2 << i
		}
		if hunkBytes <= (3 << i) {
			return 3 << i
		}
	}
	return 1 << 26
}

// lzmaCodec is the base LZMA codec: a raw LZMA1 stream with no header at
// all. The dictionary size is derived from the hunk size (here, len(dst),
// since dest.len() is always exactly one hunk), matching the way the
// property byte and dictionary size are never stored on disk.
type lzmaCodec struct{}

func (*lzmaCodec) Decompress(dst, src []byte) (int, error) {
	return decompressLZMA(dst, src, uint32(len(dst)))
}

// decompressLZMA decompresses a headerless LZMA1 stream by synthesizing the
// 13-byte header the library expects: properties byte, little-endian
// dictionary size, little-endian uncompressed size.
func decompressLZMA(dst, src []byte, hunkBytes uint32) (int, error) {
	if len(src) == 0 {
		return 0, fmt.Errorf("%w: lzma: empty source", ErrDecompressFailed)
	}

	dictSize := computeLZMADictSize(hunkBytes)

	var header [13]byte
	header[0] = lzmaPropsByte
	binary.LittleEndian.PutUint32(header[1:5], dictSize)
	binary.LittleEndian.PutUint64(header[5:13], uint64(len(dst)))

	stream := io.MultiReader(bytes.NewReader(header[:]), bytes.NewReader(src))
	r, err := lzma.NewReader(stream)
	if err != nil {
		return 0, fmt.Errorf("%w: lzma init: %w", ErrDecompressFailed, err)
	}

	n, err := io.ReadFull(r, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, fmt.Errorf("%w: lzma: %w", ErrDecompressFailed, err)
	}
	if n != len(dst) {
		return n, fmt.Errorf("%w: lzma: short decompress (%d of %d bytes)", ErrDecompressFailed, n, len(dst))
	}
	return n, nil
}

// cdLZMACodec is the CD-LZMA composite: sector data compressed with LZMA,
// subcode compressed with raw DEFLATE.
type cdLZMACodec struct{}

func (c *cdLZMACodec) Decompress(dst, src []byte) (int, error) {
	return c.DecompressCD(dst, src, len(dst)/CDFrameSize)
}

func (*cdLZMACodec) DecompressCD(dst, src []byte, frames int) (int, error) {
	decodeData := func(dst, src []byte) (int, error) {
		//nolint:gosec // frames*CDSectorSize is bounded by hunkbytes, which fits uint32
		return decompressLZMA(dst, src, uint32(len(dst)))
	}
	return decompressCDComposite(dst, src, frames, decodeData)
}
