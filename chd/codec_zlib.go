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
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

func init() {
	RegisterCodec(CodecZlib, func() Codec { return &zlibCodec{} })
	RegisterCodec(CodecCDZlib, func() Codec { return &cdZlibCodec{} })
}

// zlibCodec is the base Zlib codec. CHD uses raw DEFLATE (RFC 1951), never
// the zlib wrapper, so a flate reader is used directly over src.
type zlibCodec struct{}

func (*zlibCodec) Decompress(dst, src []byte) (int, error) {
	return inflateRaw(dst, src)
}

// inflateRaw inflates src as raw DEFLATE into exactly len(dst) bytes.
func inflateRaw(dst, src []byte) (int, error) {
	r := flate.NewReader(bytes.NewReader(src))
	defer func() { _ = r.Close() }()

	n, err := io.ReadFull(r, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, fmt.Errorf("%w: zlib: %w", ErrDecompressFailed, err)
	}
	if n != len(dst) {
		return n, fmt.Errorf("%w: zlib: short inflate (%d of %d bytes)", ErrDecompressFailed, n, len(dst))
	}
	return n, nil
}

// cdZlibCodec is the CD-ZLIB composite: sector data compressed with raw
// DEFLATE, subcode compressed with raw DEFLATE.
type cdZlibCodec struct{}

func (c *cdZlibCodec) Decompress(dst, src []byte) (int, error) {
	return c.DecompressCD(dst, src, len(dst)/CDFrameSize)
}

func (*cdZlibCodec) DecompressCD(dst, src []byte, frames int) (int, error) {
	return decompressCDComposite(dst, src, frames, inflateRaw)
}
