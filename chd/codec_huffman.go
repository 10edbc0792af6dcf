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

import "fmt"

func init() {
	RegisterCodec(CodecHuff, func() Codec { return &huffCodec{} })
}

// huffCodec is the base Huffman codec: num_codes=256, max_bits=16, per
// spec.md §4.3. The table is imported fresh from src on every call, the way
// the Huffman-encoded length list is always re-sent per hunk.
type huffCodec struct{}

func (*huffCodec) Decompress(dst, src []byte) (int, error) {
	br := newBitReader(src)
	decoder := newHuffmanDecoder(256, 16)
	if err := decoder.importTreeHuffman(br); err != nil {
		return 0, fmt.Errorf("%w: huff: %w", ErrDecompressFailed, err)
	}

	for i := range dst {
		dst[i] = decoder.decode(br)
	}

	if br.overflow() {
		return len(dst), fmt.Errorf("%w: huff: bit-stream overflow", ErrDecompressFailed)
	}
	return len(dst), nil
}
