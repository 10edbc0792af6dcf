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
	"encoding/binary"
	"fmt"
)

// CD frame geometry, per spec.md §6.
const (
	CDSectorSize  = 2352
	CDSubcodeSize = 96
	CDFrameSize   = CDSectorSize + CDSubcodeSize // 2448
)

// cdSyncPattern is the canonical 12-byte CD Mode-1 sync prefix.
var cdSyncPattern = [12]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// eccRegionSize is the span covered by Mode-1 EDC/ECC: 4-byte header + 2048
// user bytes + 4-byte EDC + 8 zero bytes (the sync pattern is excluded).
const eccRegionSize = 4 + 2048 + 4 + 8

// decompressCDComposite implements the wire framing shared by the three CD
// composite codecs (spec.md §4.4): an ECC-regeneration flag bitmap, a length
// field, the data-codec payload, then the subcode payload (always raw
// DEFLATE). decodeData decompresses the data-codec payload into a buffer of
// frames*CDSectorSize bytes; callers supply the per-codec data decoder.
func decompressCDComposite(dst, src []byte, frames int, decodeData func(dst, src []byte) (int, error)) (int, error) {
	hunkBytes := len(dst)
	compLenBytes := 2
	if hunkBytes > 65535 {
		compLenBytes = 3
	}
	eccBytes := (frames + 7) / 8
	headerBytes := eccBytes + compLenBytes

	if len(src) < headerBytes {
		return 0, fmt.Errorf("%w: cd: source too small for header", ErrDecompressFailed)
	}
	eccBitmap := src[:eccBytes]

	var compLen int
	if compLenBytes == 3 {
		compLen = int(src[eccBytes])<<16 | int(src[eccBytes+1])<<8 | int(src[eccBytes+2])
	} else {
		compLen = int(beUint16(src[eccBytes : eccBytes+2]))
	}
	if headerBytes+compLen > len(src) {
		return 0, fmt.Errorf("%w: cd: invalid data length %d", ErrDecompressFailed, compLen)
	}

	dataPayload := src[headerBytes : headerBytes+compLen]
	subPayload := src[headerBytes+compLen:]

	sectorBuf := make([]byte, frames*CDSectorSize)
	if _, err := decodeData(sectorBuf, dataPayload); err != nil {
		return 0, fmt.Errorf("%w: cd data: %w", ErrDecompressFailed, err)
	}

	subBuf := make([]byte, frames*CDSubcodeSize)
	if len(subPayload) > 0 {
		if _, err := inflateRaw(subBuf, subPayload); err != nil {
			return 0, fmt.Errorf("%w: cd subcode: %w", ErrDecompressFailed, err)
		}
	}

	offset := 0
	for i := range frames {
		sectorStart := i * CDSectorSize
		copy(dst[offset:], sectorBuf[sectorStart:sectorStart+CDSectorSize])
		if eccBitmap[i/8]&(1<<(i%8)) != 0 {
			regenerateSector(dst[offset : offset+CDSectorSize])
		}
		offset += CDSectorSize

		subStart := i * CDSubcodeSize
		copy(dst[offset:], subBuf[subStart:subStart+CDSubcodeSize])
		offset += CDSubcodeSize
	}
	return offset, nil
}

// regenerateSector rewrites the sync pattern and Mode-1 EDC/ECC fields of a
// single 2352-byte CD sector in place, per spec.md §4.9.
func regenerateSector(sector []byte) {
	copy(sector[0:12], cdSyncPattern[:])

	region := sector[12 : 12+eccRegionSize] // header + data + edc + zero

	edc := edcCompute(0, sector[0:12+2052]) // sync+header+data, the EDC'd span
	binary.LittleEndian.PutUint32(sector[2064:2068], edc)
	for i := 2068; i < 2076; i++ {
		sector[i] = 0
	}

	eccWriteSector(region, sector[2076:2076+276])
}

// edcLUT and edcCompute implement the CD-ROM EDC, a byte-reflected CRC-32
// variant with polynomial 0xD8018001 and no final XOR. No library in the
// example pack implements this bespoke checksum; see DESIGN.md.
var edcLUT = func() [256]uint32 {
	var table [256]uint32
	for i := range 256 {
		edc := uint32(i)
		for range 8 {
			if edc&1 != 0 {
				edc = (edc >> 1) ^ 0xD8018001
			} else {
				edc >>= 1
			}
		}
		table[i] = edc
	}
	return table
}()

func edcCompute(seed uint32, data []byte) uint32 {
	edc := seed
	for _, b := range data {
		edc = (edc >> 8) ^ edcLUT[byte(edc)^b]
	}
	return edc
}

// eccFLUT and eccBLUT are GF(256) "multiply by 2" (and its inverse) tables
// under the primitive polynomial 0x11D, the basis of the CD-ROM Mode-1
// Reed-Solomon P/Q parity computation below.
var eccFLUT, eccBLUT = func() ([256]byte, [256]byte) {
	var f, b [256]byte
	for i := range 256 {
		j := i << 1
		if i&0x80 != 0 {
			j ^= 0x11D
		}
		f[i] = byte(j)
		b[i^j] = byte(i)
	}
	return f, b
}()

// eccCompute computes one P or Q parity pass over address (for P, the
// 2064-byte header+data+edc+zero region of a sector; for Q, that region
// followed by the 172 P parity bytes) per the canonical CD-ROM Mode-1
// algorithm, writing 2*majorCount bytes to dest.
func eccCompute(address []byte, majorCount, minorCount, majorMult, minorInc int, dest []byte) {
	size := len(address)
	for major := range majorCount {
		index := (major>>1)*majorMult + (major & 1)
		var eccA, eccB byte
		for range minorCount {
			temp := address[index]
			index += minorInc
			if index >= size {
				index -= size
			}
			eccA ^= temp
			eccB ^= temp
			eccA = eccFLUT[eccA]
		}
		eccA = eccBLUT[eccFLUT[eccA]^eccB]
		dest[major] = eccA
		dest[major+majorCount] = eccA ^ eccB
	}
}

// eccWriteSector writes the 172-byte P parity followed by the 104-byte Q
// parity (276 bytes total) for the given 2064-byte ECC region. Q is computed
// over the region followed by the P parity.
func eccWriteSector(address, ecc []byte) {
	eccCompute(address, 86, 24, 2, 86, ecc[0:172])
	qSource := make([]byte, 0, len(address)+172)
	qSource = append(append(qSource, address...), ecc[0:172]...)
	eccCompute(qSource, 52, 43, 86, 88, ecc[172:276])
}
