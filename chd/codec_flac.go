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

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

func init() {
	RegisterCodec(CodecFLAC, func() Codec { return &flacCodec{} })
	RegisterCodec(CodecCDFLAC, func() Codec { return &cdFLACCodec{} })
}

// flacHeaderTemplate is a minimal valid FLAC stream header (magic +
// STREAMINFO) used to give the headerless frames CHD stores a stream the
// mewkiz/flac decoder can parse. Mirrors MAME's flac_decoder header
// synthesis in src/lib/util/flac.cpp.
var flacHeaderTemplate = []byte{
	0x66, 0x4C, 0x61, 0x43, // "fLaC"
	0x80, 0x00, 0x00, 0x22, // STREAMINFO, last block, length 34
	0x00, 0x00, // min block size (patched)
	0x00, 0x00, // max block size (patched)
	0x00, 0x00, 0x00, // min frame size
	0x00, 0x00, 0x00, // max frame size
	0x0A, 0xC4, 0x42, 0xF0, // sample rate/channels/bits (patched)
	0x00, 0x00, 0x00, 0x00, // total samples (0 == unknown)
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // MD5 signature (0 == none)
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// buildFLACHeader patches a copy of flacHeaderTemplate with the block size
// and format CHD's synthetic stream needs.
func buildFLACHeader(sampleRate uint32, numChannels uint8, blockSize uint16) []byte {
	header := make([]byte, len(flacHeaderTemplate))
	copy(header, flacHeaderTemplate)

	header[0x08] = byte(blockSize >> 8)
	header[0x09] = byte(blockSize)
	header[0x0A] = byte(blockSize >> 8)
	header[0x0B] = byte(blockSize)

	val := (sampleRate << 4) | (uint32(numChannels-1) << 1)
	header[0x12] = byte(val >> 16)
	header[0x13] = byte(val >> 8)
	header[0x14] = byte(val)

	return header
}

// countingReader prepends a synthetic header to data and counts how many
// bytes of data (not header) have been consumed, so a caller can find where
// the FLAC payload ends within the original source slice.
type countingReader struct {
	header        []byte
	data          []byte
	headerPos     int
	dataPos       int
	bytesFromData int
}

func (cr *countingReader) Read(buf []byte) (int, error) {
	total := 0
	if cr.headerPos < len(cr.header) {
		n := copy(buf, cr.header[cr.headerPos:])
		cr.headerPos += n
		total += n
		buf = buf[n:]
	}
	if len(buf) > 0 && cr.dataPos < len(cr.data) {
		n := copy(buf, cr.data[cr.dataPos:])
		cr.dataPos += n
		cr.bytesFromData += n
		total += n
	}
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// writeStereoSamples interleaves one frame's stereo samples into dst as
// 16-bit values in the given endianness, starting at offset.
func writeStereoSamples(f *frame.Frame, dst []byte, offset int, bigEndian bool) int {
	if len(f.Subframes) < 2 {
		return offset
	}
	for i := range f.Subframes[0].NSamples {
		for ch := range 2 {
			sample := f.Subframes[ch].Samples[i]
			if offset+2 > len(dst) {
				return offset
			}
			if bigEndian {
				dst[offset] = byte(sample >> 8)
				dst[offset+1] = byte(sample)
			} else {
				dst[offset] = byte(sample)
				dst[offset+1] = byte(sample >> 8)
			}
			offset += 2
		}
	}
	return offset
}

// flacSampleRate is assumed for every synthetic stream CHD's FLAC codecs
// build: CD-DA's 44.1kHz, the only rate CHD's FLAC codec is used with.
const flacSampleRate = 44100

// flacCodec is the base FLAC codec. The leading byte of src selects the
// output sample endianness ('L' little, 'B' big); the remainder is a single
// raw FLAC frame with no stream header of its own.
type flacCodec struct{}

func (*flacCodec) Decompress(dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, fmt.Errorf("%w: flac: empty source", ErrDecompressFailed)
	}

	var bigEndian bool
	switch src[0] {
	case 'L':
		bigEndian = false
	case 'B':
		bigEndian = true
	default:
		return 0, fmt.Errorf("%w: flac: invalid endianness byte 0x%02x", ErrDecompressFailed, src[0])
	}

	duration := len(dst) / 4
	//nolint:gosec // duration is a hunk-bound sample count, far under uint16 range in practice
	header := buildFLACHeader(flacSampleRate, 2, uint16(duration))
	cr := &countingReader{header: header, data: src[1:]}

	stream, err := flac.New(cr)
	if err != nil {
		return 0, fmt.Errorf("%w: flac init: %w", ErrDecompressFailed, err)
	}
	defer func() { _ = stream.Close() }()

	f, err := stream.ParseNext()
	if err != nil {
		return 0, fmt.Errorf("%w: flac frame: %w", ErrDecompressFailed, err)
	}
	if len(f.Subframes) < 2 {
		return 0, fmt.Errorf("%w: flac: frame is not stereo", ErrDecompressFailed)
	}
	if int(f.Subframes[0].NSamples) != duration {
		return 0, fmt.Errorf("%w: flac: frame duration %d, want %d", ErrDecompressFailed, f.Subframes[0].NSamples, duration)
	}

	n := writeStereoSamples(f, dst, 0, bigEndian)
	if n != len(dst) {
		return n, fmt.Errorf("%w: flac: short decode (%d of %d bytes)", ErrDecompressFailed, n, len(dst))
	}
	return n, nil
}

// cdFLACCodec is the CD-FLAC composite: CD audio sectors compressed with
// FLAC, subcode compressed with raw DEFLATE.
type cdFLACCodec struct{}

func (c *cdFLACCodec) Decompress(dst, src []byte) (int, error) {
	return c.DecompressCD(dst, src, len(dst)/CDFrameSize)
}

// cdFLACBlockSize mirrors MAME's chd_cd_flac_compressor::blocksize(): start
// from bytes/4 samples and halve until it fits within one CD sector's worth
// of samples.
func cdFLACBlockSize(totalBytes int) uint16 {
	blockSize := totalBytes / 4
	for blockSize > CDSectorSize {
		blockSize /= 2
	}
	//nolint:gosec // bounded to <= CDSectorSize (2352)
	return uint16(blockSize)
}

// decodeCDFLACData decodes FLAC data into dst (sized frames*CDSectorSize),
// repeatedly invoking the frame decoder until dst is full. Per spec.md §4.4,
// the data-codec payload has already been isolated by the shared CD framing
// in decompressCDComposite, so no consumed-byte tracking is needed here;
// per design note (b), samples are always written big-endian.
func decodeCDFLACData(dst, src []byte) (int, error) {
	blockSize := cdFLACBlockSize(len(dst))
	header := buildFLACHeader(flacSampleRate, 2, blockSize)
	cr := &countingReader{header: header, data: src}

	stream, err := flac.New(cr)
	if err != nil {
		return 0, fmt.Errorf("%w: cdfl flac init: %w", ErrDecompressFailed, err)
	}
	defer func() { _ = stream.Close() }()

	offset := 0
	for offset < len(dst) {
		f, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return offset, fmt.Errorf("%w: cdfl frame: %w", ErrDecompressFailed, err)
		}
		offset = writeStereoSamples(f, dst, offset, true)
	}
	if offset != len(dst) {
		return offset, fmt.Errorf("%w: cdfl: short decode (%d of %d bytes)", ErrDecompressFailed, offset, len(dst))
	}
	return offset, nil
}

func (*cdFLACCodec) DecompressCD(dst, src []byte, frames int) (int, error) {
	return decompressCDComposite(dst, src, frames, decodeCDFLACData)
}
