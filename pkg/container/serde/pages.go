// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serde

import (
	"context"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
	"go.uber.org/zap"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/common/util"
	"github.com/matrixorigin/moblock/pkg/config"
	"github.com/matrixorigin/moblock/pkg/container/block"
	"github.com/matrixorigin/moblock/pkg/container/page"
	"github.com/matrixorigin/moblock/pkg/container/types"
	"github.com/matrixorigin/moblock/pkg/logutil"
	v2 "github.com/matrixorigin/moblock/pkg/util/metric/v2"
)

// Codec is the compression of a serialized page.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecLZ4
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return config.CompressionNone
	case CodecLZ4:
		return config.CompressionLZ4
	case CodecZstd:
		return config.CompressionZstd
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

func ParseCodec(name string) (Codec, error) {
	switch name {
	case config.CompressionNone, "":
		return CodecNone, nil
	case config.CompressionLZ4:
		return CodecLZ4, nil
	case config.CompressionZstd:
		return CodecZstd, nil
	}
	return CodecNone, moerr.NewBadConfig(context.Background(), "unknown compression %s", name)
}

// minCompressionRatio is the largest compressed/raw ratio worth keeping.
var minCompressionRatio = 0.8

// serializedPageHeaderSize covers position count, channel count, codec,
// uncompressed size and data length.
const serializedPageHeaderSize = 4 + 4 + 1 + 4 + 4

// SerializedPage is a page in wire form. Data holds the blocks of every
// channel, compressed with Codec when UncompressedSize differs from its
// length.
type SerializedPage struct {
	PositionCount    int
	ChannelCount     int
	Codec            Codec
	UncompressedSize int
	Data             []byte
}

func (sp *SerializedPage) IsCompressed() bool {
	return sp.Codec != CodecNone
}

func (sp *SerializedPage) SizeInBytes() int {
	return serializedPageHeaderSize + len(sp.Data)
}

func (sp *SerializedPage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, sp.SizeInBytes())
	buf = append(buf, types.EncodeFixed(uint32(sp.PositionCount))...)
	buf = append(buf, types.EncodeFixed(uint32(sp.ChannelCount))...)
	buf = append(buf, byte(sp.Codec))
	buf = append(buf, types.EncodeFixed(uint32(sp.UncompressedSize))...)
	buf = append(buf, types.EncodeFixed(uint32(len(sp.Data)))...)
	buf = append(buf, sp.Data...)
	return buf, nil
}

func (sp *SerializedPage) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	var (
		v   uint32
		c   byte
		err error
	)
	if v, err = r.ReadUint32(); err != nil {
		return err
	}
	sp.PositionCount = int(v)
	if v, err = r.ReadUint32(); err != nil {
		return err
	}
	sp.ChannelCount = int(v)
	if c, err = r.ReadByte(); err != nil {
		return err
	}
	sp.Codec = Codec(c)
	if v, err = r.ReadUint32(); err != nil {
		return err
	}
	sp.UncompressedSize = int(v)
	raw, err := r.ReadRaw("page data")
	if err != nil {
		return err
	}
	if r.Remaining() != 0 {
		return moerr.NewCorruptedPageNoCtx("%d trailing bytes after page", r.Remaining())
	}
	sp.Data = util.CloneBytes(raw)
	return nil
}

// NewReader returns a reader without a registry, it reads primitives only.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

var lz4HashTablePool = sync.Pool{
	New: func() any {
		ht := make([]int, 1<<16)
		return &ht
	},
}

// PagesSerde turns pages into serialized pages and back.
type PagesSerde struct {
	registry        *Registry
	codec           Codec
	minCompressSize int

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewPagesSerde(registry *Registry, cfg config.SerdeConfig) (*PagesSerde, error) {
	codec, err := ParseCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	s := &PagesSerde{
		registry:        registry,
		codec:           codec,
		minCompressSize: cfg.MinCompressSize,
	}
	if codec == CodecZstd {
		if s.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1)); err != nil {
			return nil, moerr.ConvertGoError(context.Background(), err)
		}
	}
	// A reader must accept zstd pages whatever it writes.
	if s.decoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1)); err != nil {
		s.Close()
		return nil, moerr.ConvertGoError(context.Background(), err)
	}
	return s, nil
}

func (s *PagesSerde) Close() {
	if s.encoder != nil {
		_ = s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
}

// Serialize writes every channel of p. Lazy blocks are loaded first.
func (s *PagesSerde) Serialize(p *page.Page) (*SerializedPage, error) {
	w := s.registry.NewWriter()
	blocks, err := compactRelatedChannels(w, p)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		if err := w.WriteBlock(b); err != nil {
			return nil, err
		}
	}
	raw := w.Bytes()
	sp := &SerializedPage{
		PositionCount:    p.PositionCount(),
		ChannelCount:     p.ChannelCount(),
		Codec:            CodecNone,
		UncompressedSize: len(raw),
		Data:             raw,
	}
	if s.codec != CodecNone && len(raw) >= s.minCompressSize {
		compressed, err := s.compress(raw)
		if err != nil {
			return nil, err
		}
		if compressed != nil && float64(len(compressed)) <= float64(len(raw))*minCompressionRatio {
			sp.Codec = s.codec
			sp.Data = compressed
		}
	}
	v2.SerdeSerializedPageCounter.Inc()
	v2.SerdeRawBytesCounter.Add(float64(len(raw)))
	v2.SerdeCompressedBytesCounter.Add(float64(len(sp.Data)))
	return sp, nil
}

// compactRelatedChannels loads the channels of p and compacts dictionary
// channels sharing a dictionary onto one common dictionary, registering it
// with w so the channels stay related after a round trip.
func compactRelatedChannels(w *Writer, p *page.Page) (blocks []block.Block, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = moerr.ConvertPanicError(moerr.Context(), r)
		}
	}()
	blocks = make([]block.Block, p.ChannelCount())
	related := make(map[block.DictionaryID][]int)
	var order []block.DictionaryID
	for i := range blocks {
		blocks[i] = p.Block(i).LoadedBlock()
		if v, ok := blocks[i].(*block.DictionaryBlock); ok {
			id := v.DictionaryID()
			if _, ok := related[id]; !ok {
				order = append(order, id)
			}
			related[id] = append(related[id], i)
		}
	}
	for _, id := range order {
		channels := related[id]
		if len(channels) < 2 {
			continue
		}
		group := make([]*block.DictionaryBlock, len(channels))
		for j, channel := range channels {
			group[j] = blocks[channel].(*block.DictionaryBlock)
		}
		for j, compacted := range block.CompactRelated(group) {
			blocks[channels[j]] = compacted
		}
		if w.related == nil {
			w.related = make(map[block.DictionaryID]struct{})
		}
		w.related[blocks[channels[0]].(*block.DictionaryBlock).DictionaryID()] = struct{}{}
	}
	return blocks, nil
}

// compress returns nil when the codec cannot shrink raw.
func (s *PagesSerde) compress(raw []byte) ([]byte, error) {
	switch s.codec {
	case CodecLZ4:
		ht := lz4HashTablePool.Get().(*[]int)
		defer lz4HashTablePool.Put(ht)
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, *ht)
		if err != nil {
			return nil, moerr.ConvertGoError(context.Background(), err)
		}
		if n == 0 {
			return nil, nil
		}
		return dst[:n], nil
	case CodecZstd:
		return s.encoder.EncodeAll(raw, make([]byte, 0, len(raw))), nil
	}
	return nil, nil
}

func (s *PagesSerde) decompress(sp *SerializedPage) ([]byte, error) {
	if sp.UncompressedSize < 0 || sp.UncompressedSize > block.MaxArraySize {
		return nil, moerr.NewCorruptedPageNoCtx("uncompressed size %d", sp.UncompressedSize)
	}
	switch sp.Codec {
	case CodecNone:
		if len(sp.Data) != sp.UncompressedSize {
			return nil, moerr.NewCorruptedPageNoCtx("%d bytes, expected %d", len(sp.Data), sp.UncompressedSize)
		}
		return sp.Data, nil
	case CodecLZ4:
		dst := make([]byte, sp.UncompressedSize)
		n, err := lz4.UncompressBlock(sp.Data, dst)
		if err != nil {
			return nil, moerr.NewCorruptedPageNoCtx("lz4: %v", err)
		}
		if n != sp.UncompressedSize {
			return nil, moerr.NewCorruptedPageNoCtx("lz4 produced %d bytes, expected %d", n, sp.UncompressedSize)
		}
		return dst, nil
	case CodecZstd:
		dst, err := s.decoder.DecodeAll(sp.Data, make([]byte, 0, sp.UncompressedSize))
		if err != nil {
			return nil, moerr.NewCorruptedPageNoCtx("zstd: %v", err)
		}
		if len(dst) != sp.UncompressedSize {
			return nil, moerr.NewCorruptedPageNoCtx("zstd produced %d bytes, expected %d", len(dst), sp.UncompressedSize)
		}
		return dst, nil
	}
	return nil, moerr.NewCorruptedPageNoCtx("unknown codec %s", sp.Codec)
}

// Deserialize is the inverse of Serialize.
func (s *PagesSerde) Deserialize(sp *SerializedPage) (*page.Page, error) {
	p, err := s.deserialize(sp)
	if err != nil {
		if moerr.IsMoErrCode(err, moerr.ErrCorruptedPage) {
			v2.SerdeCorruptedPageCounter.Inc()
			logutil.Warn(context.Background(), "corrupted page",
				zap.Int("positions", sp.PositionCount),
				zap.Int("channels", sp.ChannelCount),
				zap.String("codec", sp.Codec.String()),
				zap.Error(err))
		}
		return nil, err
	}
	v2.SerdeDeserializedPageCounter.Inc()
	return p, nil
}

func (s *PagesSerde) deserialize(sp *SerializedPage) (*page.Page, error) {
	raw, err := s.decompress(sp)
	if err != nil {
		return nil, err
	}
	r := s.registry.NewReader(raw)
	blocks := make([]block.Block, 0, sp.ChannelCount)
	for i := 0; i < sp.ChannelCount; i++ {
		b, err := r.ReadBlock()
		if err != nil {
			return nil, err
		}
		if b.PositionCount() != sp.PositionCount {
			return nil, moerr.NewCorruptedPageNoCtx("channel %d has %d positions, expected %d",
				i, b.PositionCount(), sp.PositionCount)
		}
		blocks = append(blocks, b)
	}
	if r.Remaining() != 0 {
		return nil, moerr.NewCorruptedPageNoCtx("%d trailing bytes after page", r.Remaining())
	}
	return page.NewWithPositionCount(sp.PositionCount, blocks...), nil
}
