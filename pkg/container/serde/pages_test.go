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
	"strings"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/config"
	"github.com/matrixorigin/moblock/pkg/container/block"
	"github.com/matrixorigin/moblock/pkg/container/page"
	v2 "github.com/matrixorigin/moblock/pkg/util/metric/v2"
)

func newTestSerde(t *testing.T, compression string, minSize int) *PagesSerde {
	s, err := NewPagesSerde(NewRegistry(), config.SerdeConfig{
		Compression:     compression,
		MinCompressSize: minSize,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// repetitivePage compresses well under every codec.
func repetitivePage(n int) *page.Page {
	ids := make([]any, n)
	names := make([]any, n)
	for i := range ids {
		ids[i] = i % 4
		names[i] = strings.Repeat("name", 8)
	}
	return page.New(longs(ids...), strs(names...))
}

func requireSamePage(t *testing.T, expected, actual *page.Page) {
	t.Helper()
	require.Equal(t, expected.PositionCount(), actual.PositionCount())
	require.Equal(t, expected.ChannelCount(), actual.ChannelCount())
	for i := 0; i < expected.ChannelCount(); i++ {
		requireSameBlock(t, expected.Block(i), actual.Block(i))
	}
}

func TestParseCodec(t *testing.T) {
	for name, codec := range map[string]Codec{
		"":     CodecNone,
		"none": CodecNone,
		"lz4":  CodecLZ4,
		"zstd": CodecZstd,
	} {
		c, err := ParseCodec(name)
		require.NoError(t, err)
		require.Equal(t, codec, c)
	}
	_, err := ParseCodec("snappy")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	_, err = NewPagesSerde(NewRegistry(), config.SerdeConfig{Compression: "snappy"})
	require.Error(t, err)
}

func TestPagesSerdeRoundTrip(t *testing.T) {
	for _, compression := range []string{config.CompressionNone, config.CompressionLZ4, config.CompressionZstd} {
		t.Run(compression, func(t *testing.T) {
			s := newTestSerde(t, compression, 0)
			p := repetitivePage(512)
			serialized := testutil.ToFloat64(v2.SerdeSerializedPageCounter)
			deserialized := testutil.ToFloat64(v2.SerdeDeserializedPageCounter)

			sp, err := s.Serialize(p)
			require.NoError(t, err)
			require.Equal(t, 512, sp.PositionCount)
			require.Equal(t, 2, sp.ChannelCount)
			if compression == config.CompressionNone {
				require.False(t, sp.IsCompressed())
				require.Equal(t, sp.UncompressedSize, len(sp.Data))
			} else {
				require.True(t, sp.IsCompressed())
				require.Less(t, len(sp.Data), sp.UncompressedSize)
			}

			actual, err := s.Deserialize(sp)
			require.NoError(t, err)
			requireSamePage(t, p, actual)
			require.Equal(t, serialized+1, testutil.ToFloat64(v2.SerdeSerializedPageCounter))
			require.Equal(t, deserialized+1, testutil.ToFloat64(v2.SerdeDeserializedPageCounter))
		})
	}
}

func TestPagesSerdeReadsAnyCodec(t *testing.T) {
	writer := newTestSerde(t, config.CompressionZstd, 0)
	reader := newTestSerde(t, config.CompressionNone, 0)
	p := repetitivePage(128)
	sp, err := writer.Serialize(p)
	require.NoError(t, err)
	require.Equal(t, CodecZstd, sp.Codec)
	actual, err := reader.Deserialize(sp)
	require.NoError(t, err)
	requireSamePage(t, p, actual)
}

func TestPagesSerdeCompressionThresholds(t *testing.T) {
	// Too small to be worth compressing.
	s := newTestSerde(t, config.CompressionLZ4, 1<<20)
	sp, err := s.Serialize(repetitivePage(64))
	require.NoError(t, err)
	require.False(t, sp.IsCompressed())

	// Compressed output is dropped when it does not save enough.
	stubs := gostub.Stub(&minCompressionRatio, 0.0)
	defer stubs.Reset()
	s = newTestSerde(t, config.CompressionZstd, 0)
	sp, err = s.Serialize(repetitivePage(64))
	require.NoError(t, err)
	require.False(t, sp.IsCompressed())
	actual, err := s.Deserialize(sp)
	require.NoError(t, err)
	require.Equal(t, 64, actual.PositionCount())
}

func TestPagesSerdeSpecialPages(t *testing.T) {
	s := newTestSerde(t, config.CompressionLZ4, 0)

	empty := page.NewWithPositionCount(7)
	sp, err := s.Serialize(empty)
	require.NoError(t, err)
	actual, err := s.Deserialize(sp)
	require.NoError(t, err)
	require.Equal(t, 7, actual.PositionCount())
	require.Equal(t, 0, actual.ChannelCount())

	lazy := page.New(
		block.NewLazyBlock(3, block.LoaderFunc(func() (block.Block, error) {
			return strs("a", nil, "c"), nil
		})),
		block.NewRunLengthEncodedBlock(longs(9), 3),
		block.NewDictionaryBlock(strs("x", "y"), []int32{1, 1, 0}),
	)
	sp, err = s.Serialize(lazy)
	require.NoError(t, err)
	actual, err = s.Deserialize(sp)
	require.NoError(t, err)
	requireSamePage(t, lazy, actual)
	require.Equal(t, block.RLEEncoding, actual.Block(1).EncodingName())
	require.Equal(t, block.DictionaryEncoding, actual.Block(2).EncodingName())
}

func TestPagesSerdeRelatedDictionaries(t *testing.T) {
	s := newTestSerde(t, config.CompressionNone, 0)

	dictionary := strs("a", "b", "c", "d", "e")
	id := block.NewDictionaryID()
	other := block.NewDictionaryBlock(strs("x", "y"), []int32{0, 0, 0})
	p := page.New(
		block.NewDictionaryBlockWithID(dictionary, []int32{0, 0, 1}, id),
		block.NewDictionaryBlockWithID(dictionary, []int32{3, 1, 3}, id),
		other,
	)
	sp, err := s.Serialize(p)
	require.NoError(t, err)
	actual, err := s.Deserialize(sp)
	require.NoError(t, err)
	requireSamePage(t, p, actual)

	first := actual.Block(0).(*block.DictionaryBlock)
	second := actual.Block(1).(*block.DictionaryBlock)
	third := actual.Block(2).(*block.DictionaryBlock)
	require.Equal(t, first.DictionaryID(), second.DictionaryID())
	require.NotEqual(t, first.DictionaryID(), third.DictionaryID())
	// Only the positions either channel references survive.
	require.Equal(t, 3, first.Dictionary().PositionCount())
	require.Equal(t, 3, second.Dictionary().PositionCount())
	require.Equal(t, first.ID(2), second.ID(1))
	require.Equal(t, 1, third.Dictionary().PositionCount())

	// A shared dictionary nobody trims keeps its id on the wire.
	full := page.New(
		block.NewDictionaryBlockWithID(strs("a", "b"), []int32{0, 1}, id),
		block.NewDictionaryBlockWithID(strs("a", "b"), []int32{1, 1}, id),
	)
	sp, err = s.Serialize(full)
	require.NoError(t, err)
	actual, err = s.Deserialize(sp)
	require.NoError(t, err)
	requireSamePage(t, full, actual)
	require.Equal(t, id, actual.Block(0).(*block.DictionaryBlock).DictionaryID())
	require.Equal(t, id, actual.Block(1).(*block.DictionaryBlock).DictionaryID())
}

func TestSerializedPageBinary(t *testing.T) {
	s := newTestSerde(t, config.CompressionLZ4, 0)
	p := repetitivePage(100)
	sp, err := s.Serialize(p)
	require.NoError(t, err)

	data, err := sp.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, sp.SizeInBytes(), len(data))

	var read SerializedPage
	require.NoError(t, read.UnmarshalBinary(data))
	require.Equal(t, *sp, read)
	actual, err := s.Deserialize(&read)
	require.NoError(t, err)
	requireSamePage(t, p, actual)

	for n := 0; n < len(data); n += 7 {
		require.Error(t, new(SerializedPage).UnmarshalBinary(data[:n]))
	}
}

func TestPagesSerdeCorruption(t *testing.T) {
	s := newTestSerde(t, config.CompressionNone, 0)
	p := repetitivePage(16)
	sp, err := s.Serialize(p)
	require.NoError(t, err)
	corrupted := testutil.ToFloat64(v2.SerdeCorruptedPageCounter)

	cases := []*SerializedPage{
		{PositionCount: 16, ChannelCount: 2, UncompressedSize: len(sp.Data) - 1, Data: sp.Data[:len(sp.Data)-1]},
		{PositionCount: 16, ChannelCount: 3, UncompressedSize: len(sp.Data), Data: sp.Data},
		{PositionCount: 16, ChannelCount: 1, UncompressedSize: len(sp.Data), Data: sp.Data},
		{PositionCount: 15, ChannelCount: 2, UncompressedSize: len(sp.Data), Data: sp.Data},
		{PositionCount: 16, ChannelCount: 2, UncompressedSize: len(sp.Data) + 1, Data: sp.Data},
		{PositionCount: 16, ChannelCount: 2, Codec: CodecLZ4, UncompressedSize: len(sp.Data), Data: []byte{0xff, 0x01}},
		{PositionCount: 16, ChannelCount: 2, Codec: CodecZstd, UncompressedSize: len(sp.Data), Data: []byte{1, 2, 3}},
		{PositionCount: 16, ChannelCount: 2, Codec: Codec(9), UncompressedSize: len(sp.Data), Data: sp.Data},
	}
	for i, c := range cases {
		_, err := s.Deserialize(c)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrCorruptedPage), "case %d: %v", i, err)
	}
	require.Equal(t, corrupted+float64(len(cases)), testutil.ToFloat64(v2.SerdeCorruptedPageCounter))
}
