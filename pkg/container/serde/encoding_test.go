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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/block"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

func longs(values ...any) block.Block {
	b := block.NewFixedWidthBuilder[int64](nil, len(values))
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		b.Write(int64(v.(int)))
	}
	return b.Build()
}

func strs(values ...any) block.Block {
	b := block.NewVariableWidthBuilder(nil, len(values), 0)
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		b.WriteString(v.(string))
	}
	return b.Build()
}

func fixed[T types.FixedSizeT](values ...T) block.Block {
	b := block.NewFixedWidthBuilder[T](nil, len(values))
	for _, v := range values {
		b.Write(v)
	}
	return b.Build()
}

func arrays() block.Block {
	b := block.NewArrayBuilder(types.NewArrayType(types.New(types.T_int64)), nil, 3)
	b.BuildEntry(func(elements block.Builder) {
		elements.(*block.FixedWidthBuilder[int64]).Write(1).Write(2)
	})
	b.AppendNull()
	b.BuildEntry(func(elements block.Builder) {
		elements.AppendNull()
	})
	return b.Build()
}

func maps() block.Block {
	mapType := types.NewMapType(types.New(types.T_varchar), types.New(types.T_int64))
	b := block.NewMapBuilder(mapType, nil, 3)
	b.BuildEntry(func(keys, values block.Builder) {
		keys.(*block.VariableWidthBuilder).WriteString("a")
		values.(*block.FixedWidthBuilder[int64]).Write(1)
		keys.(*block.VariableWidthBuilder).WriteString("b")
		values.AppendNull()
	})
	b.AppendNull()
	b.BuildEntry(func(keys, values block.Builder) {})
	return b.Build()
}

func rows() block.Block {
	rowType := types.NewRowType(types.New(types.T_int64), types.New(types.T_varchar))
	b := block.NewRowBuilder(rowType, nil, 3)
	b.BuildEntry(func(fields []block.Builder) {
		fields[0].(*block.FixedWidthBuilder[int64]).Write(1)
		fields[1].(*block.VariableWidthBuilder).WriteString("one")
	})
	b.AppendNull()
	b.BuildEntry(func(fields []block.Builder) {
		fields[0].AppendNull()
		fields[1].(*block.VariableWidthBuilder).WriteString("three")
	})
	return b.Build()
}

func requireSameBlock(t *testing.T, expected, actual block.Block) {
	t.Helper()
	require.Equal(t, expected.PositionCount(), actual.PositionCount())
	for i := 0; i < expected.PositionCount(); i++ {
		require.Equal(t, expected.IsNull(i), actual.IsNull(i), "position %d", i)
		require.True(t, expected.Equal(i, actual, i), "position %d", i)
		require.Equal(t, expected.Hash(i), actual.Hash(i), "position %d", i)
	}
}

func TestBlockRoundTrip(t *testing.T) {
	registry := NewRegistry()
	cases := []struct {
		name     string
		block    block.Block
		encoding string
	}{
		{"bool", fixed(true, false, true), block.ByteArrayEncoding},
		{"int8", fixed[int8](-1, 0, 1), block.ByteArrayEncoding},
		{"uint8", fixed[uint8](0, 255), block.ByteArrayEncoding},
		{"int16", fixed[int16](-300, 300), block.ShortArrayEncoding},
		{"uint16", fixed[uint16](1, 65535), block.ShortArrayEncoding},
		{"int32", fixed[int32](1, -2, 3), block.IntArrayEncoding},
		{"uint32", fixed[uint32](7), block.IntArrayEncoding},
		{"float32", fixed[float32](1.5, -2.25), block.IntArrayEncoding},
		{"int64", longs(1, nil, 3), block.LongArrayEncoding},
		{"uint64", fixed[uint64](1 << 63), block.LongArrayEncoding},
		{"float64", fixed(3.14, 2.71), block.LongArrayEncoding},
		{"empty", longs(), block.LongArrayEncoding},
		{"varchar", strs("a", nil, "", "longer value"), block.VariableWidthEncoding},
		{"varchar region", strs("a", "b", "c", "d").GetRegion(1, 2), block.VariableWidthEncoding},
		{"long region", longs(1, 2, nil, 4).GetRegion(1, 3), block.LongArrayEncoding},
		{"array", arrays(), block.ArrayEncoding},
		{"array region", arrays().GetRegion(1, 2), block.ArrayEncoding},
		{"map", maps(), block.MapEncoding},
		{"map region", maps().GetRegion(0, 1), block.MapEncoding},
		{"row", rows(), block.RowEncoding},
		{"row region", rows().GetRegion(1, 2), block.RowEncoding},
		{"dictionary", block.NewDictionaryBlock(strs("x", "y", nil), []int32{2, 0, 0, 1}), block.DictionaryEncoding},
		{"rle", block.NewRunLengthEncodedBlock(strs("v"), 5), block.RLEEncoding},
		{"rle null", block.NewRunLengthEncodedBlock(longs(nil), 3), block.RLEEncoding},
		{"lazy", block.NewLazyBlock(2, block.LoaderFunc(func() (block.Block, error) {
			return longs(5, 6), nil
		})), block.LongArrayEncoding},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data, err := registry.Marshal(c.block)
			require.NoError(t, err)
			actual, err := registry.Unmarshal(data)
			require.NoError(t, err)
			require.Equal(t, c.encoding, actual.EncodingName())
			requireSameBlock(t, c.block, actual)
		})
	}
}

func TestDictionaryWriteCompacts(t *testing.T) {
	registry := NewRegistry()
	dict := block.NewDictionaryBlock(strs("a", "b", "c", "d", "e"), []int32{4, 4, 1})
	data, err := registry.Marshal(dict)
	require.NoError(t, err)
	actual, err := registry.Unmarshal(data)
	require.NoError(t, err)
	read := actual.(*block.DictionaryBlock)
	require.Equal(t, 2, read.Dictionary().PositionCount())
	require.True(t, read.IsCompact())
	requireSameBlock(t, dict, read)

	// A compact dictionary keeps its source id on the wire.
	compact := block.NewDictionaryBlock(strs("a", "b"), []int32{1, 0, 1})
	data, err = registry.Marshal(compact)
	require.NoError(t, err)
	actual, err = registry.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, compact.DictionaryID(), actual.(*block.DictionaryBlock).DictionaryID())
}

func TestMapHashTablesRebuilt(t *testing.T) {
	registry := NewRegistry()
	data, err := registry.Marshal(maps())
	require.NoError(t, err)
	actual, err := registry.Unmarshal(data)
	require.NoError(t, err)
	m := actual.GetObject(0, types.T_map).(*block.SingleMap)
	require.Equal(t, 2, m.Len())
	require.Equal(t, 1, m.SeekBytes([]byte("b")))
	require.Equal(t, -1, m.SeekBytes([]byte("z")))
}

type fakeEncoding struct {
	rleEncoding
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(fakeEncoding{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrDuplicateBlockEncoding))

	_, err = registry.Lookup("NOPE")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrUnknownBlockEncoding))

	w := registry.NewWriter()
	w.WriteString("NOPE")
	_, err = registry.Unmarshal(w.Bytes())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrUnknownBlockEncoding))

	// Lazy blocks are always written loaded, there is no lazy encoding.
	_, err = registry.Lookup(block.LazyEncoding)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrUnknownBlockEncoding))
}

func TestWriteFailedLazyBlock(t *testing.T) {
	registry := NewRegistry()
	lazy := block.NewLazyBlock(1, block.LoaderFunc(func() (block.Block, error) {
		return nil, moerr.NewInternalErrorNoCtx("disk gone")
	}))
	_, err := registry.Marshal(lazy)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
}

func TestTruncatedBlock(t *testing.T) {
	registry := NewRegistry()
	for _, b := range []block.Block{
		longs(1, nil, 3),
		strs("abc", nil),
		arrays(),
		maps(),
		rows(),
		block.NewDictionaryBlock(strs("x", "y"), []int32{1, 0}),
		block.NewRunLengthEncodedBlock(longs(1), 4),
	} {
		data, err := registry.Marshal(b)
		require.NoError(t, err)
		for n := 0; n < len(data); n++ {
			_, err = registry.Unmarshal(data[:n])
			require.True(t, moerr.IsMoErrCode(err, moerr.ErrCorruptedPage),
				"%s truncated to %d: %v", b.EncodingName(), n, err)
		}
		_, err = registry.Unmarshal(append(data, 0))
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrCorruptedPage))
	}
}

func TestCorruptedOffsets(t *testing.T) {
	registry := NewRegistry()
	w := registry.NewWriter()
	w.WriteString(block.VariableWidthEncoding)
	w.WriteCount(2)
	w.WriteCount(0)
	w.WriteOffsets([]int32{0, 3, 1})
	w.WriteRaw([]byte("abc"))
	_, err := registry.Unmarshal(w.Bytes())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrCorruptedPage))

	w = registry.NewWriter()
	w.WriteString(block.VariableWidthEncoding)
	w.WriteCount(1)
	w.WriteCount(0)
	w.WriteOffsets([]int32{0, 5})
	w.WriteRaw([]byte("abc"))
	_, err = registry.Unmarshal(w.Bytes())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrCorruptedPage))
}

func TestCorruptedDictionaryIDs(t *testing.T) {
	registry := NewRegistry()
	w := registry.NewWriter()
	w.WriteString(block.DictionaryEncoding)
	w.WriteRaw(types.EncodeSlice([]int32{0, 9}))
	require.NoError(t, w.WriteBlock(strs("a")))
	id := block.NewDictionaryID()
	w.WriteRaw(id[:])
	_, err := registry.Unmarshal(w.Bytes())
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrCorruptedPage))
}
