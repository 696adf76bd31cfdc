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

package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

var longToStringMap = types.NewMapType(types.New(types.T_int64), types.New(types.T_varchar))

type testEntry struct {
	key   int64
	value any
}

// buildMaps builds a map(bigint, varchar) block, a nil map is a null.
func buildMaps(maps ...[]testEntry) Block {
	b := NewMapBuilder(longToStringMap, nil, len(maps))
	for _, m := range maps {
		if m == nil {
			b.AppendNull()
			continue
		}
		writeMap(b, m)
	}
	return b.Build()
}

func writeMap(b *MapBuilder, entries []testEntry) {
	b.BuildEntry(func(keys, values Builder) {
		for _, e := range entries {
			keys.(*FixedWidthBuilder[int64]).Write(e.key)
			if e.value == nil {
				values.AppendNull()
			} else {
				values.(*VariableWidthBuilder).WriteString(e.value.(string))
			}
		}
	})
}

func requireHashTables(t *testing.T, blk *MapBlock) {
	t.Helper()
	for i := 0; i < blk.PositionCount(); i++ {
		start := int(blk.offsets[blk.startOffset+i])
		count := blk.EntryCount(i)
		table := blk.hashTables[start*HashMultiplier : (start+count)*HashMultiplier]
		require.Len(t, table, HashMultiplier*count)
		seen := make(map[int32]bool)
		for _, slot := range table {
			if slot == emptySlot {
				continue
			}
			require.True(t, slot >= 0 && int(slot) < count)
			require.False(t, seen[slot])
			seen[slot] = true
		}
		require.Len(t, seen, count)
	}
}

func TestMapBlock(t *testing.T) {
	blk := buildMaps(
		[]testEntry{{1, "a"}, {2, "b"}, {3, nil}},
		nil,
		[]testEntry{},
		[]testEntry{{7, "x"}},
	).(*MapBlock)
	require.Equal(t, MapEncoding, blk.EncodingName())
	require.Equal(t, 4, blk.PositionCount())
	require.True(t, blk.IsNull(1))
	require.False(t, blk.IsNull(2))
	require.Equal(t, 3, blk.EntryCount(0))
	require.Equal(t, 0, blk.EntryCount(1))
	require.Equal(t, []int32{0, 3, 3, 3, 4}, blk.Offsets())
	require.Len(t, blk.HashTables(), 4*HashMultiplier)
	requireHashTables(t, blk)

	m := blk.GetObject(0, types.T_map).(*SingleMap)
	require.Equal(t, 3, m.Len())
	require.Equal(t, 1, m.SeekLong(2))
	require.Equal(t, "b", string(m.Values().GetBytes(1)))
	require.Equal(t, 2, m.SeekLong(3))
	require.True(t, m.Values().IsNull(2))
	require.Equal(t, -1, m.SeekLong(4))
	require.Equal(t, 0, m.SeekKey(buildLongs(5, 1), 1))
	require.Equal(t, -1, m.SeekKey(buildLongs(nil, 1), 0))
	requirePanicCode(t, moerr.ErrNotSupported, func() { m.SeekBytes([]byte("a")) })

	require.Nil(t, blk.GetObject(1, types.T_map))
	empty := blk.GetObject(2, types.T_map).(*SingleMap)
	require.Equal(t, 0, empty.Len())
	require.Equal(t, -1, empty.SeekLong(1))

	requirePanicCode(t, moerr.ErrInvalidArg, func() { blk.GetObject(0, types.T_row) })
	requirePanicCode(t, moerr.ErrNotSupported, func() { blk.GetLong(0) })
	requirePanicCode(t, moerr.ErrOutOfRange, func() { blk.IsNull(4) })
}

func TestMapSizes(t *testing.T) {
	blk := buildMaps(
		[]testEntry{{1, "ab"}, {2, "c"}},
		nil,
		[]testEntry{{3, "def"}},
	)
	keys := 3 * fixedSizeInBytesPerPosition[int64]()
	values := int64(6 + 3*variableWidthSizePerPosition)
	hashes := int64(3 * HashMultiplier * sizeOfInt32)
	require.Equal(t, keys+values+hashes+3*mapSizePerPosition, blk.SizeInBytes())

	region := int64(2*9+3+2*variableWidthSizePerPosition) + 2*HashMultiplier*sizeOfInt32 + 2*mapSizePerPosition
	require.Equal(t, region, blk.RegionSizeInBytes(0, 2))
	require.Equal(t, region, blk.GetRegion(0, 2).SizeInBytes())
	require.Equal(t, region, blk.CopyRegion(0, 2).SizeInBytes())

	used := []bool{false, true, true}
	selected := int64(9+3+variableWidthSizePerPosition) + HashMultiplier*sizeOfInt32 + 2*mapSizePerPosition
	require.Equal(t, selected, blk.PositionsSizeInBytes(used, 2))
	require.Greater(t, blk.RetainedSizeInBytes(), blk.SizeInBytes())
}

func TestMapRegionAndCopy(t *testing.T) {
	blk := buildMaps(
		[]testEntry{{1, "a"}},
		[]testEntry{{2, "b"}, {3, "c"}},
		nil,
		[]testEntry{{4, "d"}, {5, nil}, {6, "f"}},
	)
	for position := 0; position < blk.PositionCount(); position++ {
		for length := 0; position+length <= blk.PositionCount(); length++ {
			region := blk.GetRegion(position, length).(*MapBlock)
			copied := blk.CopyRegion(position, length).(*MapBlock)
			requireHashTables(t, region)
			requireHashTables(t, copied)
			for i := 0; i < length; i++ {
				require.True(t, blk.Equal(position+i, region, i))
				require.True(t, blk.Equal(position+i, copied, i))
				require.Equal(t, blk.Hash(position+i), copied.Hash(i))
			}
		}
	}

	copied := blk.CopyRegion(3, 1).(*MapBlock)
	require.Equal(t, []int32{0, 3}, copied.offsets)
	require.Equal(t, 3, copied.keyBlock.PositionCount())
	m := copied.GetObject(0, types.T_map).(*SingleMap)
	require.Equal(t, 2, m.SeekLong(6))
	require.Equal(t, "f", string(m.Values().GetBytes(2)))

	positions := blk.CopyPositions([]int{3, 2, 1, 3}, 0, 4).(*MapBlock)
	requireHashTables(t, positions)
	require.Equal(t, []int32{0, 3, 3, 5, 8}, positions.offsets)
	require.True(t, positions.IsNull(1))
	for i, p := range []int{3, 2, 1, 3} {
		require.True(t, blk.Equal(p, positions, i))
	}
	m = positions.GetObject(3, types.T_map).(*SingleMap)
	require.Equal(t, 0, m.SeekLong(4))
	require.Equal(t, 1, positions.GetObject(2, types.T_map).(*SingleMap).SeekLong(3))

	single := blk.GetSingleValueBlock(1)
	require.Equal(t, 1, single.PositionCount())
	require.True(t, blk.Equal(1, single, 0))

	b := NewMapBuilder(longToStringMap, nil, 0)
	for i := blk.PositionCount() - 1; i >= 0; i-- {
		blk.WritePositionTo(i, b)
	}
	rebuilt := b.Build()
	for i := 0; i < blk.PositionCount(); i++ {
		require.True(t, blk.Equal(i, rebuilt, blk.PositionCount()-1-i))
	}
	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		blk.WritePositionTo(0, NewVariableWidthBuilder(nil, 1, 0))
	})
}

func TestMapEqualIsOrderSensitive(t *testing.T) {
	blk := buildMaps(
		[]testEntry{{1, "a"}, {2, "b"}},
		[]testEntry{{1, "a"}, {2, "b"}},
		[]testEntry{{2, "b"}, {1, "a"}},
		[]testEntry{{1, "a"}},
		nil,
		nil,
	)
	require.True(t, blk.Equal(0, blk, 1))
	require.Equal(t, blk.Hash(0), blk.Hash(1))
	require.False(t, blk.Equal(0, blk, 2))
	require.False(t, blk.Equal(0, blk, 3))
	require.True(t, blk.Equal(4, blk, 5))
	require.False(t, blk.Equal(4, blk, 3))
	require.Equal(t, uint64(0), blk.Hash(4))
}

func TestMapBuilder(t *testing.T) {
	status := NewPageBuilderStatus(DefaultMaxPageSizeInBytes)
	b := NewMapBuilder(longToStringMap, status, 1)
	writeMap(b, []testEntry{{1, "a"}, {2, "b"}})
	first := b.Build()
	b.AppendNull()
	writeMap(b, []testEntry{{3, "c"}})
	second := b.Build().(*MapBlock)

	require.Equal(t, 1, first.PositionCount())
	require.Equal(t, 3, second.PositionCount())
	require.True(t, first.Equal(0, second, 0))
	requireHashTables(t, second)
	requireHashTables(t, first.(*MapBlock))
	require.Equal(t, b.SizeInBytes(), second.SizeInBytes())
	require.Equal(t, b.SizeInBytes(), status.SizeInBytes())

	like := b.NewBuilderLike(4, nil)
	require.Equal(t, 0, like.PositionCount())
	_, ok := like.(*MapBuilder)
	require.True(t, ok)

	nulls := NewMapBuilder(longToStringMap, nil, 0)
	nulls.AppendNull()
	nulls.AppendNull()
	allNull := nulls.Build()
	require.Equal(t, RLEEncoding, allNull.EncodingName())
	require.True(t, allNull.IsNull(1))
	require.Nil(t, allNull.GetObject(0, types.T_map))

	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewMapBuilder(types.New(types.T_int64), nil, 1)
	})
}

func TestMapBuilderInvalidEntries(t *testing.T) {
	b := NewMapBuilder(longToStringMap, nil, 1)
	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		b.BuildEntry(func(keys, values Builder) {
			keys.(*FixedWidthBuilder[int64]).Write(1)
		})
	})

	b = NewMapBuilder(longToStringMap, nil, 1)
	requirePanicCode(t, moerr.ErrInvalidState, func() {
		b.BuildEntry(func(keys, values Builder) {
			b.AppendNull()
		})
	})

	b = NewMapBuilder(longToStringMap, nil, 1)
	writeMap(b, []testEntry{{1, "a"}, {1, "b"}})
	requirePanicCode(t, moerr.ErrInvalidArg, func() { b.Build() })

	b = NewMapBuilder(longToStringMap, nil, 1)
	b.BuildEntry(func(keys, values Builder) {
		keys.AppendNull()
		values.AppendNull()
	})
	requirePanicCode(t, moerr.ErrInvalidArg, func() { b.Build() })
}

func TestNewMapBlock(t *testing.T) {
	keys := NewVariableWidthBlock(3, []byte("abc"), []int32{0, 1, 2, 3}, nil)
	values := buildLongs(1, 2, nil)
	mapType := types.NewMapType(types.New(types.T_varchar), types.New(types.T_int64))
	blk := NewMapBlock(mapType, []bool{false, true, false}, []int32{0, 2, 2, 3}, keys, values)
	requireHashTables(t, blk)
	m := blk.GetObject(0, types.T_map).(*SingleMap)
	require.Equal(t, 1, m.SeekBytes([]byte("b")))
	require.Equal(t, -1, m.SeekBytes([]byte("c")))
	require.Equal(t, 0, blk.GetObject(2, types.T_map).(*SingleMap).SeekBytes([]byte("c")))
	requirePanicCode(t, moerr.ErrNotSupported, func() { m.SeekLong(1) })

	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewMapBlock(mapType, []bool{false, true, false}, []int32{0, 1, 2, 3}, keys, values)
	})
	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewMapBlock(mapType, nil, []int32{0, 2, 1, 3}, keys, values)
	})
	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewMapBlock(mapType, nil, []int32{0, 4}, keys, values)
	})
	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewMapBlock(mapType, nil, []int32{0, 2}, keys, buildLongs(1))
	})
	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewMapBlock(mapType, nil, []int32{0, 3}, buildStrings("a", "b", "a"), values)
	})
}
