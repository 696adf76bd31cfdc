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

var longArray = types.NewArrayType(types.New(types.T_int64))

// buildArrays builds an array(bigint) block, a nil array is a null and a nil
// element is a null element.
func buildArrays(arrays ...[]any) Block {
	b := NewArrayBuilder(longArray, nil, len(arrays))
	for _, a := range arrays {
		if a == nil {
			b.AppendNull()
			continue
		}
		b.BuildEntry(func(elements Builder) {
			for _, e := range a {
				if e == nil {
					elements.AppendNull()
					continue
				}
				elements.(*FixedWidthBuilder[int64]).Write(int64(e.(int)))
			}
		})
	}
	return b.Build()
}

func TestArrayBlock(t *testing.T) {
	blk := buildArrays([]any{1, 2, 3}, nil, []any{}, []any{4, nil}).(*ArrayBlock)
	require.Equal(t, ArrayEncoding, blk.EncodingName())
	require.Equal(t, 4, blk.PositionCount())
	require.True(t, blk.IsNull(1))
	require.Equal(t, []int32{0, 3, 3, 3, 5}, blk.Offsets())
	require.Equal(t, 5, blk.Elements().PositionCount())

	elements := blk.GetObject(0, types.T_array).(Block)
	requireSameValues(t, buildLongs(1, 2, 3), elements)
	require.Nil(t, blk.GetObject(1, types.T_array))
	require.Equal(t, 0, blk.GetObject(2, types.T_array).(Block).PositionCount())
	requireSameValues(t, buildLongs(4, nil), blk.GetObject(3, types.T_array).(Block))

	requirePanicCode(t, moerr.ErrInvalidArg, func() { blk.GetObject(0, types.T_map) })
	requirePanicCode(t, moerr.ErrNotSupported, func() { blk.GetBytes(0) })

	// five elements, each with a null flag, plus one offset and flag per array
	require.Equal(t, int64(5*9+4*arraySizePerPosition), blk.SizeInBytes())
	require.Equal(t, int64(3*9+2*arraySizePerPosition), blk.RegionSizeInBytes(0, 2))
	require.Equal(t, int64(2*9+2*arraySizePerPosition), blk.PositionsSizeInBytes([]bool{false, true, false, true}, 2))
}

func TestArrayRegionAndCopy(t *testing.T) {
	blk := buildArrays([]any{1}, []any{2, 3}, nil, []any{4, nil, 6})
	for position := 0; position < blk.PositionCount(); position++ {
		for length := 0; position+length <= blk.PositionCount(); length++ {
			region := blk.GetRegion(position, length)
			copied := blk.CopyRegion(position, length)
			require.Equal(t, region.SizeInBytes(), copied.SizeInBytes())
			for i := 0; i < length; i++ {
				require.True(t, blk.Equal(position+i, region, i))
				require.True(t, blk.Equal(position+i, copied, i))
				require.Equal(t, blk.Hash(position+i), region.Hash(i))
			}
		}
	}

	copied := blk.CopyRegion(1, 2).(*ArrayBlock)
	require.Equal(t, []int32{0, 2, 2}, copied.offsets)
	require.Equal(t, 2, copied.values.PositionCount())

	positions := blk.CopyPositions([]int{3, 2, 0}, 0, 3).(*ArrayBlock)
	require.Equal(t, []int32{0, 3, 3, 4}, positions.offsets)
	require.True(t, positions.IsNull(1))
	require.True(t, blk.Equal(3, positions, 0))

	b := NewArrayBuilder(longArray, nil, 0)
	for i := 0; i < blk.PositionCount(); i++ {
		blk.WritePositionTo(i, b)
	}
	requireSameValues(t, blk, b.Build())
	requireSameValues(t, blk.GetRegion(3, 1), blk.GetSingleValueBlock(3))
}

func TestArrayEqual(t *testing.T) {
	blk := buildArrays([]any{1, 2}, []any{1, 2}, []any{2, 1}, []any{1, nil}, []any{1})
	require.True(t, blk.Equal(0, blk, 1))
	require.Equal(t, blk.Hash(0), blk.Hash(1))
	require.False(t, blk.Equal(0, blk, 2))
	require.False(t, blk.Equal(0, blk, 3))
	require.False(t, blk.Equal(0, blk, 4))
	require.False(t, blk.Equal(3, blk, 4))
}

func TestArrayBuilder(t *testing.T) {
	status := NewPageBuilderStatus(DefaultMaxPageSizeInBytes)
	b := NewArrayBuilder(longArray, status, 0)
	b.BuildEntry(func(elements Builder) {
		elements.(*FixedWidthBuilder[int64]).Write(1).Write(2)
	})
	first := b.Build()
	b.AppendNull()
	second := b.Build()
	require.Equal(t, 1, first.PositionCount())
	require.False(t, first.MayHaveNull())
	require.Equal(t, 2, second.PositionCount())
	require.True(t, second.IsNull(1))
	require.Equal(t, b.SizeInBytes(), second.SizeInBytes())
	require.Equal(t, b.SizeInBytes(), status.SizeInBytes())

	nulls := NewArrayBuilder(longArray, nil, 0)
	nulls.AppendNull().AppendNull()
	allNull := nulls.Build()
	require.Equal(t, RLEEncoding, allNull.EncodingName())
	require.True(t, allNull.IsNull(0))
	require.True(t, allNull.IsNull(1))

	requirePanicCode(t, moerr.ErrInvalidState, func() {
		b.BuildEntry(func(Builder) { b.Build() })
	})
	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewArrayBuilder(types.New(types.T_varchar), nil, 1)
	})
}

func TestNewArrayBlock(t *testing.T) {
	values := buildLongs(1, 2, 3)
	blk := NewArrayBlock([]bool{false, true, false}, []int32{0, 2, 2, 3}, values)
	require.Equal(t, 3, blk.PositionCount())
	requireSameValues(t, buildLongs(3), blk.GetObject(2, types.T_array).(Block))

	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewArrayBlock(nil, []int32{0, 4}, values)
	})
	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewArrayBlock([]bool{true}, []int32{0, 1}, values)
	})
	requirePanicCode(t, moerr.ErrInvalidArg, func() {
		NewArrayBlock(nil, nil, values)
	})
}
