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
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

// FixedWidthBlock is a column of fixed size values with one null flag per
// position. valueIsNull is nil when no position is null.
type FixedWidthBlock[T types.FixedSizeT] struct {
	arrayOffset   int
	positionCount int
	valueIsNull   []bool
	values        []T

	retainedSizeInBytes int64
}

func NewFixedWidthBlock[T types.FixedSizeT](positionCount int, valueIsNull []bool, values []T) *FixedWidthBlock[T] {
	return newFixedWidthBlock(0, positionCount, valueIsNull, values)
}

func newFixedWidthBlock[T types.FixedSizeT](arrayOffset, positionCount int, valueIsNull []bool, values []T) *FixedWidthBlock[T] {
	checkNonNegative("arrayOffset", arrayOffset)
	checkNonNegative("positionCount", positionCount)
	if len(values)-arrayOffset < positionCount {
		panic(moerr.NewInvalidArgNoCtx("values length", len(values)))
	}
	if valueIsNull != nil && len(valueIsNull)-arrayOffset < positionCount {
		panic(moerr.NewInvalidArgNoCtx("isNull length", len(valueIsNull)))
	}
	b := &FixedWidthBlock[T]{
		arrayOffset:   arrayOffset,
		positionCount: positionCount,
		valueIsNull:   valueIsNull,
		values:        values,
	}
	b.retainedSizeInBytes = int64(unsafe.Sizeof(*b)) +
		int64(cap(values)*elemSize[T]()) + int64(cap(valueIsNull))
	return b
}

func elemSize[T types.FixedSizeT]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

func fixedSizeInBytesPerPosition[T types.FixedSizeT]() int64 {
	return int64(elemSize[T]() + sizeOfByte)
}

// Get returns the value at position. The result is the zero value for a
// null position.
func (b *FixedWidthBlock[T]) Get(position int) T {
	checkValidPosition(position, b.positionCount)
	return b.values[b.arrayOffset+position]
}

// Values returns the values of the block, sharing storage.
func (b *FixedWidthBlock[T]) Values() []T {
	return b.values[b.arrayOffset : b.arrayOffset+b.positionCount]
}

// Nulls returns the null flags of the block, or nil if it has none.
func (b *FixedWidthBlock[T]) Nulls() []bool {
	if b.valueIsNull == nil {
		return nil
	}
	return b.valueIsNull[b.arrayOffset : b.arrayOffset+b.positionCount]
}

func (b *FixedWidthBlock[T]) PositionCount() int {
	return b.positionCount
}

func (b *FixedWidthBlock[T]) IsNull(position int) bool {
	checkValidPosition(position, b.positionCount)
	return b.valueIsNull != nil && b.valueIsNull[b.arrayOffset+position]
}

func (b *FixedWidthBlock[T]) MayHaveNull() bool {
	return b.valueIsNull != nil
}

func (b *FixedWidthBlock[T]) GetBool(position int) bool {
	if v, ok := any(b.Get(position)).(bool); ok {
		return v
	}
	panic(unsupported("GetBool", b))
}

func (b *FixedWidthBlock[T]) GetLong(position int) int64 {
	if v, ok := toLong(b.Get(position)); ok {
		return v
	}
	panic(unsupported("GetLong", b))
}

func (b *FixedWidthBlock[T]) GetDouble(position int) float64 {
	if v, ok := toDouble(b.Get(position)); ok {
		return v
	}
	panic(unsupported("GetDouble", b))
}

func (b *FixedWidthBlock[T]) GetBytes(int) []byte {
	panic(unsupported("GetBytes", b))
}

func (b *FixedWidthBlock[T]) GetObject(_ int, typ types.T) any {
	panic(badObjectType(b, typ))
}

func (b *FixedWidthBlock[T]) SizeInBytes() int64 {
	return fixedSizeInBytesPerPosition[T]() * int64(b.positionCount)
}

func (b *FixedWidthBlock[T]) RetainedSizeInBytes() int64 {
	return b.retainedSizeInBytes
}

func (b *FixedWidthBlock[T]) RegionSizeInBytes(position, length int) int64 {
	checkValidRegion(b.positionCount, position, length)
	return fixedSizeInBytesPerPosition[T]() * int64(length)
}

func (b *FixedWidthBlock[T]) PositionsSizeInBytes(used []bool, selectedCount int) int64 {
	checkValidPositions(used, b.positionCount)
	return fixedSizeInBytesPerPosition[T]() * int64(selectedCount)
}

func (b *FixedWidthBlock[T]) GetRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	return newFixedWidthBlock(b.arrayOffset+position, length, b.valueIsNull, b.values)
}

func (b *FixedWidthBlock[T]) CopyRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	position += b.arrayOffset
	if position == 0 && length == len(b.values) &&
		(b.valueIsNull == nil || len(b.valueIsNull) == length) {
		return b
	}
	values := make([]T, length)
	copy(values, b.values[position:position+length])
	var valueIsNull []bool
	if anyTrue(b.valueIsNull, position, length) {
		valueIsNull = compactBools(b.valueIsNull, position, length)
	}
	return newFixedWidthBlock(0, length, valueIsNull, values)
}

func (b *FixedWidthBlock[T]) CopyPositions(positions []int, offset, length int) Block {
	checkArrayRange(positions, offset, length)
	values := make([]T, length)
	var valueIsNull []bool
	for i := 0; i < length; i++ {
		position := positions[offset+i]
		checkValidPosition(position, b.positionCount)
		position += b.arrayOffset
		values[i] = b.values[position]
		if b.valueIsNull != nil && b.valueIsNull[position] {
			if valueIsNull == nil {
				valueIsNull = make([]bool, length)
			}
			valueIsNull[i] = true
		}
	}
	return newFixedWidthBlock(0, length, valueIsNull, values)
}

func (b *FixedWidthBlock[T]) GetSingleValueBlock(position int) Block {
	checkValidPosition(position, b.positionCount)
	position += b.arrayOffset
	var valueIsNull []bool
	if b.valueIsNull != nil && b.valueIsNull[position] {
		valueIsNull = []bool{true}
	}
	return newFixedWidthBlock(0, 1, valueIsNull, []T{b.values[position]})
}

func (b *FixedWidthBlock[T]) WritePositionTo(position int, builder Builder) {
	fb, ok := builder.(*FixedWidthBuilder[T])
	if !ok {
		panic(badBuilder(b, builder))
	}
	if b.IsNull(position) {
		fb.AppendNull()
		return
	}
	fb.Write(b.values[b.arrayOffset+position])
}

func (b *FixedWidthBlock[T]) EncodingName() string {
	return fixedEncodingName(elemSize[T]())
}

func (b *FixedWidthBlock[T]) Hash(position int) uint64 {
	return hashPosition(b, position)
}

func (b *FixedWidthBlock[T]) Equal(position int, other Block, otherPosition int) bool {
	return equalPositions(b, position, other, otherPosition)
}

func (b *FixedWidthBlock[T]) IsLoaded() bool {
	return true
}

func (b *FixedWidthBlock[T]) LoadedBlock() Block {
	return b
}

func (b *FixedWidthBlock[T]) appendValue(position int, buf []byte) []byte {
	return appendFixed(buf, b.values[b.arrayOffset+position])
}

func fixedEncodingName(size int) string {
	switch size {
	case 1:
		return ByteArrayEncoding
	case 2:
		return ShortArrayEncoding
	case 4:
		return IntArrayEncoding
	case 8:
		return LongArrayEncoding
	}
	panic(moerr.NewInternalErrorNoCtx("no fixed width encoding of size %d", size))
}

// appendFixed appends v in little endian order.
func appendFixed[T types.FixedSizeT](buf []byte, v T) []byte {
	switch x := any(v).(type) {
	case bool:
		if x {
			return append(buf, 1)
		}
		return append(buf, 0)
	case int8:
		return append(buf, byte(x))
	case uint8:
		return append(buf, x)
	case int16:
		return binary.LittleEndian.AppendUint16(buf, uint16(x))
	case uint16:
		return binary.LittleEndian.AppendUint16(buf, x)
	case int32:
		return binary.LittleEndian.AppendUint32(buf, uint32(x))
	case uint32:
		return binary.LittleEndian.AppendUint32(buf, x)
	case float32:
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
	case int64:
		return binary.LittleEndian.AppendUint64(buf, uint64(x))
	case uint64:
		return binary.LittleEndian.AppendUint64(buf, x)
	case float64:
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
	}
	panic(moerr.NewInternalErrorNoCtx("unexpected fixed type %T", v))
}

func toLong[T types.FixedSizeT](v T) (int64, bool) {
	switch x := any(v).(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	}
	return 0, false
}

func toDouble[T types.FixedSizeT](v T) (float64, bool) {
	switch x := any(v).(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
