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
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

// variableWidthSizePerPosition is one offset and one null flag.
const variableWidthSizePerPosition = sizeOfInt32 + sizeOfByte

// VariableWidthBlock stores byte strings back to back in data. The value at
// position i is data[offsets[arrayOffset+i]:offsets[arrayOffset+i+1]].
type VariableWidthBlock struct {
	arrayOffset   int
	positionCount int
	data          []byte
	offsets       []int32
	valueIsNull   []bool

	retainedSizeInBytes int64
}

// NewVariableWidthBlock checks that offsets has positionCount+1 entries.
func NewVariableWidthBlock(positionCount int, data []byte, offsets []int32, valueIsNull []bool) *VariableWidthBlock {
	return newVariableWidthBlock(0, positionCount, data, offsets, valueIsNull)
}

func newVariableWidthBlock(arrayOffset, positionCount int, data []byte, offsets []int32, valueIsNull []bool) *VariableWidthBlock {
	checkNonNegative("arrayOffset", arrayOffset)
	checkNonNegative("positionCount", positionCount)
	if len(offsets)-arrayOffset < positionCount+1 {
		panic(moerr.NewInvalidArgNoCtx("offsets length", len(offsets)))
	}
	if valueIsNull != nil && len(valueIsNull)-arrayOffset < positionCount {
		panic(moerr.NewInvalidArgNoCtx("isNull length", len(valueIsNull)))
	}
	if int(offsets[arrayOffset+positionCount]) > len(data) {
		panic(moerr.NewInvalidArgNoCtx("data length", len(data)))
	}
	b := &VariableWidthBlock{
		arrayOffset:   arrayOffset,
		positionCount: positionCount,
		data:          data,
		offsets:       offsets,
		valueIsNull:   valueIsNull,
	}
	b.retainedSizeInBytes = int64(unsafe.Sizeof(*b)) + int64(cap(data)) +
		int64(cap(offsets)*sizeOfInt32) + int64(cap(valueIsNull))
	return b
}

func (b *VariableWidthBlock) offset(position int) int {
	return int(b.offsets[b.arrayOffset+position])
}

// Length is the byte length of the value at position.
func (b *VariableWidthBlock) Length(position int) int {
	checkValidPosition(position, b.positionCount)
	return b.offset(position+1) - b.offset(position)
}

// RawData returns the bytes of every position of the block and the offsets
// rebased to start at zero. Used by serializers.
func (b *VariableWidthBlock) RawData() ([]byte, []int32) {
	start := b.offset(0)
	end := b.offset(b.positionCount)
	offsets := make([]int32, b.positionCount+1)
	for i := range offsets {
		offsets[i] = int32(b.offset(i) - start)
	}
	return b.data[start:end:end], offsets
}

func (b *VariableWidthBlock) Nulls() []bool {
	if b.valueIsNull == nil {
		return nil
	}
	return b.valueIsNull[b.arrayOffset : b.arrayOffset+b.positionCount]
}

func (b *VariableWidthBlock) PositionCount() int {
	return b.positionCount
}

func (b *VariableWidthBlock) IsNull(position int) bool {
	checkValidPosition(position, b.positionCount)
	return b.valueIsNull != nil && b.valueIsNull[b.arrayOffset+position]
}

func (b *VariableWidthBlock) MayHaveNull() bool {
	return b.valueIsNull != nil
}

func (b *VariableWidthBlock) GetBool(int) bool {
	panic(unsupported("GetBool", b))
}

func (b *VariableWidthBlock) GetLong(int) int64 {
	panic(unsupported("GetLong", b))
}

func (b *VariableWidthBlock) GetDouble(int) float64 {
	panic(unsupported("GetDouble", b))
}

func (b *VariableWidthBlock) GetBytes(position int) []byte {
	checkValidPosition(position, b.positionCount)
	start, end := b.offset(position), b.offset(position+1)
	return b.data[start:end:end]
}

func (b *VariableWidthBlock) GetString(position int) string {
	return string(b.GetBytes(position))
}

func (b *VariableWidthBlock) GetObject(_ int, typ types.T) any {
	panic(badObjectType(b, typ))
}

func (b *VariableWidthBlock) SizeInBytes() int64 {
	return b.regionSize(0, b.positionCount)
}

func (b *VariableWidthBlock) RetainedSizeInBytes() int64 {
	return b.retainedSizeInBytes
}

func (b *VariableWidthBlock) RegionSizeInBytes(position, length int) int64 {
	checkValidRegion(b.positionCount, position, length)
	return b.regionSize(position, length)
}

func (b *VariableWidthBlock) regionSize(position, length int) int64 {
	return int64(b.offset(position+length)-b.offset(position)) +
		int64(variableWidthSizePerPosition*length)
}

func (b *VariableWidthBlock) PositionsSizeInBytes(used []bool, selectedCount int) int64 {
	checkValidPositions(used, b.positionCount)
	var size int64
	for i := 0; i < b.positionCount; i++ {
		if used[i] {
			size += int64(b.offset(i+1) - b.offset(i))
		}
	}
	return size + int64(variableWidthSizePerPosition*selectedCount)
}

func (b *VariableWidthBlock) GetRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	return newVariableWidthBlock(b.arrayOffset+position, length, b.data, b.offsets, b.valueIsNull)
}

func (b *VariableWidthBlock) CopyRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	start, end := b.offset(position), b.offset(position+length)
	if b.arrayOffset+position == 0 && start == 0 &&
		len(b.offsets) == length+1 && len(b.data) == end &&
		(b.valueIsNull == nil || len(b.valueIsNull) == length) {
		return b
	}
	offsets := make([]int32, length+1)
	for i := 1; i <= length; i++ {
		offsets[i] = int32(b.offset(position+i) - start)
	}
	data := make([]byte, end-start)
	copy(data, b.data[start:end])
	var valueIsNull []bool
	if anyTrue(b.valueIsNull, b.arrayOffset+position, length) {
		valueIsNull = compactBools(b.valueIsNull, b.arrayOffset+position, length)
	}
	return newVariableWidthBlock(0, length, data, offsets, valueIsNull)
}

func (b *VariableWidthBlock) CopyPositions(positions []int, offset, length int) Block {
	checkArrayRange(positions, offset, length)
	size := 0
	for i := 0; i < length; i++ {
		position := positions[offset+i]
		checkValidPosition(position, b.positionCount)
		size += b.offset(position+1) - b.offset(position)
	}
	data := make([]byte, 0, size)
	offsets := make([]int32, length+1)
	var valueIsNull []bool
	for i := 0; i < length; i++ {
		position := positions[offset+i]
		if b.valueIsNull != nil && b.valueIsNull[b.arrayOffset+position] {
			if valueIsNull == nil {
				valueIsNull = make([]bool, length)
			}
			valueIsNull[i] = true
		}
		data = append(data, b.data[b.offset(position):b.offset(position+1)]...)
		offsets[i+1] = int32(len(data))
	}
	return newVariableWidthBlock(0, length, data, offsets, valueIsNull)
}

func (b *VariableWidthBlock) GetSingleValueBlock(position int) Block {
	checkValidPosition(position, b.positionCount)
	var valueIsNull []bool
	if b.valueIsNull != nil && b.valueIsNull[b.arrayOffset+position] {
		valueIsNull = []bool{true}
	}
	value := b.GetBytes(position)
	data := make([]byte, len(value))
	copy(data, value)
	return newVariableWidthBlock(0, 1, data, []int32{0, int32(len(data))}, valueIsNull)
}

func (b *VariableWidthBlock) WritePositionTo(position int, builder Builder) {
	vb, ok := builder.(*VariableWidthBuilder)
	if !ok {
		panic(badBuilder(b, builder))
	}
	if b.IsNull(position) {
		vb.AppendNull()
		return
	}
	vb.WriteBytes(b.GetBytes(position))
}

func (b *VariableWidthBlock) EncodingName() string {
	return VariableWidthEncoding
}

func (b *VariableWidthBlock) Hash(position int) uint64 {
	if b.IsNull(position) {
		return nullHash
	}
	return xxhash.Sum64(b.GetBytes(position))
}

func (b *VariableWidthBlock) Equal(position int, other Block, otherPosition int) bool {
	return equalPositions(b, position, other, otherPosition)
}

func (b *VariableWidthBlock) IsLoaded() bool {
	return true
}

func (b *VariableWidthBlock) LoadedBlock() Block {
	return b
}

func (b *VariableWidthBlock) appendValue(position int, buf []byte) []byte {
	return append(buf, b.data[b.offset(position):b.offset(position+1)]...)
}
