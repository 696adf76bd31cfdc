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
	"unsafe"

	"go.uber.org/atomic"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

var arrayInstanceSize = int64(unsafe.Sizeof(ArrayBlock{}))

// arraySizePerPosition is one offset and one null flag.
const arraySizePerPosition = sizeOfInt32 + sizeOfByte

// ArrayBlock stores the elements of all arrays in one values block. The
// elements of position i are values[offsets[arrayOffset+i]:
// offsets[arrayOffset+i+1]].
type ArrayBlock struct {
	arrayOffset   int
	positionCount int
	valueIsNull   []bool
	offsets       []int32
	values        Block

	retainedSizeInBytes int64
	sizeInBytes         atomic.Int64
}

func NewArrayBlock(valueIsNull []bool, offsets []int32, values Block) *ArrayBlock {
	positionCount := len(offsets) - 1
	if positionCount < 0 {
		panic(moerr.NewInvalidArgNoCtx("offsets length", len(offsets)))
	}
	validateOffsets(offsets, valueIsNull, positionCount, values.PositionCount())
	return newArrayBlock(0, positionCount, valueIsNull, offsets, values)
}

func newArrayBlock(arrayOffset, positionCount int, valueIsNull []bool, offsets []int32, values Block) *ArrayBlock {
	checkNonNegative("arrayOffset", arrayOffset)
	checkNonNegative("positionCount", positionCount)
	if len(offsets)-arrayOffset < positionCount+1 {
		panic(moerr.NewInvalidArgNoCtx("offsets length", len(offsets)))
	}
	if valueIsNull != nil && len(valueIsNull)-arrayOffset < positionCount {
		panic(moerr.NewInvalidArgNoCtx("isNull length", len(valueIsNull)))
	}
	b := &ArrayBlock{
		arrayOffset:   arrayOffset,
		positionCount: positionCount,
		valueIsNull:   valueIsNull,
		offsets:       offsets,
		values:        values,
	}
	b.retainedSizeInBytes = arrayInstanceSize + int64(cap(offsets)*sizeOfInt32) + int64(cap(valueIsNull))
	b.sizeInBytes.Store(-1)
	return b
}

func (b *ArrayBlock) start(position int) int {
	return int(b.offsets[b.arrayOffset+position])
}

// Offsets returns the element offsets rebased to start at zero.
func (b *ArrayBlock) Offsets() []int32 {
	start := b.start(0)
	offsets := make([]int32, b.positionCount+1)
	for i := range offsets {
		offsets[i] = int32(b.start(i) - start)
	}
	return offsets
}

// Elements returns the elements of every array of the block.
func (b *ArrayBlock) Elements() Block {
	start := b.start(0)
	return b.values.GetRegion(start, b.start(b.positionCount)-start)
}

func (b *ArrayBlock) Nulls() []bool {
	if b.valueIsNull == nil {
		return nil
	}
	return b.valueIsNull[b.arrayOffset : b.arrayOffset+b.positionCount]
}

func (b *ArrayBlock) PositionCount() int {
	return b.positionCount
}

func (b *ArrayBlock) IsNull(position int) bool {
	checkValidPosition(position, b.positionCount)
	return b.valueIsNull != nil && b.valueIsNull[b.arrayOffset+position]
}

func (b *ArrayBlock) MayHaveNull() bool {
	return b.valueIsNull != nil
}

func (b *ArrayBlock) GetBool(int) bool {
	panic(unsupported("GetBool", b))
}

func (b *ArrayBlock) GetLong(int) int64 {
	panic(unsupported("GetLong", b))
}

func (b *ArrayBlock) GetDouble(int) float64 {
	panic(unsupported("GetDouble", b))
}

func (b *ArrayBlock) GetBytes(int) []byte {
	panic(unsupported("GetBytes", b))
}

// GetObject returns the elements of the array at position as a region of
// the values block.
func (b *ArrayBlock) GetObject(position int, typ types.T) any {
	if typ != types.T_array {
		panic(badObjectType(b, typ))
	}
	if b.IsNull(position) {
		return nil
	}
	start := b.start(position)
	return b.values.GetRegion(start, b.start(position+1)-start)
}

func (b *ArrayBlock) SizeInBytes() int64 {
	if size := b.sizeInBytes.Load(); size >= 0 {
		return size
	}
	size := b.regionSize(0, b.positionCount)
	b.sizeInBytes.Store(size)
	return size
}

func (b *ArrayBlock) RetainedSizeInBytes() int64 {
	return b.retainedSizeInBytes + b.values.RetainedSizeInBytes()
}

func (b *ArrayBlock) RegionSizeInBytes(position, length int) int64 {
	checkValidRegion(b.positionCount, position, length)
	return b.regionSize(position, length)
}

func (b *ArrayBlock) regionSize(position, length int) int64 {
	start := b.start(position)
	return b.values.RegionSizeInBytes(start, b.start(position+length)-start) +
		int64(arraySizePerPosition*length)
}

func (b *ArrayBlock) PositionsSizeInBytes(used []bool, selectedCount int) int64 {
	checkValidPositions(used, b.positionCount)
	elementUsed := make([]bool, b.values.PositionCount())
	elements := 0
	for i := 0; i < b.positionCount; i++ {
		if !used[i] {
			continue
		}
		for e := b.start(i); e < b.start(i+1); e++ {
			elementUsed[e] = true
			elements++
		}
	}
	return b.values.PositionsSizeInBytes(elementUsed, elements) +
		int64(arraySizePerPosition*selectedCount)
}

func (b *ArrayBlock) GetRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	return newArrayBlock(b.arrayOffset+position, length, b.valueIsNull, b.offsets, b.values)
}

func (b *ArrayBlock) CopyRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	start := b.start(position)
	count := b.start(position+length) - start
	values := b.values.CopyRegion(start, count)
	if b.arrayOffset+position == 0 && start == 0 && values == b.values &&
		len(b.offsets) == length+1 &&
		(b.valueIsNull == nil || len(b.valueIsNull) == length) {
		return b
	}
	offsets := make([]int32, length+1)
	for i := 1; i <= length; i++ {
		offsets[i] = int32(b.start(position+i) - start)
	}
	var valueIsNull []bool
	if anyTrue(b.valueIsNull, b.arrayOffset+position, length) {
		valueIsNull = compactBools(b.valueIsNull, b.arrayOffset+position, length)
	}
	return newArrayBlock(0, length, valueIsNull, offsets, values)
}

func (b *ArrayBlock) CopyPositions(positions []int, offset, length int) Block {
	checkArrayRange(positions, offset, length)
	offsets := make([]int32, length+1)
	var valueIsNull []bool
	elementPositions := make([]int, 0, length)
	for i := 0; i < length; i++ {
		position := positions[offset+i]
		checkValidPosition(position, b.positionCount)
		if b.valueIsNull != nil && b.valueIsNull[b.arrayOffset+position] {
			if valueIsNull == nil {
				valueIsNull = make([]bool, length)
			}
			valueIsNull[i] = true
		} else {
			for e := b.start(position); e < b.start(position+1); e++ {
				elementPositions = append(elementPositions, e)
			}
		}
		offsets[i+1] = int32(len(elementPositions))
	}
	values := b.values.CopyPositions(elementPositions, 0, len(elementPositions))
	return newArrayBlock(0, length, valueIsNull, offsets, values)
}

func (b *ArrayBlock) GetSingleValueBlock(position int) Block {
	checkValidPosition(position, b.positionCount)
	return b.CopyPositions([]int{position}, 0, 1)
}

func (b *ArrayBlock) WritePositionTo(position int, builder Builder) {
	ab, ok := builder.(*ArrayBuilder)
	if !ok {
		panic(badBuilder(b, builder))
	}
	if b.IsNull(position) {
		ab.AppendNull()
		return
	}
	start, end := b.start(position), b.start(position+1)
	ab.BuildEntry(func(elements Builder) {
		for e := start; e < end; e++ {
			b.values.WritePositionTo(e, elements)
		}
	})
}

func (b *ArrayBlock) EncodingName() string {
	return ArrayEncoding
}

func (b *ArrayBlock) Hash(position int) uint64 {
	return hashPosition(b, position)
}

func (b *ArrayBlock) Equal(position int, other Block, otherPosition int) bool {
	return equalPositions(b, position, other, otherPosition)
}

func (b *ArrayBlock) IsLoaded() bool {
	return b.values.IsLoaded()
}

func (b *ArrayBlock) LoadedBlock() Block {
	loaded := b.values.LoadedBlock()
	if loaded == b.values {
		return b
	}
	return newArrayBlock(b.arrayOffset, b.positionCount, b.valueIsNull, b.offsets, loaded)
}

func (b *ArrayBlock) appendValue(position int, buf []byte) []byte {
	start, end := b.start(position), b.start(position+1)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(end-start))
	for e := start; e < end; e++ {
		buf = appendNested(buf, b.values, e)
	}
	return buf
}

// ArrayBuilder appends arrays through BuildEntry.
type ArrayBuilder struct {
	arrayType types.Type
	status    BuilderStatus
	growth

	positionCount   int
	hasNullValue    bool
	hasNonNullValue bool
	entryOpen       bool

	valueIsNull []bool
	offsets     []int32
	values      Builder
}

func NewArrayBuilder(arrayType types.Type, status BuilderStatus, expectedEntries int) *ArrayBuilder {
	if arrayType.Oid != types.T_array {
		panic(moerr.NewInvalidArgNoCtx("array type", arrayType.String()))
	}
	return &ArrayBuilder{
		arrayType: arrayType,
		status:    status,
		growth:    newGrowth(expectedEntries),
		offsets:   make([]int32, 1),
		values:    NewBuilder(arrayType.ElemType(), status, expectedEntries),
	}
}

// BuildEntry appends one array whose elements fn appends.
func (b *ArrayBuilder) BuildEntry(fn func(elements Builder)) *ArrayBuilder {
	if b.entryOpen {
		panic(moerr.NewInvalidStateNoCtx("array entry is already open"))
	}
	b.entryOpen = true
	fn(b.values)
	b.entryOpen = false
	b.hasNonNullValue = true
	b.entryAdded(false)
	if b.status != nil {
		b.status.AddBytes(arraySizePerPosition)
	}
	return b
}

func (b *ArrayBuilder) AppendNull() Builder {
	if b.entryOpen {
		panic(moerr.NewInvalidStateNoCtx("array entry is open"))
	}
	b.hasNullValue = true
	b.entryAdded(true)
	if b.status != nil {
		b.status.AddBytes(arraySizePerPosition)
	}
	return b
}

func (b *ArrayBuilder) entryAdded(isNull bool) {
	if len(b.offsets) <= b.positionCount+1 {
		newSize := b.next(len(b.offsets) - 1)
		offsets := make([]int32, newSize+1)
		copy(offsets, b.offsets)
		b.offsets = offsets
		if b.valueIsNull != nil {
			valueIsNull := make([]bool, newSize)
			copy(valueIsNull, b.valueIsNull)
			b.valueIsNull = valueIsNull
		}
	}
	if isNull {
		if b.valueIsNull == nil {
			b.valueIsNull = make([]bool, len(b.offsets)-1)
		}
		b.valueIsNull[b.positionCount] = true
	}
	b.positionCount++
	b.offsets[b.positionCount] = int32(b.values.PositionCount())
}

func (b *ArrayBuilder) Build() Block {
	if b.entryOpen {
		panic(moerr.NewInvalidStateNoCtx("array entry is open"))
	}
	if !b.hasNonNullValue {
		values := NewBuilder(b.arrayType.ElemType(), nil, 1).Build()
		return NewRLE(newArrayBlock(0, 1, []bool{true}, []int32{0, 0}, values), b.positionCount)
	}
	var valueIsNull []bool
	if b.hasNullValue {
		valueIsNull = b.valueIsNull
	}
	return newArrayBlock(0, b.positionCount, valueIsNull, b.offsets, b.values.Build())
}

func (b *ArrayBuilder) NewBuilderLike(expectedEntries int, status BuilderStatus) Builder {
	return NewArrayBuilder(b.arrayType, status, expectedEntries)
}

func (b *ArrayBuilder) PositionCount() int {
	return b.positionCount
}

func (b *ArrayBuilder) SizeInBytes() int64 {
	return b.values.SizeInBytes() + int64(arraySizePerPosition*b.positionCount)
}

func (b *ArrayBuilder) RetainedSizeInBytes() int64 {
	return int64(unsafe.Sizeof(*b)) + b.values.RetainedSizeInBytes() +
		int64(cap(b.offsets)*sizeOfInt32) + int64(cap(b.valueIsNull)) +
		statusRetainedSize(b.status)
}
