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

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

var rowInstanceSize = int64(unsafe.Sizeof(RowBlock{}))

// RowBlock holds one block per field, each with the row block's position
// count. A null row is null in every field.
type RowBlock struct {
	arrayOffset   int
	positionCount int
	rowIsNull     []bool
	fields        []Block

	retainedSizeInBytes int64
}

func NewRowBlock(positionCount int, rowIsNull []bool, fields []Block) *RowBlock {
	if len(fields) == 0 {
		panic(moerr.NewInvalidArgNoCtx("row field count", 0))
	}
	for i, field := range fields {
		if field.PositionCount() != positionCount {
			panic(moerr.NewInvalidArgNoCtx("row field position count", i))
		}
	}
	return newRowBlock(0, positionCount, rowIsNull, fields)
}

func newRowBlock(arrayOffset, positionCount int, rowIsNull []bool, fields []Block) *RowBlock {
	checkNonNegative("arrayOffset", arrayOffset)
	checkNonNegative("positionCount", positionCount)
	if rowIsNull != nil && len(rowIsNull)-arrayOffset < positionCount {
		panic(moerr.NewInvalidArgNoCtx("isNull length", len(rowIsNull)))
	}
	b := &RowBlock{
		arrayOffset:   arrayOffset,
		positionCount: positionCount,
		rowIsNull:     rowIsNull,
		fields:        fields,
	}
	b.retainedSizeInBytes = rowInstanceSize + int64(cap(rowIsNull)) +
		int64(cap(fields))*int64(unsafe.Sizeof(Block(nil)))
	return b
}

// Fields returns the field blocks. They share storage with the row block.
func (b *RowBlock) Fields() []Block {
	return b.fields
}

func (b *RowBlock) Nulls() []bool {
	if b.rowIsNull == nil {
		return nil
	}
	return b.rowIsNull[b.arrayOffset : b.arrayOffset+b.positionCount]
}

func (b *RowBlock) PositionCount() int {
	return b.positionCount
}

func (b *RowBlock) IsNull(position int) bool {
	checkValidPosition(position, b.positionCount)
	return b.rowIsNull != nil && b.rowIsNull[b.arrayOffset+position]
}

func (b *RowBlock) MayHaveNull() bool {
	return b.rowIsNull != nil
}

func (b *RowBlock) GetBool(int) bool {
	panic(unsupported("GetBool", b))
}

func (b *RowBlock) GetLong(int) int64 {
	panic(unsupported("GetLong", b))
}

func (b *RowBlock) GetDouble(int) float64 {
	panic(unsupported("GetDouble", b))
}

func (b *RowBlock) GetBytes(int) []byte {
	panic(unsupported("GetBytes", b))
}

// GetObject returns a *SingleRow view of the row at position.
func (b *RowBlock) GetObject(position int, typ types.T) any {
	if typ != types.T_row {
		panic(badObjectType(b, typ))
	}
	if b.IsNull(position) {
		return nil
	}
	return &SingleRow{fields: b.fields, position: position}
}

func (b *RowBlock) SizeInBytes() int64 {
	return b.regionSize(0, b.positionCount)
}

func (b *RowBlock) RetainedSizeInBytes() int64 {
	size := b.retainedSizeInBytes
	for _, field := range b.fields {
		size += field.RetainedSizeInBytes()
	}
	return size
}

func (b *RowBlock) RegionSizeInBytes(position, length int) int64 {
	checkValidRegion(b.positionCount, position, length)
	return b.regionSize(position, length)
}

func (b *RowBlock) regionSize(position, length int) int64 {
	size := int64(sizeOfByte * length)
	for _, field := range b.fields {
		size += field.RegionSizeInBytes(position, length)
	}
	return size
}

func (b *RowBlock) PositionsSizeInBytes(used []bool, selectedCount int) int64 {
	checkValidPositions(used, b.positionCount)
	size := int64(sizeOfByte * selectedCount)
	for _, field := range b.fields {
		size += field.PositionsSizeInBytes(used, selectedCount)
	}
	return size
}

func (b *RowBlock) GetRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	fields := make([]Block, len(b.fields))
	for i, field := range b.fields {
		fields[i] = field.GetRegion(position, length)
	}
	return newRowBlock(b.arrayOffset+position, length, b.rowIsNull, fields)
}

func (b *RowBlock) CopyRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	fields := make([]Block, len(b.fields))
	same := true
	for i, field := range b.fields {
		fields[i] = field.CopyRegion(position, length)
		same = same && fields[i] == field
	}
	if same && b.arrayOffset+position == 0 &&
		(b.rowIsNull == nil || len(b.rowIsNull) == length) {
		return b
	}
	var rowIsNull []bool
	if anyTrue(b.rowIsNull, b.arrayOffset+position, length) {
		rowIsNull = compactBools(b.rowIsNull, b.arrayOffset+position, length)
	}
	return newRowBlock(0, length, rowIsNull, fields)
}

func (b *RowBlock) CopyPositions(positions []int, offset, length int) Block {
	checkArrayRange(positions, offset, length)
	var rowIsNull []bool
	for i := 0; i < length; i++ {
		position := positions[offset+i]
		checkValidPosition(position, b.positionCount)
		if b.rowIsNull != nil && b.rowIsNull[b.arrayOffset+position] {
			if rowIsNull == nil {
				rowIsNull = make([]bool, length)
			}
			rowIsNull[i] = true
		}
	}
	fields := make([]Block, len(b.fields))
	for i, field := range b.fields {
		fields[i] = field.CopyPositions(positions, offset, length)
	}
	return newRowBlock(0, length, rowIsNull, fields)
}

func (b *RowBlock) GetSingleValueBlock(position int) Block {
	checkValidPosition(position, b.positionCount)
	return b.CopyPositions([]int{position}, 0, 1)
}

func (b *RowBlock) WritePositionTo(position int, builder Builder) {
	rb, ok := builder.(*RowBuilder)
	if !ok {
		panic(badBuilder(b, builder))
	}
	if b.IsNull(position) {
		rb.AppendNull()
		return
	}
	rb.BuildEntry(func(fields []Builder) {
		for i, field := range b.fields {
			field.WritePositionTo(position, fields[i])
		}
	})
}

func (b *RowBlock) EncodingName() string {
	return RowEncoding
}

func (b *RowBlock) Hash(position int) uint64 {
	return hashPosition(b, position)
}

func (b *RowBlock) Equal(position int, other Block, otherPosition int) bool {
	return equalPositions(b, position, other, otherPosition)
}

func (b *RowBlock) IsLoaded() bool {
	for _, field := range b.fields {
		if !field.IsLoaded() {
			return false
		}
	}
	return true
}

func (b *RowBlock) LoadedBlock() Block {
	if b.IsLoaded() {
		return b
	}
	fields := make([]Block, len(b.fields))
	for i, field := range b.fields {
		fields[i] = field.LoadedBlock()
	}
	return newRowBlock(b.arrayOffset, b.positionCount, b.rowIsNull, fields)
}

func (b *RowBlock) appendValue(position int, buf []byte) []byte {
	for _, field := range b.fields {
		buf = appendNested(buf, field, position)
	}
	return buf
}

// SingleRow is a view of one row of a RowBlock.
type SingleRow struct {
	fields   []Block
	position int
}

func (r *SingleRow) FieldCount() int {
	return len(r.fields)
}

// Field returns the block holding field i. The row is at Position() in it.
func (r *SingleRow) Field(i int) Block {
	return r.fields[i]
}

func (r *SingleRow) Position() int {
	return r.position
}

// RowBuilder appends rows through BuildEntry.
type RowBuilder struct {
	rowType types.Type
	status  BuilderStatus
	growth

	positionCount   int
	hasNullValue    bool
	hasNonNullValue bool
	entryOpen       bool

	rowIsNull []bool
	fields    []Builder
}

func NewRowBuilder(rowType types.Type, status BuilderStatus, expectedEntries int) *RowBuilder {
	if rowType.Oid != types.T_row || len(rowType.Children) == 0 {
		panic(moerr.NewInvalidArgNoCtx("row type", rowType.String()))
	}
	fields := make([]Builder, len(rowType.Children))
	for i, child := range rowType.Children {
		fields[i] = NewBuilder(child, status, expectedEntries)
	}
	return &RowBuilder{
		rowType: rowType,
		status:  status,
		growth:  newGrowth(expectedEntries),
		fields:  fields,
	}
}

// BuildEntry appends one row. fn must append exactly one position to each
// field builder.
func (b *RowBuilder) BuildEntry(fn func(fields []Builder)) *RowBuilder {
	if b.entryOpen {
		panic(moerr.NewInvalidStateNoCtx("row entry is already open"))
	}
	b.entryOpen = true
	fn(b.fields)
	b.entryOpen = false
	for i, field := range b.fields {
		if field.PositionCount() != b.positionCount+1 {
			panic(moerr.NewInvalidArgNoCtx("row field position count", i))
		}
	}
	b.hasNonNullValue = true
	b.entryAdded(false)
	return b
}

func (b *RowBuilder) AppendNull() Builder {
	if b.entryOpen {
		panic(moerr.NewInvalidStateNoCtx("row entry is open"))
	}
	for _, field := range b.fields {
		field.AppendNull()
	}
	b.hasNullValue = true
	b.entryAdded(true)
	return b
}

// entryAdded keeps rowIsNull unallocated until the first null row.
func (b *RowBuilder) entryAdded(isNull bool) {
	if isNull || b.rowIsNull != nil {
		if len(b.rowIsNull) <= b.positionCount {
			newSize := b.next(len(b.rowIsNull))
			for newSize <= b.positionCount {
				newSize = CalculateNewArraySize(newSize)
			}
			rowIsNull := make([]bool, newSize)
			copy(rowIsNull, b.rowIsNull)
			b.rowIsNull = rowIsNull
		}
		b.rowIsNull[b.positionCount] = isNull
	}
	b.positionCount++
	if b.status != nil {
		b.status.AddBytes(sizeOfByte)
	}
}

func (b *RowBuilder) Build() Block {
	if b.entryOpen {
		panic(moerr.NewInvalidStateNoCtx("row entry is open"))
	}
	if !b.hasNonNullValue {
		fields := make([]Block, len(b.rowType.Children))
		for i, child := range b.rowType.Children {
			fields[i] = NewBuilder(child, nil, 1).AppendNull().Build()
		}
		return NewRLE(newRowBlock(0, 1, []bool{true}, fields), b.positionCount)
	}
	fields := make([]Block, len(b.fields))
	for i, field := range b.fields {
		fields[i] = field.Build()
	}
	var rowIsNull []bool
	if b.hasNullValue {
		rowIsNull = b.rowIsNull
	}
	return newRowBlock(0, b.positionCount, rowIsNull, fields)
}

func (b *RowBuilder) NewBuilderLike(expectedEntries int, status BuilderStatus) Builder {
	return NewRowBuilder(b.rowType, status, expectedEntries)
}

func (b *RowBuilder) PositionCount() int {
	return b.positionCount
}

func (b *RowBuilder) SizeInBytes() int64 {
	size := int64(sizeOfByte * b.positionCount)
	for _, field := range b.fields {
		size += field.SizeInBytes()
	}
	return size
}

func (b *RowBuilder) RetainedSizeInBytes() int64 {
	size := int64(unsafe.Sizeof(*b)) + int64(cap(b.rowIsNull)) + statusRetainedSize(b.status)
	for _, field := range b.fields {
		size += field.RetainedSizeInBytes()
	}
	return size
}
