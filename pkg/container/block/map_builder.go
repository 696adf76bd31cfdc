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

// MapBuilder appends maps through BuildEntry. Hash tables of new entries are
// built by the next Build.
type MapBuilder struct {
	mapType types.Type
	status  BuilderStatus
	growth

	positionCount   int
	hasNullValue    bool
	hasNonNullValue bool
	entryOpen       bool

	mapIsNull    []bool
	offsets      []int32
	keyBuilder   Builder
	valueBuilder Builder

	hashTables []int32
	// hashedPositions is the number of positions whose hash tables are built.
	hashedPositions int
}

func NewMapBuilder(mapType types.Type, status BuilderStatus, expectedEntries int) *MapBuilder {
	if mapType.Oid != types.T_map {
		panic(moerr.NewInvalidArgNoCtx("map type", mapType.String()))
	}
	return &MapBuilder{
		mapType:      mapType,
		status:       status,
		growth:       newGrowth(expectedEntries),
		offsets:      make([]int32, 1),
		keyBuilder:   NewBuilder(mapType.KeyType(), status, expectedEntries),
		valueBuilder: NewBuilder(mapType.ValueType(), status, expectedEntries),
	}
}

// BuildEntry appends one map. fn must append the same number of keys and
// values.
func (b *MapBuilder) BuildEntry(fn func(keys, values Builder)) *MapBuilder {
	if b.entryOpen {
		panic(moerr.NewInvalidStateNoCtx("map entry is already open"))
	}
	start := b.keyBuilder.PositionCount()
	b.entryOpen = true
	fn(b.keyBuilder, b.valueBuilder)
	b.entryOpen = false
	end := b.keyBuilder.PositionCount()
	if b.valueBuilder.PositionCount() != end {
		panic(moerr.NewInvalidArgNoCtx("map value count", b.valueBuilder.PositionCount()-start))
	}
	b.hasNonNullValue = true
	b.entryAdded(end, false)
	if b.status != nil {
		b.status.AddBytes(int64(mapSizePerPosition + sizeOfInt32*HashMultiplier*(end-start)))
	}
	return b
}

func (b *MapBuilder) AppendNull() Builder {
	if b.entryOpen {
		panic(moerr.NewInvalidStateNoCtx("map entry is open"))
	}
	b.hasNullValue = true
	b.entryAdded(b.keyBuilder.PositionCount(), true)
	if b.status != nil {
		b.status.AddBytes(mapSizePerPosition)
	}
	return b
}

func (b *MapBuilder) entryAdded(end int, isNull bool) {
	if len(b.offsets) <= b.positionCount+1 {
		b.growCapacity()
	}
	if isNull {
		if b.mapIsNull == nil {
			b.mapIsNull = make([]bool, len(b.offsets)-1)
		}
		b.mapIsNull[b.positionCount] = true
	}
	b.positionCount++
	b.offsets[b.positionCount] = int32(end)
}

func (b *MapBuilder) growCapacity() {
	newSize := b.next(len(b.offsets) - 1)
	offsets := make([]int32, newSize+1)
	copy(offsets, b.offsets)
	b.offsets = offsets
	if b.mapIsNull != nil {
		mapIsNull := make([]bool, newSize)
		copy(mapIsNull, b.mapIsNull)
		b.mapIsNull = mapIsNull
	}
}

func (b *MapBuilder) Build() Block {
	if b.entryOpen {
		panic(moerr.NewInvalidStateNoCtx("map entry is open"))
	}
	if !b.hasNonNullValue {
		return NewRLE(nullMapBlock(b.mapType), b.positionCount)
	}
	keys := b.keyBuilder.Build()
	values := b.valueBuilder.Build()
	b.buildHashTables(keys)
	var mapIsNull []bool
	if b.hasNullValue {
		mapIsNull = b.mapIsNull
	}
	return newMapBlock(b.mapType, 0, b.positionCount, mapIsNull, b.offsets, keys, values, b.hashTables)
}

// buildHashTables fills the slots of positions appended since the last
// Build. Slots of earlier positions never change, so built blocks can share
// them.
func (b *MapBuilder) buildHashTables(keys Block) {
	slots := int(b.offsets[b.positionCount]) * HashMultiplier
	if cap(b.hashTables) < slots {
		newCap := cap(b.hashTables)
		for newCap < slots {
			newCap = CalculateNewArraySize(newCap)
		}
		hashTables := make([]int32, len(b.hashTables), newCap)
		copy(hashTables, b.hashTables)
		b.hashTables = hashTables
	}
	b.hashTables = b.hashTables[:slots]
	for ; b.hashedPositions < b.positionCount; b.hashedPositions++ {
		start, end := int(b.offsets[b.hashedPositions]), int(b.offsets[b.hashedPositions+1])
		buildHashTable(keys, start, end-start, b.hashTables[start*HashMultiplier:end*HashMultiplier])
	}
}

func nullMapBlock(mapType types.Type) *MapBlock {
	keys := NewBuilder(mapType.KeyType(), nil, 1).Build()
	values := NewBuilder(mapType.ValueType(), nil, 1).Build()
	return newMapBlock(mapType, 0, 1, []bool{true}, []int32{0, 0}, keys, values, nil)
}

func (b *MapBuilder) NewBuilderLike(expectedEntries int, status BuilderStatus) Builder {
	return NewMapBuilder(b.mapType, status, expectedEntries)
}

func (b *MapBuilder) PositionCount() int {
	return b.positionCount
}

func (b *MapBuilder) SizeInBytes() int64 {
	entries := int(b.offsets[b.positionCount])
	return b.keyBuilder.SizeInBytes() + b.valueBuilder.SizeInBytes() +
		int64(mapSizePerPosition*b.positionCount) +
		int64(sizeOfInt32*HashMultiplier*entries)
}

func (b *MapBuilder) RetainedSizeInBytes() int64 {
	return int64(unsafe.Sizeof(*b)) +
		b.keyBuilder.RetainedSizeInBytes() + b.valueBuilder.RetainedSizeInBytes() +
		int64(cap(b.offsets)*sizeOfInt32) + int64(cap(b.mapIsNull)) +
		int64(cap(b.hashTables)*sizeOfInt32) +
		statusRetainedSize(b.status)
}
