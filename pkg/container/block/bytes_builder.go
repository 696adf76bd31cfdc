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
)

// DefaultExpectedBytesPerEntry sizes the first data buffer of a variable
// width builder.
const DefaultExpectedBytesPerEntry = 32

// VariableWidthBuilder grows its offsets and its data buffer independently.
type VariableWidthBuilder struct {
	status BuilderStatus
	growth

	initialDataSize int

	positionCount   int
	hasNullValue    bool
	hasNonNullValue bool

	valueIsNull []bool
	// offsets has one more entry than the position capacity.
	offsets []int32
	data    []byte

	retainedSizeInBytes int64
}

func NewVariableWidthBuilder(status BuilderStatus, expectedEntries, expectedBytesPerEntry int) *VariableWidthBuilder {
	if expectedBytesPerEntry <= 0 {
		expectedBytesPerEntry = DefaultExpectedBytesPerEntry
	}
	g := newGrowth(expectedEntries)
	b := &VariableWidthBuilder{
		status:          status,
		growth:          g,
		initialDataSize: g.initialEntryCount * expectedBytesPerEntry,
		offsets:         make([]int32, 1),
	}
	b.updateDataSize()
	return b
}

func (b *VariableWidthBuilder) WriteBytes(v []byte) *VariableWidthBuilder {
	if len(b.offsets) <= b.positionCount+1 {
		b.growCapacity()
	}
	b.ensureFreeSpace(len(v))
	b.data = append(b.data, v...)
	if len(b.data) > MaxArraySize {
		panic(moerr.NewSizeOverflowNoCtx("variable width builder data exceeds %d bytes", MaxArraySize))
	}
	b.hasNonNullValue = true
	b.closeEntry()
	if b.status != nil {
		b.status.AddBytes(int64(variableWidthSizePerPosition + len(v)))
	}
	return b
}

func (b *VariableWidthBuilder) WriteString(v string) *VariableWidthBuilder {
	return b.WriteBytes([]byte(v))
}

func (b *VariableWidthBuilder) AppendNull() Builder {
	if len(b.offsets) <= b.positionCount+1 {
		b.growCapacity()
	}
	if b.valueIsNull == nil {
		b.valueIsNull = make([]bool, len(b.offsets)-1)
		b.updateDataSize()
	}
	b.valueIsNull[b.positionCount] = true
	b.hasNullValue = true
	b.closeEntry()
	if b.status != nil {
		b.status.AddBytes(variableWidthSizePerPosition)
	}
	return b
}

func (b *VariableWidthBuilder) closeEntry() {
	b.positionCount++
	b.offsets[b.positionCount] = int32(len(b.data))
}

func (b *VariableWidthBuilder) Build() Block {
	if !b.hasNonNullValue {
		return NewRLE(newVariableWidthBlock(0, 1, nil, []int32{0, 0}, []bool{true}), b.positionCount)
	}
	var valueIsNull []bool
	if b.hasNullValue {
		valueIsNull = b.valueIsNull
	}
	return newVariableWidthBlock(0, b.positionCount, b.data, b.offsets, valueIsNull)
}

func (b *VariableWidthBuilder) NewBuilderLike(expectedEntries int, status BuilderStatus) Builder {
	expectedBytesPerEntry := DefaultExpectedBytesPerEntry
	if b.positionCount > 0 {
		expectedBytesPerEntry = len(b.data)/b.positionCount + 1
	}
	return NewVariableWidthBuilder(status, expectedEntries, expectedBytesPerEntry)
}

func (b *VariableWidthBuilder) PositionCount() int {
	return b.positionCount
}

func (b *VariableWidthBuilder) SizeInBytes() int64 {
	return int64(len(b.data)) + int64(variableWidthSizePerPosition*b.positionCount)
}

func (b *VariableWidthBuilder) RetainedSizeInBytes() int64 {
	return b.retainedSizeInBytes
}

func (b *VariableWidthBuilder) growCapacity() {
	newSize := b.next(len(b.offsets) - 1)
	offsets := make([]int32, newSize+1)
	copy(offsets, b.offsets)
	b.offsets = offsets
	if b.valueIsNull != nil {
		valueIsNull := make([]bool, newSize)
		copy(valueIsNull, b.valueIsNull)
		b.valueIsNull = valueIsNull
	}
	b.updateDataSize()
}

// ensureFreeSpace reallocates data so that n more bytes fit. Blocks already
// built keep the old buffer.
func (b *VariableWidthBuilder) ensureFreeSpace(n int) {
	if len(b.data)+n <= cap(b.data) {
		return
	}
	newCap := cap(b.data)
	if newCap == 0 && b.initialDataSize > 0 {
		newCap = b.initialDataSize
	}
	for newCap < len(b.data)+n {
		newCap = CalculateNewArraySize(newCap)
		if newCap == MaxArraySize {
			break
		}
	}
	data := make([]byte, len(b.data), newCap)
	copy(data, b.data)
	b.data = data
	b.updateDataSize()
}

func (b *VariableWidthBuilder) updateDataSize() {
	b.retainedSizeInBytes = int64(unsafe.Sizeof(*b)) + int64(cap(b.data)) +
		int64(cap(b.offsets)*sizeOfInt32) + int64(cap(b.valueIsNull)) +
		statusRetainedSize(b.status)
}
