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

	"github.com/matrixorigin/moblock/pkg/container/types"
)

type FixedWidthBuilder[T types.FixedSizeT] struct {
	status BuilderStatus
	growth

	positionCount   int
	hasNullValue    bool
	hasNonNullValue bool

	// values and valueIsNull have the same length once valueIsNull exists.
	valueIsNull []bool
	values      []T

	retainedSizeInBytes int64
}

func NewFixedWidthBuilder[T types.FixedSizeT](status BuilderStatus, expectedEntries int) *FixedWidthBuilder[T] {
	b := &FixedWidthBuilder[T]{
		status: status,
		growth: newGrowth(expectedEntries),
	}
	b.updateDataSize()
	return b
}

func (b *FixedWidthBuilder[T]) Write(v T) *FixedWidthBuilder[T] {
	if len(b.values) <= b.positionCount {
		b.growCapacity()
	}
	b.values[b.positionCount] = v
	b.hasNonNullValue = true
	b.positionCount++
	if b.status != nil {
		b.status.AddBytes(fixedSizeInBytesPerPosition[T]())
	}
	return b
}

func (b *FixedWidthBuilder[T]) AppendNull() Builder {
	if len(b.values) <= b.positionCount {
		b.growCapacity()
	}
	if b.valueIsNull == nil {
		b.valueIsNull = make([]bool, len(b.values))
		b.updateDataSize()
	}
	b.valueIsNull[b.positionCount] = true
	b.hasNullValue = true
	b.positionCount++
	if b.status != nil {
		b.status.AddBytes(fixedSizeInBytesPerPosition[T]())
	}
	return b
}

func (b *FixedWidthBuilder[T]) Build() Block {
	if !b.hasNonNullValue {
		return NewRLE(newFixedWidthBlock(0, 1, []bool{true}, make([]T, 1)), b.positionCount)
	}
	var valueIsNull []bool
	if b.hasNullValue {
		valueIsNull = b.valueIsNull
	}
	return newFixedWidthBlock(0, b.positionCount, valueIsNull, b.values)
}

func (b *FixedWidthBuilder[T]) NewBuilderLike(expectedEntries int, status BuilderStatus) Builder {
	return NewFixedWidthBuilder[T](status, expectedEntries)
}

func (b *FixedWidthBuilder[T]) PositionCount() int {
	return b.positionCount
}

func (b *FixedWidthBuilder[T]) SizeInBytes() int64 {
	return fixedSizeInBytesPerPosition[T]() * int64(b.positionCount)
}

func (b *FixedWidthBuilder[T]) RetainedSizeInBytes() int64 {
	return b.retainedSizeInBytes
}

func (b *FixedWidthBuilder[T]) growCapacity() {
	newSize := b.next(len(b.values))
	values := make([]T, newSize)
	copy(values, b.values)
	b.values = values
	if b.valueIsNull != nil {
		valueIsNull := make([]bool, newSize)
		copy(valueIsNull, b.valueIsNull)
		b.valueIsNull = valueIsNull
	}
	b.updateDataSize()
}

func (b *FixedWidthBuilder[T]) updateDataSize() {
	b.retainedSizeInBytes = int64(unsafe.Sizeof(*b)) +
		int64(cap(b.values)*elemSize[T]()) + int64(cap(b.valueIsNull)) +
		statusRetainedSize(b.status)
}
