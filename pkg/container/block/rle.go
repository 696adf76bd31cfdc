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

var rleInstanceSize = int64(unsafe.Sizeof(RunLengthEncodedBlock{}))

// RunLengthEncodedBlock repeats the single position of value positionCount
// times.
type RunLengthEncodedBlock struct {
	value         Block
	positionCount int
}

// NewRLE returns value repeated positionCount times, skipping the wrapper
// when it is not needed.
func NewRLE(value Block, positionCount int) Block {
	checkNonNegative("positionCount", positionCount)
	switch positionCount {
	case 0:
		return value.CopyRegion(0, 0)
	case 1:
		return value
	}
	return NewRunLengthEncodedBlock(value, positionCount)
}

func NewRunLengthEncodedBlock(value Block, positionCount int) *RunLengthEncodedBlock {
	if value.PositionCount() != 1 {
		panic(moerr.NewInvalidArgNoCtx("rle value position count", value.PositionCount()))
	}
	checkNonNegative("positionCount", positionCount)
	if rle, ok := value.(*RunLengthEncodedBlock); ok {
		value = rle.value
	}
	return &RunLengthEncodedBlock{value: value, positionCount: positionCount}
}

// Value is the single position block that is repeated.
func (b *RunLengthEncodedBlock) Value() Block {
	return b.value
}

func (b *RunLengthEncodedBlock) PositionCount() int {
	return b.positionCount
}

func (b *RunLengthEncodedBlock) IsNull(position int) bool {
	checkValidPosition(position, b.positionCount)
	return b.value.IsNull(0)
}

func (b *RunLengthEncodedBlock) MayHaveNull() bool {
	return b.positionCount > 0 && b.value.IsNull(0)
}

func (b *RunLengthEncodedBlock) GetBool(position int) bool {
	checkValidPosition(position, b.positionCount)
	return b.value.GetBool(0)
}

func (b *RunLengthEncodedBlock) GetLong(position int) int64 {
	checkValidPosition(position, b.positionCount)
	return b.value.GetLong(0)
}

func (b *RunLengthEncodedBlock) GetDouble(position int) float64 {
	checkValidPosition(position, b.positionCount)
	return b.value.GetDouble(0)
}

func (b *RunLengthEncodedBlock) GetBytes(position int) []byte {
	checkValidPosition(position, b.positionCount)
	return b.value.GetBytes(0)
}

func (b *RunLengthEncodedBlock) GetObject(position int, typ types.T) any {
	checkValidPosition(position, b.positionCount)
	return b.value.GetObject(0, typ)
}

func (b *RunLengthEncodedBlock) SizeInBytes() int64 {
	return b.value.SizeInBytes()
}

func (b *RunLengthEncodedBlock) RetainedSizeInBytes() int64 {
	return rleInstanceSize + b.value.RetainedSizeInBytes()
}

func (b *RunLengthEncodedBlock) RegionSizeInBytes(position, length int) int64 {
	checkValidRegion(b.positionCount, position, length)
	return b.value.SizeInBytes()
}

func (b *RunLengthEncodedBlock) PositionsSizeInBytes(used []bool, _ int) int64 {
	checkValidPositions(used, b.positionCount)
	return b.value.SizeInBytes()
}

func (b *RunLengthEncodedBlock) GetRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	return NewRunLengthEncodedBlock(b.value, length)
}

func (b *RunLengthEncodedBlock) CopyRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	return NewRunLengthEncodedBlock(b.value.CopyRegion(0, 1), length)
}

func (b *RunLengthEncodedBlock) CopyPositions(positions []int, offset, length int) Block {
	checkArrayRange(positions, offset, length)
	for i := offset; i < offset+length; i++ {
		checkValidPosition(positions[i], b.positionCount)
	}
	return NewRunLengthEncodedBlock(b.value.CopyRegion(0, 1), length)
}

func (b *RunLengthEncodedBlock) GetSingleValueBlock(position int) Block {
	checkValidPosition(position, b.positionCount)
	return b.value
}

func (b *RunLengthEncodedBlock) WritePositionTo(position int, builder Builder) {
	checkValidPosition(position, b.positionCount)
	b.value.WritePositionTo(0, builder)
}

func (b *RunLengthEncodedBlock) EncodingName() string {
	return RLEEncoding
}

func (b *RunLengthEncodedBlock) Hash(position int) uint64 {
	checkValidPosition(position, b.positionCount)
	return b.value.Hash(0)
}

func (b *RunLengthEncodedBlock) Equal(position int, other Block, otherPosition int) bool {
	checkValidPosition(position, b.positionCount)
	return b.value.Equal(0, other, otherPosition)
}

func (b *RunLengthEncodedBlock) IsLoaded() bool {
	return b.value.IsLoaded()
}

func (b *RunLengthEncodedBlock) LoadedBlock() Block {
	loaded := b.value.LoadedBlock()
	if loaded == b.value {
		return b
	}
	return NewRunLengthEncodedBlock(loaded, b.positionCount)
}

func (b *RunLengthEncodedBlock) appendValue(_ int, buf []byte) []byte {
	return b.value.appendValue(0, buf)
}
