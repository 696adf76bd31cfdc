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

// Package block holds the columnar memory model: a Block is one column over a
// batch of positions, a Builder appends values and freezes them into a Block.
//
// Blocks are immutable once built and may be read from many goroutines. A
// block may share its backing slices with other blocks, so callers never
// assume exclusive ownership unless the block came from CopyRegion or
// CopyPositions.
//
// Argument errors such as an out of range position or a builder of the wrong
// kind are bugs in the caller and panic with a *moerr.Error.
package block

import (
	"github.com/matrixorigin/moblock/pkg/container/types"
)

// Encoding names. They identify the serializer of a block on the wire and
// must never change.
const (
	ByteArrayEncoding     = "BYTE_ARRAY"
	ShortArrayEncoding    = "SHORT_ARRAY"
	IntArrayEncoding      = "INT_ARRAY"
	LongArrayEncoding     = "LONG_ARRAY"
	VariableWidthEncoding = "VARIABLE_WIDTH"
	MapEncoding           = "MAP"
	ArrayEncoding         = "ARRAY"
	RowEncoding           = "ROW"
	DictionaryEncoding    = "DICTIONARY"
	RLEEncoding           = "RLE"
	LazyEncoding          = "LAZY"
)

// Block is a read only column. The set of implementations is closed:
// FixedWidthBlock, VariableWidthBlock, MapBlock, ArrayBlock, RowBlock,
// DictionaryBlock, RunLengthEncodedBlock and LazyBlock.
type Block interface {
	// PositionCount is fixed at construction.
	PositionCount() int

	IsNull(position int) bool
	// MayHaveNull returns false only when no position is null.
	MayHaveNull() bool

	GetBool(position int) bool
	// GetLong returns an integer value widened to int64.
	GetLong(position int) int64
	GetDouble(position int) float64
	// GetBytes returns a slice sharing the block's storage. Callers must not
	// modify it.
	GetBytes(position int) []byte
	// GetObject returns the container value at position viewed as typ:
	// *SingleMap for T_map, the element Block for T_array, *SingleRow for
	// T_row. It returns nil for a null position.
	GetObject(position int, typ types.T) any

	// SizeInBytes is the logical compacted size. Shared dictionary entries
	// and repeated values are counted once.
	SizeInBytes() int64
	// RetainedSizeInBytes is the memory held by the block including over
	// allocation. It never loads a lazy block.
	RetainedSizeInBytes() int64
	RegionSizeInBytes(position, length int) int64
	// PositionsSizeInBytes is the size of the positions p with used[p] set.
	// selectedCount is the number of those positions.
	PositionsSizeInBytes(used []bool, selectedCount int) int64

	// GetRegion returns a view sharing this block's storage.
	GetRegion(position, length int) Block
	// CopyRegion returns a block with compacted storage of its own. It may
	// return the receiver if it is already exactly that.
	CopyRegion(position, length int) Block
	CopyPositions(positions []int, offset, length int) Block
	GetSingleValueBlock(position int) Block

	// WritePositionTo appends the value at position to builder, which must be
	// of the kind that builds this block's values.
	WritePositionTo(position int, builder Builder)

	EncodingName() string

	// Hash is consistent with Equal. All null positions hash alike.
	Hash(position int) uint64
	// Equal treats two nulls as equal.
	Equal(position int, other Block, otherPosition int) bool

	IsLoaded() bool
	// LoadedBlock returns a block with every lazy part materialized.
	LoadedBlock() Block

	// appendValue appends the canonical encoding of a non null position.
	appendValue(position int, buf []byte) []byte
}
