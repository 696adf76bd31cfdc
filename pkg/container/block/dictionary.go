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

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

// DictionaryID identifies the source of a dictionary. Blocks with the same
// id share one dictionary and their ids may be compared directly.
type DictionaryID uuid.UUID

func NewDictionaryID() DictionaryID {
	return DictionaryID(uuid.New())
}

func (id DictionaryID) String() string {
	return uuid.UUID(id).String()
}

var dictionaryInstanceSize = int64(unsafe.Sizeof(DictionaryBlock{}))

// DictionaryBlock maps every position to a position of a shared dictionary.
type DictionaryBlock struct {
	idsOffset     int
	positionCount int
	dictionary    Block
	ids           []int32
	sourceID      DictionaryID

	retainedSizeInBytes int64
	// sizeInBytes and uniqueIDs are computed on first use, -1 until then.
	sizeInBytes atomic.Int64
	uniqueIDs   atomic.Int64
}

// NewDictionaryBlock wraps dictionary with a fresh source id.
func NewDictionaryBlock(dictionary Block, ids []int32) *DictionaryBlock {
	return NewDictionaryBlockWithID(dictionary, ids, NewDictionaryID())
}

func NewDictionaryBlockWithID(dictionary Block, ids []int32, sourceID DictionaryID) *DictionaryBlock {
	count := dictionary.PositionCount()
	for _, id := range ids {
		if id < 0 || int(id) >= count {
			panic(moerr.NewInvalidArgNoCtx("dictionary id", id))
		}
	}
	return newDictionaryBlock(0, len(ids), dictionary, ids, sourceID)
}

func newDictionaryBlock(idsOffset, positionCount int, dictionary Block, ids []int32, sourceID DictionaryID) *DictionaryBlock {
	checkNonNegative("positionCount", positionCount)
	if len(ids)-idsOffset < positionCount {
		panic(moerr.NewInvalidArgNoCtx("ids length", len(ids)))
	}
	b := &DictionaryBlock{
		idsOffset:     idsOffset,
		positionCount: positionCount,
		dictionary:    dictionary,
		ids:           ids,
		sourceID:      sourceID,
	}
	b.retainedSizeInBytes = dictionaryInstanceSize + int64(cap(ids)*sizeOfInt32)
	b.sizeInBytes.Store(-1)
	b.uniqueIDs.Store(-1)
	return b
}

func (b *DictionaryBlock) Dictionary() Block {
	return b.dictionary
}

func (b *DictionaryBlock) DictionaryID() DictionaryID {
	return b.sourceID
}

// ID returns the dictionary position of position.
func (b *DictionaryBlock) ID(position int) int {
	checkValidPosition(position, b.positionCount)
	return int(b.ids[b.idsOffset+position])
}

// IDs returns the ids of the block, sharing storage.
func (b *DictionaryBlock) IDs() []int32 {
	return b.ids[b.idsOffset : b.idsOffset+b.positionCount]
}

// IsSequentialIDs reports whether position i maps to dictionary position i
// for every position of the dictionary.
func (b *DictionaryBlock) IsSequentialIDs() bool {
	if b.positionCount != b.dictionary.PositionCount() {
		return false
	}
	for i, id := range b.IDs() {
		if int(id) != i {
			return false
		}
	}
	return true
}

// UniqueIDs is the number of distinct dictionary positions referenced.
func (b *DictionaryBlock) UniqueIDs() int {
	if n := b.uniqueIDs.Load(); n >= 0 {
		return int(n)
	}
	b.calculateCompactSize()
	return int(b.uniqueIDs.Load())
}

// IsCompact reports whether every dictionary position is referenced.
func (b *DictionaryBlock) IsCompact() bool {
	return b.UniqueIDs() == b.dictionary.PositionCount()
}

func (b *DictionaryBlock) calculateCompactSize() {
	used := make([]bool, b.dictionary.PositionCount())
	unique := 0
	for _, id := range b.IDs() {
		if !used[id] {
			used[id] = true
			unique++
		}
	}
	var size int64
	if unique == len(used) {
		size = b.dictionary.SizeInBytes()
	} else {
		size = b.dictionary.PositionsSizeInBytes(used, unique)
	}
	b.sizeInBytes.Store(size + int64(sizeOfInt32*b.positionCount))
	b.uniqueIDs.Store(int64(unique))
}

func (b *DictionaryBlock) PositionCount() int {
	return b.positionCount
}

func (b *DictionaryBlock) IsNull(position int) bool {
	return b.dictionary.IsNull(b.ID(position))
}

func (b *DictionaryBlock) MayHaveNull() bool {
	return b.positionCount > 0 && b.dictionary.MayHaveNull()
}

func (b *DictionaryBlock) GetBool(position int) bool {
	return b.dictionary.GetBool(b.ID(position))
}

func (b *DictionaryBlock) GetLong(position int) int64 {
	return b.dictionary.GetLong(b.ID(position))
}

func (b *DictionaryBlock) GetDouble(position int) float64 {
	return b.dictionary.GetDouble(b.ID(position))
}

func (b *DictionaryBlock) GetBytes(position int) []byte {
	return b.dictionary.GetBytes(b.ID(position))
}

func (b *DictionaryBlock) GetObject(position int, typ types.T) any {
	return b.dictionary.GetObject(b.ID(position), typ)
}

func (b *DictionaryBlock) SizeInBytes() int64 {
	if size := b.sizeInBytes.Load(); size >= 0 {
		return size
	}
	b.calculateCompactSize()
	return b.sizeInBytes.Load()
}

// RetainedSizeInBytes counts the shared dictionary in full.
func (b *DictionaryBlock) RetainedSizeInBytes() int64 {
	return b.retainedSizeInBytes + b.dictionary.RetainedSizeInBytes()
}

func (b *DictionaryBlock) RegionSizeInBytes(position, length int) int64 {
	checkValidRegion(b.positionCount, position, length)
	if position == 0 && length == b.positionCount {
		return b.SizeInBytes()
	}
	used := make([]bool, b.dictionary.PositionCount())
	unique := 0
	for _, id := range b.ids[b.idsOffset+position : b.idsOffset+position+length] {
		if !used[id] {
			used[id] = true
			unique++
		}
	}
	return b.dictionary.PositionsSizeInBytes(used, unique) + int64(sizeOfInt32*length)
}

func (b *DictionaryBlock) PositionsSizeInBytes(positions []bool, selectedCount int) int64 {
	checkValidPositions(positions, b.positionCount)
	used := make([]bool, b.dictionary.PositionCount())
	unique := 0
	for i, id := range b.IDs() {
		if positions[i] && !used[id] {
			used[id] = true
			unique++
		}
	}
	return b.dictionary.PositionsSizeInBytes(used, unique) + int64(sizeOfInt32*selectedCount)
}

func (b *DictionaryBlock) GetRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	if position == 0 && length == b.positionCount {
		return b
	}
	return newDictionaryBlock(b.idsOffset+position, length, b.dictionary, b.ids, b.sourceID)
}

func (b *DictionaryBlock) CopyRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	ids := make([]int32, length)
	copy(ids, b.ids[b.idsOffset+position:b.idsOffset+position+length])
	return newDictionaryBlock(0, length, b.dictionary, ids, b.sourceID).Compact()
}

// CopyPositions copies the referenced dictionary positions into a new
// dictionary with a new source id.
func (b *DictionaryBlock) CopyPositions(positions []int, offset, length int) Block {
	checkArrayRange(positions, offset, length)
	remap := make(map[int32]int32)
	dictionaryPositions := make([]int, 0, length)
	ids := make([]int32, length)
	for i := 0; i < length; i++ {
		id := int32(b.ID(positions[offset+i]))
		newID, ok := remap[id]
		if !ok {
			newID = int32(len(dictionaryPositions))
			remap[id] = newID
			dictionaryPositions = append(dictionaryPositions, int(id))
		}
		ids[i] = newID
	}
	dictionary := b.dictionary.CopyPositions(dictionaryPositions, 0, len(dictionaryPositions))
	return newDictionaryBlock(0, length, dictionary, ids, NewDictionaryID())
}

func (b *DictionaryBlock) GetSingleValueBlock(position int) Block {
	return b.dictionary.GetSingleValueBlock(b.ID(position))
}

func (b *DictionaryBlock) WritePositionTo(position int, builder Builder) {
	b.dictionary.WritePositionTo(b.ID(position), builder)
}

func (b *DictionaryBlock) EncodingName() string {
	return DictionaryEncoding
}

func (b *DictionaryBlock) Hash(position int) uint64 {
	return b.dictionary.Hash(b.ID(position))
}

func (b *DictionaryBlock) Equal(position int, other Block, otherPosition int) bool {
	if od, ok := other.(*DictionaryBlock); ok && od.sourceID == b.sourceID {
		if b.ID(position) == od.ID(otherPosition) {
			return true
		}
	}
	return b.dictionary.Equal(b.ID(position), other, otherPosition)
}

func (b *DictionaryBlock) IsLoaded() bool {
	return b.dictionary.IsLoaded()
}

func (b *DictionaryBlock) LoadedBlock() Block {
	loaded := b.dictionary.LoadedBlock()
	if loaded == b.dictionary {
		return b
	}
	return newDictionaryBlock(b.idsOffset, b.positionCount, loaded, b.ids, b.sourceID)
}

func (b *DictionaryBlock) appendValue(position int, buf []byte) []byte {
	return b.dictionary.appendValue(int(b.ids[b.idsOffset+position]), buf)
}

// Compact drops the dictionary positions no id references. The result keeps
// the source id when nothing is dropped.
func (b *DictionaryBlock) Compact() *DictionaryBlock {
	if b.IsCompact() {
		return b
	}
	remap := make([]int32, b.dictionary.PositionCount())
	for i := range remap {
		remap[i] = -1
	}
	dictionaryPositions := make([]int, 0, b.UniqueIDs())
	ids := make([]int32, b.positionCount)
	for i, id := range b.IDs() {
		if remap[id] < 0 {
			remap[id] = int32(len(dictionaryPositions))
			dictionaryPositions = append(dictionaryPositions, int(id))
		}
		ids[i] = remap[id]
	}
	dictionary := b.dictionary.CopyPositions(dictionaryPositions, 0, len(dictionaryPositions))
	return newDictionaryBlock(0, b.positionCount, dictionary, ids, NewDictionaryID())
}

// CompactRelated compacts blocks sharing one dictionary onto a single new
// dictionary holding only the positions any of them references. Ids remain
// comparable across the results.
func CompactRelated(blocks []*DictionaryBlock) []*DictionaryBlock {
	if len(blocks) == 0 {
		return nil
	}
	dictionary := blocks[0].dictionary
	sourceID := blocks[0].sourceID
	used := make([]bool, dictionary.PositionCount())
	for _, b := range blocks {
		if b.sourceID != sourceID {
			panic(moerr.NewInvalidArgNoCtx("dictionary source id", b.sourceID.String()))
		}
		for _, id := range b.IDs() {
			used[id] = true
		}
	}
	remap := make([]int32, len(used))
	dictionaryPositions := make([]int, 0, len(used))
	for id, ok := range used {
		remap[id] = -1
		if ok {
			remap[id] = int32(len(dictionaryPositions))
			dictionaryPositions = append(dictionaryPositions, id)
		}
	}
	if len(dictionaryPositions) == len(used) {
		return blocks
	}
	newDictionary := dictionary.CopyPositions(dictionaryPositions, 0, len(dictionaryPositions))
	newSourceID := NewDictionaryID()
	ret := make([]*DictionaryBlock, len(blocks))
	for i, b := range blocks {
		ids := make([]int32, b.positionCount)
		for j, id := range b.IDs() {
			ids[j] = remap[id]
		}
		ret[i] = newDictionaryBlock(0, b.positionCount, newDictionary, ids, newSourceID)
	}
	return ret
}
