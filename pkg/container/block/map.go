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
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

var mapInstanceSize = int64(unsafe.Sizeof(MapBlock{}))

// mapSizePerPosition is one offset and one null flag.
const mapSizePerPosition = sizeOfInt32 + sizeOfByte

// MapBlock stores the entries of all maps in one key block and one value
// block. Entries of position i are [offsets[startOffset+i],
// offsets[startOffset+i+1]). A null map has no entries.
//
// hashTables holds HashMultiplier slots per entry. The slots of entry e are
// hashTables[e*HashMultiplier:(e+1)*HashMultiplier] and together the slots of
// one map form an open addressing table of that map's keys.
type MapBlock struct {
	mapType       types.Type
	startOffset   int
	positionCount int
	mapIsNull     []bool
	offsets       []int32
	keyBlock      Block
	valueBlock    Block
	hashTables    []int32

	retainedSizeInBytes int64
	sizeInBytes         atomic.Int64
}

// NewMapBlock builds the hash tables of the maps described by offsets over
// keyBlock and valueBlock. It panics on null or duplicate keys.
func NewMapBlock(mapType types.Type, mapIsNull []bool, offsets []int32, keyBlock, valueBlock Block) *MapBlock {
	if mapType.Oid != types.T_map {
		panic(moerr.NewInvalidArgNoCtx("map type", mapType.String()))
	}
	positionCount := len(offsets) - 1
	if positionCount < 0 {
		panic(moerr.NewInvalidArgNoCtx("offsets length", len(offsets)))
	}
	validateOffsets(offsets, mapIsNull, positionCount, keyBlock.PositionCount())
	if valueBlock.PositionCount() != keyBlock.PositionCount() {
		panic(moerr.NewInvalidArgNoCtx("map value count", valueBlock.PositionCount()))
	}
	hashTables := make([]int32, int(offsets[positionCount])*HashMultiplier)
	for i := 0; i < positionCount; i++ {
		start, end := int(offsets[i]), int(offsets[i+1])
		buildHashTable(keyBlock, start, end-start, hashTables[start*HashMultiplier:end*HashMultiplier])
	}
	return newMapBlock(mapType, 0, positionCount, mapIsNull, offsets, keyBlock, valueBlock, hashTables)
}

// validateOffsets checks that offsets are non decreasing, stay within the
// entry count and that null positions are empty.
func validateOffsets(offsets []int32, isNull []bool, positionCount, entryCount int) {
	if isNull != nil && len(isNull) < positionCount {
		panic(moerr.NewInvalidArgNoCtx("isNull length", len(isNull)))
	}
	if offsets[0] < 0 {
		panic(moerr.NewInvalidArgNoCtx("offset", offsets[0]))
	}
	for i := 0; i < positionCount; i++ {
		if offsets[i+1] < offsets[i] {
			panic(moerr.NewInvalidArgNoCtx("offset", offsets[i+1]))
		}
		if isNull != nil && isNull[i] && offsets[i+1] != offsets[i] {
			panic(moerr.NewInvalidArgNoCtx("entries of null position", i))
		}
	}
	if int(offsets[positionCount]) > entryCount {
		panic(moerr.NewInvalidArgNoCtx("entry count", entryCount))
	}
}

func newMapBlock(
	mapType types.Type,
	startOffset, positionCount int,
	mapIsNull []bool,
	offsets []int32,
	keyBlock, valueBlock Block,
	hashTables []int32,
) *MapBlock {
	checkNonNegative("startOffset", startOffset)
	checkNonNegative("positionCount", positionCount)
	if len(offsets)-startOffset < positionCount+1 {
		panic(moerr.NewInvalidArgNoCtx("offsets length", len(offsets)))
	}
	if mapIsNull != nil && len(mapIsNull)-startOffset < positionCount {
		panic(moerr.NewInvalidArgNoCtx("isNull length", len(mapIsNull)))
	}
	if len(hashTables) < int(offsets[startOffset+positionCount])*HashMultiplier {
		panic(moerr.NewInvalidArgNoCtx("hash table length", len(hashTables)))
	}
	b := &MapBlock{
		mapType:       mapType,
		startOffset:   startOffset,
		positionCount: positionCount,
		mapIsNull:     mapIsNull,
		offsets:       offsets,
		keyBlock:      keyBlock,
		valueBlock:    valueBlock,
		hashTables:    hashTables,
	}
	b.retainedSizeInBytes = mapInstanceSize + int64(cap(offsets)*sizeOfInt32) +
		int64(cap(mapIsNull)) + int64(cap(hashTables)*sizeOfInt32)
	b.sizeInBytes.Store(-1)
	return b
}

func (b *MapBlock) Type() types.Type {
	return b.mapType
}

func (b *MapBlock) entryStart(position int) int {
	return int(b.offsets[b.startOffset+position])
}

func (b *MapBlock) entryEnd(position int) int {
	return int(b.offsets[b.startOffset+position+1])
}

// EntryCount is the number of key value pairs of the map at position.
func (b *MapBlock) EntryCount(position int) int {
	checkValidPosition(position, b.positionCount)
	return b.entryEnd(position) - b.entryStart(position)
}

// Offsets returns the entry offsets rebased to start at zero.
func (b *MapBlock) Offsets() []int32 {
	start := b.entryStart(0)
	offsets := make([]int32, b.positionCount+1)
	for i := range offsets {
		offsets[i] = int32(b.entryStart(i) - start)
	}
	return offsets
}

// Keys returns the keys of every entry of the block.
func (b *MapBlock) Keys() Block {
	start := b.entryStart(0)
	return b.keyBlock.GetRegion(start, b.entryStart(b.positionCount)-start)
}

func (b *MapBlock) Values() Block {
	start := b.entryStart(0)
	return b.valueBlock.GetRegion(start, b.entryStart(b.positionCount)-start)
}

// HashTables returns the hash slots of every entry of the block.
func (b *MapBlock) HashTables() []int32 {
	return b.hashTables[b.entryStart(0)*HashMultiplier : b.entryStart(b.positionCount)*HashMultiplier]
}

func (b *MapBlock) Nulls() []bool {
	if b.mapIsNull == nil {
		return nil
	}
	return b.mapIsNull[b.startOffset : b.startOffset+b.positionCount]
}

func (b *MapBlock) PositionCount() int {
	return b.positionCount
}

func (b *MapBlock) IsNull(position int) bool {
	checkValidPosition(position, b.positionCount)
	return b.mapIsNull != nil && b.mapIsNull[b.startOffset+position]
}

func (b *MapBlock) MayHaveNull() bool {
	return b.mapIsNull != nil
}

func (b *MapBlock) GetBool(int) bool {
	panic(unsupported("GetBool", b))
}

func (b *MapBlock) GetLong(int) int64 {
	panic(unsupported("GetLong", b))
}

func (b *MapBlock) GetDouble(int) float64 {
	panic(unsupported("GetDouble", b))
}

func (b *MapBlock) GetBytes(int) []byte {
	panic(unsupported("GetBytes", b))
}

// GetObject returns a *SingleMap view of the map at position.
func (b *MapBlock) GetObject(position int, typ types.T) any {
	if typ != types.T_map {
		panic(badObjectType(b, typ))
	}
	if b.IsNull(position) {
		return nil
	}
	start := b.entryStart(position)
	return &SingleMap{
		block:  b,
		offset: start,
		count:  b.entryEnd(position) - start,
	}
}

func (b *MapBlock) SizeInBytes() int64 {
	if size := b.sizeInBytes.Load(); size >= 0 {
		return size
	}
	size := b.regionSize(0, b.positionCount)
	b.sizeInBytes.Store(size)
	return size
}

func (b *MapBlock) RetainedSizeInBytes() int64 {
	return b.retainedSizeInBytes + b.keyBlock.RetainedSizeInBytes() + b.valueBlock.RetainedSizeInBytes()
}

func (b *MapBlock) RegionSizeInBytes(position, length int) int64 {
	checkValidRegion(b.positionCount, position, length)
	return b.regionSize(position, length)
}

func (b *MapBlock) regionSize(position, length int) int64 {
	start := b.entryStart(position)
	entries := b.entryStart(position+length) - start
	return b.keyBlock.RegionSizeInBytes(start, entries) +
		b.valueBlock.RegionSizeInBytes(start, entries) +
		int64(mapSizePerPosition*length) +
		int64(sizeOfInt32*HashMultiplier*entries)
}

func (b *MapBlock) PositionsSizeInBytes(used []bool, selectedCount int) int64 {
	checkValidPositions(used, b.positionCount)
	entryUsed := make([]bool, b.keyBlock.PositionCount())
	entries := 0
	for i := 0; i < b.positionCount; i++ {
		if !used[i] {
			continue
		}
		for e := b.entryStart(i); e < b.entryEnd(i); e++ {
			entryUsed[e] = true
			entries++
		}
	}
	return b.keyBlock.PositionsSizeInBytes(entryUsed, entries) +
		b.valueBlock.PositionsSizeInBytes(entryUsed, entries) +
		int64(mapSizePerPosition*selectedCount) +
		int64(sizeOfInt32*HashMultiplier*entries)
}

func (b *MapBlock) GetRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	return newMapBlock(b.mapType, b.startOffset+position, length,
		b.mapIsNull, b.offsets, b.keyBlock, b.valueBlock, b.hashTables)
}

func (b *MapBlock) CopyRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	start := b.entryStart(position)
	entries := b.entryStart(position+length) - start
	keys := b.keyBlock.CopyRegion(start, entries)
	values := b.valueBlock.CopyRegion(start, entries)
	if b.startOffset+position == 0 && start == 0 &&
		keys == b.keyBlock && values == b.valueBlock &&
		len(b.offsets) == length+1 && len(b.hashTables) == entries*HashMultiplier &&
		(b.mapIsNull == nil || len(b.mapIsNull) == length) {
		return b
	}
	offsets := make([]int32, length+1)
	for i := 1; i <= length; i++ {
		offsets[i] = int32(b.entryStart(position+i) - start)
	}
	hashTables := make([]int32, entries*HashMultiplier)
	copy(hashTables, b.hashTables[start*HashMultiplier:])
	var mapIsNull []bool
	if anyTrue(b.mapIsNull, b.startOffset+position, length) {
		mapIsNull = compactBools(b.mapIsNull, b.startOffset+position, length)
	}
	return newMapBlock(b.mapType, 0, length, mapIsNull, offsets, keys, values, hashTables)
}

// CopyPositions copies the entries of each position and their hash slots.
// Relative key indexes keep the copied slots valid.
func (b *MapBlock) CopyPositions(positions []int, offset, length int) Block {
	checkArrayRange(positions, offset, length)
	offsets := make([]int32, length+1)
	var mapIsNull []bool
	entryPositions := make([]int, 0, length)
	hashTables := make([]int32, 0, length*HashMultiplier)
	for i := 0; i < length; i++ {
		position := positions[offset+i]
		checkValidPosition(position, b.positionCount)
		if b.mapIsNull != nil && b.mapIsNull[b.startOffset+position] {
			if mapIsNull == nil {
				mapIsNull = make([]bool, length)
			}
			mapIsNull[i] = true
		} else {
			start, end := b.entryStart(position), b.entryEnd(position)
			for e := start; e < end; e++ {
				entryPositions = append(entryPositions, e)
			}
			hashTables = append(hashTables, b.hashTables[start*HashMultiplier:end*HashMultiplier]...)
		}
		offsets[i+1] = int32(len(entryPositions))
	}
	keys := b.keyBlock.CopyPositions(entryPositions, 0, len(entryPositions))
	values := b.valueBlock.CopyPositions(entryPositions, 0, len(entryPositions))
	return newMapBlock(b.mapType, 0, length, mapIsNull, offsets, keys, values, hashTables)
}

func (b *MapBlock) GetSingleValueBlock(position int) Block {
	checkValidPosition(position, b.positionCount)
	return b.CopyPositions([]int{position}, 0, 1)
}

func (b *MapBlock) WritePositionTo(position int, builder Builder) {
	mb, ok := builder.(*MapBuilder)
	if !ok {
		panic(badBuilder(b, builder))
	}
	if b.IsNull(position) {
		mb.AppendNull()
		return
	}
	start, end := b.entryStart(position), b.entryEnd(position)
	mb.BuildEntry(func(keys, values Builder) {
		for e := start; e < end; e++ {
			b.keyBlock.WritePositionTo(e, keys)
			b.valueBlock.WritePositionTo(e, values)
		}
	})
}

func (b *MapBlock) EncodingName() string {
	return MapEncoding
}

func (b *MapBlock) Hash(position int) uint64 {
	return hashPosition(b, position)
}

// Equal compares entries in order.
func (b *MapBlock) Equal(position int, other Block, otherPosition int) bool {
	return equalPositions(b, position, other, otherPosition)
}

func (b *MapBlock) IsLoaded() bool {
	return b.keyBlock.IsLoaded() && b.valueBlock.IsLoaded()
}

func (b *MapBlock) LoadedBlock() Block {
	if b.IsLoaded() {
		return b
	}
	return newMapBlock(b.mapType, b.startOffset, b.positionCount, b.mapIsNull, b.offsets,
		b.keyBlock.LoadedBlock(), b.valueBlock.LoadedBlock(), b.hashTables)
}

func (b *MapBlock) appendValue(position int, buf []byte) []byte {
	start, end := b.entryStart(position), b.entryEnd(position)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(end-start))
	for e := start; e < end; e++ {
		buf = appendNested(buf, b.keyBlock, e)
		buf = appendNested(buf, b.valueBlock, e)
	}
	return buf
}

// SingleMap is a view of one map of a MapBlock.
type SingleMap struct {
	block  *MapBlock
	offset int
	count  int
}

// Len is the number of entries.
func (m *SingleMap) Len() int {
	return m.count
}

func (m *SingleMap) Keys() Block {
	return m.block.keyBlock.GetRegion(m.offset, m.count)
}

func (m *SingleMap) Values() Block {
	return m.block.valueBlock.GetRegion(m.offset, m.count)
}

func (m *SingleMap) hashTable() []int32 {
	return m.block.hashTables[m.offset*HashMultiplier : (m.offset+m.count)*HashMultiplier]
}

// SeekKey returns the entry index whose key equals key at position, or -1.
// The value is Values() at that index.
func (m *SingleMap) SeekKey(key Block, position int) int {
	if key.IsNull(position) {
		return -1
	}
	keys := m.block.keyBlock
	return seekHashTable(m.hashTable(), key.Hash(position), func(index int) bool {
		return keys.Equal(m.offset+index, key, position)
	})
}

// SeekLong looks up an integer, date or timestamp key.
func (m *SingleMap) SeekLong(v int64) int {
	keyType := m.block.mapType.KeyType()
	width := keyType.Oid.TypeLen()
	if width == 0 || keyType.Oid == types.T_bool || keyType.Oid.IsFloat() {
		panic(moerr.NewNotSupportedNoCtx("SeekLong on %s keys", keyType))
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return m.seekCanonical(buf[:width])
}

// SeekBytes looks up a string key.
func (m *SingleMap) SeekBytes(v []byte) int {
	keyType := m.block.mapType.KeyType()
	if keyType.Oid.FixedLength() >= 0 {
		panic(moerr.NewNotSupportedNoCtx("SeekBytes on %s keys", keyType))
	}
	return m.seekCanonical(v)
}

func (m *SingleMap) seekCanonical(key []byte) int {
	keys := m.block.keyBlock
	var buf [16]byte
	return seekHashTable(m.hashTable(), xxhash.Sum64(key), func(index int) bool {
		return bytes.Equal(keys.appendValue(m.offset+index, buf[:0]), key)
	})
}
