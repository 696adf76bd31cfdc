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
	"github.com/matrixorigin/moblock/pkg/common/moerr"
)

// HashMultiplier is the number of hash slots per map entry.
const HashMultiplier = 2

// emptySlot marks a free hash slot.
const emptySlot int32 = -1

// buildHashTable fills hashTable, which has HashMultiplier slots per key, with
// the keys keyBlock[keyOffset:keyOffset+keyCount] of one map. Slots hold key
// indexes relative to keyOffset so the table stays valid when the entries
// move together.
func buildHashTable(keyBlock Block, keyOffset, keyCount int, hashTable []int32) {
	if len(hashTable) != keyCount*HashMultiplier {
		panic(moerr.NewInternalErrorNoCtx("hash table has %d slots for %d keys", len(hashTable), keyCount))
	}
	for i := range hashTable {
		hashTable[i] = emptySlot
	}
	slots := uint64(len(hashTable))
	for i := 0; i < keyCount; i++ {
		key := keyOffset + i
		if keyBlock.IsNull(key) {
			panic(moerr.NewInvalidArgNoCtx("map key", "null"))
		}
		slot := int(keyBlock.Hash(key) % slots)
		for {
			index := hashTable[slot]
			if index == emptySlot {
				hashTable[slot] = int32(i)
				break
			}
			if keyBlock.Equal(keyOffset+int(index), keyBlock, key) {
				panic(moerr.NewInvalidArgNoCtx("duplicate map key at entry", i))
			}
			slot++
			if slot == len(hashTable) {
				slot = 0
			}
		}
	}
}

// seekHashTable returns the relative index of the key matching hash and
// match, or -1.
func seekHashTable(hashTable []int32, hash uint64, match func(index int) bool) int {
	if len(hashTable) == 0 {
		return -1
	}
	slot := int(hash % uint64(len(hashTable)))
	for range hashTable {
		index := hashTable[slot]
		if index == emptySlot {
			return -1
		}
		if match(int(index)) {
			return int(index)
		}
		slot++
		if slot == len(hashTable) {
			slot = 0
		}
	}
	return -1
}
