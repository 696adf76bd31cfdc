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
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
)

const (
	// DefaultCapacity is the smallest size an array grows to after the
	// first allocation.
	DefaultCapacity = 64
	// MaxArraySize bounds every backing slice of a builder.
	MaxArraySize = math.MaxInt32 - 8

	blockResetSkew = 1.25

	sizeOfByte  = 1
	sizeOfInt32 = 4

	// nullHash is the hash of every null position.
	nullHash uint64 = 0
)

// CalculateNewArraySize grows current by half, never below DefaultCapacity.
func CalculateNewArraySize(current int) int {
	newSize := current + current>>1
	if newSize < DefaultCapacity {
		newSize = DefaultCapacity
	} else if newSize > MaxArraySize {
		if current == MaxArraySize {
			panic(moerr.NewSizeOverflowNoCtx("cannot grow array beyond %d", MaxArraySize))
		}
		newSize = MaxArraySize
	}
	return newSize
}

// CalculateBlockResetSize is the expected entry count of a builder created
// to replace one that held currentSize positions.
func CalculateBlockResetSize(currentSize int) int {
	newSize := int64(math.Ceil(float64(currentSize) * blockResetSkew))
	if newSize > MaxArraySize {
		return MaxArraySize
	}
	if newSize < 1 {
		return 1
	}
	return int(newSize)
}

func checkValidPosition(position, positionCount int) {
	if position < 0 || position >= positionCount {
		panic(moerr.NewOutOfRangeNoCtx("position", "%d is not in [0, %d)", position, positionCount))
	}
}

func checkValidRegion(positionCount, position, length int) {
	if position < 0 || length < 0 || position+length > positionCount {
		panic(moerr.NewOutOfRangeNoCtx("region", "position %d length %d is not in [0, %d]", position, length, positionCount))
	}
}

func checkArrayRange(positions []int, offset, length int) {
	if offset < 0 || length < 0 || offset+length > len(positions) {
		panic(moerr.NewOutOfRangeNoCtx("positions", "offset %d length %d is not in [0, %d]", offset, length, len(positions)))
	}
}

func checkValidPositions(used []bool, positionCount int) {
	if len(used) < positionCount {
		panic(moerr.NewInvalidArgNoCtx("used positions length", len(used)))
	}
}

func checkNonNegative(name string, v int) {
	if v < 0 {
		panic(moerr.NewInvalidArgNoCtx(name, v))
	}
}

func checkNonNegativeSize(name string, v int64) {
	if v < 0 {
		panic(moerr.NewInvalidArgNoCtx(name, v))
	}
}

func unsupported(op string, b Block) *moerr.Error {
	return moerr.NewNotSupportedNoCtx("%s on %s block", op, b.EncodingName())
}

func badObjectType(b Block, typ interface{ String() string }) *moerr.Error {
	return moerr.NewInvalidArgNoCtx("GetObject target type of "+b.EncodingName()+" block", typ.String())
}

func badBuilder(b Block, builder Builder) *moerr.Error {
	return moerr.NewInvalidArgNoCtx("builder for "+b.EncodingName()+" block", fmt.Sprintf("%T", builder))
}

// compactBools copies flags[offset:offset+length], keeping nil as nil.
func compactBools(flags []bool, offset, length int) []bool {
	if flags == nil {
		return nil
	}
	ret := make([]bool, length)
	copy(ret, flags[offset:offset+length])
	return ret
}

func anyTrue(flags []bool, offset, length int) bool {
	if flags == nil {
		return false
	}
	for _, f := range flags[offset : offset+length] {
		if f {
			return true
		}
	}
	return false
}

func hashPosition(b Block, position int) uint64 {
	if b.IsNull(position) {
		return nullHash
	}
	var buf [16]byte
	return xxhash.Sum64(b.appendValue(position, buf[:0]))
}

func equalPositions(left Block, leftPosition int, right Block, rightPosition int) bool {
	leftNull := left.IsNull(leftPosition)
	rightNull := right.IsNull(rightPosition)
	if leftNull || rightNull {
		return leftNull == rightNull
	}
	var lbuf, rbuf [16]byte
	return bytes.Equal(left.appendValue(leftPosition, lbuf[:0]), right.appendValue(rightPosition, rbuf[:0]))
}

// appendNested appends a null marker or a length prefixed canonical value so
// that nested values compare element by element.
func appendNested(buf []byte, b Block, position int) []byte {
	if b.IsNull(position) {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	lenAt := len(buf)
	buf = append(buf, 0, 0, 0, 0)
	buf = b.appendValue(position, buf)
	binary.LittleEndian.PutUint32(buf[lenAt:], uint32(len(buf)-lenAt-4))
	return buf
}
