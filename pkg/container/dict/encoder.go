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

package dict

import (
	"context"

	hll "github.com/axiomhq/hyperloglog"
	"github.com/dolthub/swiss"
	"go.uber.org/zap"

	"github.com/matrixorigin/moblock/pkg/container/block"
	"github.com/matrixorigin/moblock/pkg/container/page"
	"github.com/matrixorigin/moblock/pkg/container/types"
	"github.com/matrixorigin/moblock/pkg/logutil"
	v2 "github.com/matrixorigin/moblock/pkg/util/metric/v2"
)

const (
	DefaultMaxDistinctRatio = 0.5
	// DefaultMinPositions keeps tiny blocks flat.
	DefaultMinPositions = 16
)

// Encoder rewrites flat blocks with few distinct values as dictionary
// blocks.
type Encoder struct {
	// MaxDistinctRatio is the largest distinct/positions ratio that is
	// still encoded.
	MaxDistinctRatio float64
	MinPositions     int
}

func NewEncoder() *Encoder {
	return &Encoder{
		MaxDistinctRatio: DefaultMaxDistinctRatio,
		MinPositions:     DefaultMinPositions,
	}
}

// Encode returns a dictionary block with the values of b and true, or b and
// false when b is not worth encoding.
func (e *Encoder) Encode(b block.Block) (block.Block, bool) {
	b = b.LoadedBlock()
	if !e.encodable(b) {
		v2.DictEncodeRejectedCounter.Inc()
		return b, false
	}
	n := b.PositionCount()
	limit := int(e.MaxDistinctRatio * float64(n))

	sk := hll.New()
	for i := 0; i < n; i++ {
		sk.Insert(types.EncodeFixed(b.Hash(i)))
	}
	if estimate := sk.Estimate(); estimate > uint64(limit) {
		v2.DictEncodeRejectedCounter.Inc()
		logutil.Debug(context.Background(), "dictionary encode rejected",
			zap.String("encoding", b.EncodingName()),
			zap.Int("positions", n),
			zap.Uint64("estimate", estimate))
		return b, false
	}

	idx := newReverseIndex(b, limit)
	ids := make([]int32, n)
	for i := 0; i < n; i++ {
		id, ok := idx.insert(i)
		if !ok {
			v2.DictEncodeRejectedCounter.Inc()
			return b, false
		}
		ids[i] = id
	}
	dictionary := b.CopyPositions(idx.positions, 0, len(idx.positions))
	v2.DictEncodeAcceptedCounter.Inc()
	return block.NewDictionaryBlock(dictionary, ids), true
}

func (e *Encoder) encodable(b block.Block) bool {
	if b.PositionCount() < e.MinPositions || b.PositionCount() == 0 {
		return false
	}
	switch b.(type) {
	case *block.VariableWidthBlock:
		return true
	case *block.FixedWidthBlock[bool], *block.FixedWidthBlock[int8], *block.FixedWidthBlock[uint8]:
		// one byte values gain nothing from four byte ids
		return false
	}
	return b.EncodingName() == block.ShortArrayEncoding ||
		b.EncodingName() == block.IntArrayEncoding ||
		b.EncodingName() == block.LongArrayEncoding
}

// EncodePage encodes every channel of p that is worth it. It returns p when
// no channel changes.
func (e *Encoder) EncodePage(p *page.Page) *page.Page {
	blocks := make([]block.Block, p.ChannelCount())
	changed := false
	for i := range blocks {
		var ok bool
		blocks[i], ok = e.Encode(p.Block(i))
		changed = changed || ok
	}
	if !changed {
		return p
	}
	return page.NewWithPositionCount(p.PositionCount(), blocks...)
}

// reverseIndex maps the distinct values of a block to dictionary ids. Values
// are bucketed by hash and chained through next on collisions.
type reverseIndex struct {
	b         block.Block
	limit     int
	heads     *swiss.Map[uint64, int32]
	next      []int32
	positions []int
}

func newReverseIndex(b block.Block, limit int) *reverseIndex {
	return &reverseIndex{
		b:         b,
		limit:     limit,
		heads:     swiss.NewMap[uint64, int32](uint32(limit + 1)),
		next:      make([]int32, 0, limit),
		positions: make([]int, 0, limit),
	}
}

// insert returns the id of the value at position, adding it when it is new.
// It fails once the distinct count passes the limit.
func (idx *reverseIndex) insert(position int) (int32, bool) {
	h := idx.b.Hash(position)
	head, ok := idx.heads.Get(h)
	if ok {
		for id := head; id >= 0; id = idx.next[id] {
			if idx.b.Equal(idx.positions[id], idx.b, position) {
				return id, true
			}
		}
	} else {
		head = -1
	}
	if len(idx.positions) >= idx.limit {
		return 0, false
	}
	id := int32(len(idx.positions))
	idx.positions = append(idx.positions, position)
	idx.next = append(idx.next, head)
	idx.heads.Put(h, id)
	return id, true
}
