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

package page

import (
	"fmt"
	"unsafe"

	"go.uber.org/atomic"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/block"
)

var pageInstanceSize = int64(unsafe.Sizeof(Page{}))

// Page is a set of blocks, one per channel, with the same position count.
// A page never changes after construction; every operation returns a new
// page or the receiver.
type Page struct {
	positionCount int
	blocks        []block.Block

	// sizeInBytes is -1 until computed.
	sizeInBytes atomic.Int64
	// retainedSizeInBytes grows when lazy blocks of the page get loaded.
	retainedSizeInBytes atomic.Int64
}

// New takes the position count from the first block. At least one block is
// required, use NewWithPositionCount for pages without channels.
func New(blocks ...block.Block) *Page {
	if len(blocks) == 0 {
		panic(moerr.NewInvalidArgNoCtx("page channel count", 0))
	}
	return NewWithPositionCount(blocks[0].PositionCount(), blocks...)
}

func NewWithPositionCount(positionCount int, blocks ...block.Block) *Page {
	if positionCount < 0 {
		panic(moerr.NewInvalidArgNoCtx("page position count", positionCount))
	}
	for i, b := range blocks {
		if b.PositionCount() != positionCount {
			panic(moerr.NewInvalidArgNoCtx(
				fmt.Sprintf("position count of channel %d, expected %d", i, positionCount),
				b.PositionCount()))
		}
	}
	return newPage(positionCount, blocks)
}

// newPage takes ownership of blocks.
func newPage(positionCount int, blocks []block.Block) *Page {
	p := &Page{
		positionCount: positionCount,
		blocks:        blocks,
	}
	p.sizeInBytes.Store(-1)
	retained := pageInstanceSize
	for _, b := range blocks {
		retained += b.RetainedSizeInBytes()
		block.ListenForLoads(b, func(loaded block.Block) {
			p.retainedSizeInBytes.Add(loaded.RetainedSizeInBytes())
		})
	}
	p.retainedSizeInBytes.Store(retained)
	return p
}

func (p *Page) PositionCount() int {
	return p.positionCount
}

func (p *Page) ChannelCount() int {
	return len(p.blocks)
}

func (p *Page) Block(channel int) block.Block {
	p.checkChannel(channel)
	return p.blocks[channel]
}

func (p *Page) checkChannel(channel int) {
	if channel < 0 || channel >= len(p.blocks) {
		panic(moerr.NewOutOfRangeNoCtx("channel", "%d is not in [0, %d)", channel, len(p.blocks)))
	}
}

// SizeInBytes loads every lazy block of the page.
func (p *Page) SizeInBytes() int64 {
	if size := p.sizeInBytes.Load(); size >= 0 {
		return size
	}
	var size int64
	for _, b := range p.blocks {
		size += b.SizeInBytes()
	}
	p.sizeInBytes.Store(size)
	return size
}

func (p *Page) RetainedSizeInBytes() int64 {
	return p.retainedSizeInBytes.Load()
}

// GetRegion returns a page of views over the blocks of the receiver.
func (p *Page) GetRegion(position, length int) *Page {
	if position < 0 || length < 0 || position+length > p.positionCount {
		panic(moerr.NewOutOfRangeNoCtx("page region", "position %d length %d is not in [0, %d]",
			position, length, p.positionCount))
	}
	if position == 0 && length == p.positionCount {
		return p
	}
	blocks := make([]block.Block, len(p.blocks))
	for i, b := range p.blocks {
		blocks[i] = b.GetRegion(position, length)
	}
	return newPage(length, blocks)
}

func (p *Page) CopyPositions(positions []int, offset, length int) *Page {
	blocks := make([]block.Block, len(p.blocks))
	for i, b := range p.blocks {
		blocks[i] = b.CopyPositions(positions, offset, length)
	}
	if len(blocks) == 0 {
		if offset < 0 || length < 0 || offset+length > len(positions) {
			panic(moerr.NewOutOfRangeNoCtx("positions", "offset %d length %d is not in [0, %d]",
				offset, length, len(positions)))
		}
	}
	return newPage(length, blocks)
}

// GetColumns returns a page with the given channels, in that order.
func (p *Page) GetColumns(channels ...int) *Page {
	blocks := make([]block.Block, len(channels))
	for i, channel := range channels {
		p.checkChannel(channel)
		blocks[i] = p.blocks[channel]
	}
	return newPage(p.positionCount, blocks)
}

func (p *Page) AppendColumn(b block.Block) *Page {
	p.checkColumn(b)
	blocks := make([]block.Block, len(p.blocks)+1)
	copy(blocks, p.blocks)
	blocks[len(p.blocks)] = b
	return newPage(p.positionCount, blocks)
}

func (p *Page) PrependColumn(b block.Block) *Page {
	p.checkColumn(b)
	blocks := make([]block.Block, len(p.blocks)+1)
	blocks[0] = b
	copy(blocks[1:], p.blocks)
	return newPage(p.positionCount, blocks)
}

func (p *Page) checkColumn(b block.Block) {
	if b.PositionCount() != p.positionCount {
		panic(moerr.NewInvalidArgNoCtx(
			fmt.Sprintf("column position count, expected %d", p.positionCount),
			b.PositionCount()))
	}
}

// SingleValuePage returns a one position page holding position.
func (p *Page) SingleValuePage(position int) *Page {
	blocks := make([]block.Block, len(p.blocks))
	for i, b := range p.blocks {
		blocks[i] = b.GetSingleValueBlock(position)
	}
	if len(blocks) == 0 && (position < 0 || position >= p.positionCount) {
		panic(moerr.NewOutOfRangeNoCtx("position", "%d is not in [0, %d)", position, p.positionCount))
	}
	return newPage(1, blocks)
}

// LoadedPage returns a page without lazy blocks at any depth.
func (p *Page) LoadedPage() *Page {
	var blocks []block.Block
	for i, b := range p.blocks {
		loaded := b.LoadedBlock()
		if loaded == b {
			continue
		}
		if blocks == nil {
			blocks = make([]block.Block, len(p.blocks))
			copy(blocks, p.blocks)
		}
		blocks[i] = loaded
	}
	if blocks == nil {
		return p
	}
	return newPage(p.positionCount, blocks)
}

// Compact drops the storage not referenced by any position. Dictionary
// blocks sharing a source are compacted onto one dictionary. Lazy blocks are
// loaded.
func (p *Page) Compact() *Page {
	if p.RetainedSizeInBytes() <= p.SizeInBytes() {
		return p
	}
	changed := false
	blocks := make([]block.Block, len(p.blocks))
	related := make(map[block.DictionaryID][]int)
	var order []block.DictionaryID
	for i, b := range p.blocks {
		switch v := b.(type) {
		case *block.DictionaryBlock:
			id := v.DictionaryID()
			if _, ok := related[id]; !ok {
				order = append(order, id)
			}
			related[id] = append(related[id], i)
		case *block.RunLengthEncodedBlock:
			blocks[i] = b
			if value := v.Value().CopyRegion(0, 1); value != v.Value() {
				blocks[i] = block.NewRLE(value, v.PositionCount())
				changed = true
			}
		default:
			blocks[i] = b.CopyRegion(0, b.PositionCount())
			changed = changed || blocks[i] != b
		}
	}
	for _, id := range order {
		channels := related[id]
		dictionaryBlocks := make([]*block.DictionaryBlock, len(channels))
		for j, channel := range channels {
			dictionaryBlocks[j] = p.blocks[channel].(*block.DictionaryBlock)
		}
		for j, compacted := range block.CompactRelated(dictionaryBlocks) {
			blocks[channels[j]] = compacted
			changed = changed || compacted != dictionaryBlocks[j]
		}
	}
	if !changed {
		return p
	}
	return newPage(p.positionCount, blocks)
}

func (p *Page) String() string {
	return fmt.Sprintf("Page{positions=%d, channels=%d}", p.positionCount, len(p.blocks))
}
