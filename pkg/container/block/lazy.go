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

//go:generate mockgen -source=lazy.go -destination=mock_block/loader.go -package=mock_block

package block

import (
	"context"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/types"
	"github.com/matrixorigin/moblock/pkg/logutil"
	v2 "github.com/matrixorigin/moblock/pkg/util/metric/v2"
)

// LazyLoader produces the block behind a LazyBlock. Load is called at most
// once.
type LazyLoader interface {
	Load() (Block, error)
}

// LoaderFunc adapts a function to a LazyLoader.
type LoaderFunc func() (Block, error)

func (f LoaderFunc) Load() (Block, error) {
	return f()
}

// Generation is a monotonic counter owned by a reader. The reader advances
// it when it moves past the page its lazy blocks belong to.
type Generation struct {
	v atomic.Uint64
}

func (g *Generation) Advance() uint64 {
	return g.v.Inc()
}

func (g *Generation) Current() uint64 {
	return g.v.Load()
}

var lazyInstanceSize = int64(unsafe.Sizeof(LazyBlock{}))

// LazyBlock defers the production of its block until the first access.
//
// Load may be called once. Accessors load on demand and share the loaded
// block, so a Load after an accessor fails with ErrLazyBlockAlreadyLoaded.
// When a Generation is attached, loading fails with ErrLazyBlockStale once
// the generation has moved past the one captured at construction.
type LazyBlock struct {
	positionCount int

	mu         sync.Mutex
	loader     LazyLoader
	generation *Generation
	expected   uint64
	block      Block
	listeners  []func(Block)
}

func NewLazyBlock(positionCount int, loader LazyLoader) *LazyBlock {
	checkNonNegative("positionCount", positionCount)
	return &LazyBlock{positionCount: positionCount, loader: loader}
}

// NewLazyBlockWithGeneration captures the current value of generation.
func NewLazyBlockWithGeneration(positionCount int, loader LazyLoader, generation *Generation) *LazyBlock {
	b := NewLazyBlock(positionCount, loader)
	b.generation = generation
	b.expected = generation.Current()
	return b
}

// Load materializes the block. It fails if the block was loaded before or
// if the generation advanced.
func (b *LazyBlock) Load() (Block, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.block != nil {
		v2.LazyBlockLoadAlreadyLoadedCounter.Inc()
		return nil, moerr.NewLazyBlockAlreadyLoadedNoCtx()
	}
	if err := b.loadLocked(); err != nil {
		return nil, err
	}
	return b.block, nil
}

// IsLoaded reports whether this block and everything below it is loaded.
func (b *LazyBlock) IsLoaded() bool {
	b.mu.Lock()
	block := b.block
	b.mu.Unlock()
	return block != nil && block.IsLoaded()
}

// Block returns the loaded block, loading it if needed.
func (b *LazyBlock) Block() Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.block == nil {
		if err := b.loadLocked(); err != nil {
			panic(err)
		}
	}
	return b.block
}

func (b *LazyBlock) LoadedBlock() Block {
	return b.Block().LoadedBlock()
}

func (b *LazyBlock) loadLocked() error {
	if b.generation != nil {
		if current := b.generation.Current(); current != b.expected {
			v2.LazyBlockLoadStaleCounter.Inc()
			return moerr.NewLazyBlockStaleNoCtx(b.expected, current)
		}
	}
	start := time.Now()
	block, err := b.loader.Load()
	if err == nil {
		if inner, ok := block.(*LazyBlock); ok {
			block, err = inner.getBlock()
		}
	}
	if err != nil {
		v2.LazyBlockLoadFailedCounter.Inc()
		logutil.Warn(context.Background(), "lazy block load failed",
			zap.Int("positions", b.positionCount),
			zap.Error(err))
		return moerr.ConvertGoError(context.Background(), err)
	}
	if block.PositionCount() != b.positionCount {
		v2.LazyBlockLoadFailedCounter.Inc()
		return moerr.NewInvalidStateNoCtx("loaded block has %d positions, expected %d",
			block.PositionCount(), b.positionCount)
	}
	v2.LazyBlockLoadDurationHistogram.Observe(time.Since(start).Seconds())
	v2.LazyBlockLoadSuccessCounter.Inc()

	b.block = block
	b.loader = nil
	listeners := b.listeners
	b.listeners = nil
	for _, listener := range listeners {
		listener(block)
	}
	return nil
}

// getBlock is Block without the panic.
func (b *LazyBlock) getBlock() (Block, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.block == nil {
		if err := b.loadLocked(); err != nil {
			return nil, err
		}
	}
	return b.block, nil
}

func (b *LazyBlock) addListener(listener func(Block)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.block != nil {
		return false
	}
	b.listeners = append(b.listeners, listener)
	return true
}

// ListenForLoads calls listener with the loaded block when block, a lazy
// block not yet loaded, gets loaded. Nothing happens for other blocks.
// The listener runs while the lazy block is locked and must not call it.
func ListenForLoads(block Block, listener func(Block)) {
	if lazy, ok := block.(*LazyBlock); ok {
		lazy.addListener(listener)
	}
}

func (b *LazyBlock) PositionCount() int {
	return b.positionCount
}

func (b *LazyBlock) IsNull(position int) bool {
	return b.Block().IsNull(position)
}

func (b *LazyBlock) MayHaveNull() bool {
	return b.Block().MayHaveNull()
}

func (b *LazyBlock) GetBool(position int) bool {
	return b.Block().GetBool(position)
}

func (b *LazyBlock) GetLong(position int) int64 {
	return b.Block().GetLong(position)
}

func (b *LazyBlock) GetDouble(position int) float64 {
	return b.Block().GetDouble(position)
}

func (b *LazyBlock) GetBytes(position int) []byte {
	return b.Block().GetBytes(position)
}

func (b *LazyBlock) GetObject(position int, typ types.T) any {
	return b.Block().GetObject(position, typ)
}

func (b *LazyBlock) SizeInBytes() int64 {
	return b.Block().SizeInBytes()
}

// RetainedSizeInBytes is the size of the wrapper until the block is loaded.
func (b *LazyBlock) RetainedSizeInBytes() int64 {
	b.mu.Lock()
	block := b.block
	b.mu.Unlock()
	if block == nil {
		return lazyInstanceSize
	}
	return lazyInstanceSize + block.RetainedSizeInBytes()
}

func (b *LazyBlock) RegionSizeInBytes(position, length int) int64 {
	return b.Block().RegionSizeInBytes(position, length)
}

func (b *LazyBlock) PositionsSizeInBytes(used []bool, selectedCount int) int64 {
	return b.Block().PositionsSizeInBytes(used, selectedCount)
}

// GetRegion stays lazy when the block is not loaded yet.
func (b *LazyBlock) GetRegion(position, length int) Block {
	checkValidRegion(b.positionCount, position, length)
	b.mu.Lock()
	block := b.block
	b.mu.Unlock()
	if block != nil {
		return block.GetRegion(position, length)
	}
	region := NewLazyBlock(length, LoaderFunc(func() (Block, error) {
		block, err := b.getBlock()
		if err != nil {
			return nil, err
		}
		return block.GetRegion(position, length), nil
	}))
	return region
}

func (b *LazyBlock) CopyRegion(position, length int) Block {
	return b.Block().CopyRegion(position, length)
}

func (b *LazyBlock) CopyPositions(positions []int, offset, length int) Block {
	return b.Block().CopyPositions(positions, offset, length)
}

func (b *LazyBlock) GetSingleValueBlock(position int) Block {
	return b.Block().GetSingleValueBlock(position)
}

func (b *LazyBlock) WritePositionTo(position int, builder Builder) {
	b.Block().WritePositionTo(position, builder)
}

func (b *LazyBlock) EncodingName() string {
	return LazyEncoding
}

func (b *LazyBlock) Hash(position int) uint64 {
	return b.Block().Hash(position)
}

func (b *LazyBlock) Equal(position int, other Block, otherPosition int) bool {
	return b.Block().Equal(position, other, otherPosition)
}

func (b *LazyBlock) appendValue(position int, buf []byte) []byte {
	return b.Block().appendValue(position, buf)
}
