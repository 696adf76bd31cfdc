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
	"unsafe"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/config"
	"github.com/matrixorigin/moblock/pkg/container/block"
	"github.com/matrixorigin/moblock/pkg/container/types"
	v2 "github.com/matrixorigin/moblock/pkg/util/metric/v2"
)

// Builder accumulates rows into one block builder per channel. Callers
// append one value to every channel builder and then declare the position.
// All channel builders report to one PageBuilderStatus, so IsFull tracks the
// page size limit.
type Builder struct {
	cfg      config.BlockConfig
	types    []types.Type
	status   *block.PageBuilderStatus
	builders []block.Builder

	declaredPositions int
}

// NewBuilder sizes the channel builders from cfg.InitialEntries.
func NewBuilder(cfg config.BlockConfig, typs ...types.Type) *Builder {
	return NewBuilderWithExpectedEntries(cfg, cfg.InitialEntries, typs...)
}

func NewBuilderWithExpectedEntries(cfg config.BlockConfig, expectedEntries int, typs ...types.Type) *Builder {
	if cfg.MaxPageSizeInBytes <= 0 {
		cfg.MaxPageSizeInBytes = block.DefaultMaxPageSizeInBytes
	}
	if cfg.ExpectedBytesPerEntry <= 0 {
		cfg.ExpectedBytesPerEntry = block.DefaultExpectedBytesPerEntry
	}
	b := &Builder{
		cfg:   cfg,
		types: typs,
	}
	b.status = block.NewPageBuilderStatus(cfg.MaxPageSizeInBytes)
	b.builders = make([]block.Builder, len(typs))
	for i, typ := range typs {
		b.builders[i] = block.NewBuilderWithExpectedBytes(typ, b.status, expectedEntries, cfg.ExpectedBytesPerEntry)
	}
	return b
}

func (b *Builder) ChannelCount() int {
	return len(b.builders)
}

func (b *Builder) Type(channel int) types.Type {
	return b.types[channel]
}

// BlockBuilder returns the builder of channel.
func (b *Builder) BlockBuilder(channel int) block.Builder {
	if channel < 0 || channel >= len(b.builders) {
		panic(moerr.NewOutOfRangeNoCtx("channel", "%d is not in [0, %d)", channel, len(b.builders)))
	}
	return b.builders[channel]
}

func (b *Builder) DeclarePosition() {
	b.declaredPositions++
}

func (b *Builder) DeclarePositions(positions int) {
	if positions < 0 {
		panic(moerr.NewInvalidArgNoCtx("declared positions", positions))
	}
	b.declaredPositions += positions
}

func (b *Builder) PositionCount() int {
	return b.declaredPositions
}

func (b *Builder) IsFull() bool {
	return b.declaredPositions >= block.MaxArraySize || b.status.IsFull()
}

func (b *Builder) IsEmpty() bool {
	return b.declaredPositions == 0 && (len(b.builders) == 0 || b.builders[0].PositionCount() == 0)
}

func (b *Builder) SizeInBytes() int64 {
	return b.status.SizeInBytes()
}

func (b *Builder) RetainedSizeInBytes() int64 {
	size := int64(unsafe.Sizeof(*b))
	for _, builder := range b.builders {
		size += builder.RetainedSizeInBytes()
	}
	return size
}

// Build freezes the channel builders into a page. Every channel must hold
// exactly the declared number of positions. The builder stays usable.
func (b *Builder) Build() *Page {
	blocks := make([]block.Block, len(b.builders))
	for i, builder := range b.builders {
		if builder.PositionCount() != b.declaredPositions {
			panic(moerr.NewInvalidStateNoCtx("channel %d has %d positions, declared %d",
				i, builder.PositionCount(), b.declaredPositions))
		}
		blocks[i] = builder.Build()
	}
	v2.PageBuilderFlushCounter.Inc()
	return newPage(b.declaredPositions, blocks)
}

// Reset replaces the channel builders with empty ones sized after the
// current page.
func (b *Builder) Reset() {
	if b.IsEmpty() {
		return
	}
	expectedEntries := block.CalculateBlockResetSize(b.declaredPositions)
	b.status = block.NewPageBuilderStatus(b.cfg.MaxPageSizeInBytes)
	for i, builder := range b.builders {
		b.builders[i] = builder.NewBuilderLike(expectedEntries, b.status)
	}
	b.declaredPositions = 0
}
