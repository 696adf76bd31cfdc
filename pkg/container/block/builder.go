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

// Builder appends positions and freezes them into a Block.
//
// Build does not consume the builder: it may be called any number of times
// and appends may continue after it. Blocks returned by earlier calls are not
// affected by later appends. Every append, null included, reports its bytes
// to the BuilderStatus given at construction, if any.
//
// The kind specific Write methods live on the concrete builders.
type Builder interface {
	PositionCount() int
	// SizeInBytes is the size the built block would report.
	SizeInBytes() int64
	// RetainedSizeInBytes never decreases while positions are appended.
	RetainedSizeInBytes() int64

	AppendNull() Builder
	Build() Block

	// NewBuilderLike returns an empty builder of the same kind.
	NewBuilderLike(expectedEntries int, status BuilderStatus) Builder
}

// growth is the capacity bookkeeping shared by every builder.
type growth struct {
	initialized       bool
	initialEntryCount int
}

func newGrowth(expectedEntries int) growth {
	if expectedEntries < 1 {
		expectedEntries = 1
	}
	return growth{initialEntryCount: expectedEntries}
}

// next returns the capacity to grow an array of capacity current to.
func (g *growth) next(current int) int {
	if !g.initialized {
		g.initialized = true
		if g.initialEntryCount > current {
			return g.initialEntryCount
		}
	}
	return CalculateNewArraySize(current)
}

func statusRetainedSize(status BuilderStatus) int64 {
	if status == nil {
		return 0
	}
	return statusInstanceSize
}
