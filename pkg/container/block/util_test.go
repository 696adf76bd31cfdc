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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
)

func requirePanicCode(t *testing.T, code uint16, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(*moerr.Error)
		require.True(t, ok, "unexpected panic %v", r)
		require.Equal(t, code, err.ErrorCode(), err.Error())
	}()
	fn()
}

// buildLongs builds an int64 block, a nil entry is a null.
func buildLongs(values ...any) Block {
	b := NewFixedWidthBuilder[int64](nil, len(values))
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		b.Write(int64(v.(int)))
	}
	return b.Build()
}

// buildStrings builds a varchar block, a nil entry is a null.
func buildStrings(values ...any) Block {
	b := NewVariableWidthBuilder(nil, len(values), 0)
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		b.WriteString(v.(string))
	}
	return b.Build()
}

// requireSameValues compares every position of two blocks.
func requireSameValues(t *testing.T, expected, actual Block) {
	t.Helper()
	require.Equal(t, expected.PositionCount(), actual.PositionCount())
	for i := 0; i < expected.PositionCount(); i++ {
		require.Equal(t, expected.IsNull(i), actual.IsNull(i), "position %d", i)
		require.True(t, expected.Equal(i, actual, i), "position %d", i)
		require.Equal(t, expected.Hash(i), actual.Hash(i), "position %d", i)
	}
}

func TestCalculateNewArraySize(t *testing.T) {
	require.Equal(t, DefaultCapacity, CalculateNewArraySize(0))
	require.Equal(t, DefaultCapacity, CalculateNewArraySize(10))
	require.Equal(t, 96, CalculateNewArraySize(64))
	require.Equal(t, 150, CalculateNewArraySize(100))
	require.Equal(t, MaxArraySize, CalculateNewArraySize(MaxArraySize-1))
	requirePanicCode(t, moerr.ErrSizeOverflow, func() {
		CalculateNewArraySize(MaxArraySize)
	})
}

func TestCalculateBlockResetSize(t *testing.T) {
	require.Equal(t, 1, CalculateBlockResetSize(0))
	require.Equal(t, 2, CalculateBlockResetSize(1))
	require.Equal(t, 125, CalculateBlockResetSize(100))
	require.Equal(t, MaxArraySize, CalculateBlockResetSize(MaxArraySize))
}

func TestGrowth(t *testing.T) {
	g := newGrowth(0)
	require.Equal(t, 1, g.next(0))
	require.Equal(t, DefaultCapacity, g.next(1))

	g = newGrowth(100)
	require.Equal(t, 100, g.next(0))
	require.Equal(t, 150, g.next(100))
}
