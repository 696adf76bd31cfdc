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
	"github.com/matrixorigin/moblock/pkg/container/types"
)

// NewBuilder returns a builder for values of typ.
func NewBuilder(typ types.Type, status BuilderStatus, expectedEntries int) Builder {
	return NewBuilderWithExpectedBytes(typ, status, expectedEntries, DefaultExpectedBytesPerEntry)
}

// NewBuilderWithExpectedBytes is NewBuilder with the first data buffer of a
// variable width builder sized for expectedBytesPerEntry.
func NewBuilderWithExpectedBytes(typ types.Type, status BuilderStatus, expectedEntries, expectedBytesPerEntry int) Builder {
	switch typ.Oid {
	case types.T_bool:
		return NewFixedWidthBuilder[bool](status, expectedEntries)
	case types.T_int8:
		return NewFixedWidthBuilder[int8](status, expectedEntries)
	case types.T_int16:
		return NewFixedWidthBuilder[int16](status, expectedEntries)
	case types.T_int32, types.T_date:
		return NewFixedWidthBuilder[int32](status, expectedEntries)
	case types.T_int64, types.T_timestamp:
		return NewFixedWidthBuilder[int64](status, expectedEntries)
	case types.T_uint8:
		return NewFixedWidthBuilder[uint8](status, expectedEntries)
	case types.T_uint16:
		return NewFixedWidthBuilder[uint16](status, expectedEntries)
	case types.T_uint32:
		return NewFixedWidthBuilder[uint32](status, expectedEntries)
	case types.T_uint64:
		return NewFixedWidthBuilder[uint64](status, expectedEntries)
	case types.T_float32:
		return NewFixedWidthBuilder[float32](status, expectedEntries)
	case types.T_float64:
		return NewFixedWidthBuilder[float64](status, expectedEntries)
	case types.T_char, types.T_varchar, types.T_varbinary:
		return NewVariableWidthBuilder(status, expectedEntries, expectedBytesPerEntry)
	case types.T_array:
		return NewArrayBuilder(typ, status, expectedEntries)
	case types.T_map:
		return NewMapBuilder(typ, status, expectedEntries)
	case types.T_row:
		return NewRowBuilder(typ, status, expectedEntries)
	}
	panic(moerr.NewNotSupportedNoCtx("builder of type %s", typ))
}
