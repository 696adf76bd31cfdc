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

package types

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

type T uint8

const (
	// any family
	T_any T = 0

	// bool family
	T_bool T = 10

	// numeric/integer family
	T_int8   T = 20
	T_int16  T = 21
	T_int32  T = 22
	T_int64  T = 23
	T_uint8  T = 25
	T_uint16 T = 26
	T_uint32 T = 27
	T_uint64 T = 28

	// numeric/float family
	T_float32 T = 30
	T_float64 T = 31

	// date family, stored as int32 days and int64 microseconds
	T_date      T = 50
	T_timestamp T = 52

	// string family
	T_char      T = 60
	T_varchar   T = 61
	T_varbinary T = 66

	// nested family
	T_array T = 90
	T_map   T = 91
	T_row   T = 92
)

// Type describes a column. Children holds the element type of an array,
// the key and value types of a map, or the field types of a row.
type Type struct {
	Oid T

	// Size is the fixed width of one value, 0 for variable length types.
	Size int32

	Children []Type
}

type Ints interface {
	int8 | int16 | int32 | int64
}

type UInts interface {
	uint8 | uint16 | uint32 | uint64
}

type Floats interface {
	float32 | float64
}

// FixedSizeT is the set of element types a fixed width block can hold.
type FixedSizeT interface {
	bool | Ints | UInts | Floats
}

// Number is used where a value is widened to int64 or float64.
type Number interface {
	constraints.Integer | constraints.Float
}

var Types = map[string]T{
	"bool": T_bool,

	"tinyint":  T_int8,
	"smallint": T_int16,
	"int":      T_int32,
	"integer":  T_int32,
	"bigint":   T_int64,

	"tinyint unsigned":  T_uint8,
	"smallint unsigned": T_uint16,
	"int unsigned":      T_uint32,
	"integer unsigned":  T_uint32,
	"bigint unsigned":   T_uint64,

	"float":  T_float32,
	"double": T_float64,

	"date":      T_date,
	"timestamp": T_timestamp,

	"char":      T_char,
	"varchar":   T_varchar,
	"varbinary": T_varbinary,

	"array": T_array,
	"map":   T_map,
	"row":   T_row,
}

func New(oid T) Type {
	if oid == T_array || oid == T_map || oid == T_row {
		panic(fmt.Sprintf("nested type %s needs children", oid))
	}
	return Type{Oid: oid, Size: int32(oid.TypeLen())}
}

func NewArrayType(elem Type) Type {
	return Type{Oid: T_array, Children: []Type{elem}}
}

func NewMapType(key, value Type) Type {
	return Type{Oid: T_map, Children: []Type{key, value}}
}

func NewRowType(fields ...Type) Type {
	children := make([]Type, len(fields))
	copy(children, fields)
	return Type{Oid: T_row, Children: children}
}

func (t Type) IsFixedLen() bool {
	return t.Oid.FixedLength() > 0
}

func (t Type) TypeSize() int {
	return int(t.Size)
}

// ElemType returns the element type of an array.
func (t Type) ElemType() Type {
	if t.Oid != T_array {
		panic(fmt.Sprintf("ElemType on %s", t))
	}
	return t.Children[0]
}

func (t Type) KeyType() Type {
	if t.Oid != T_map {
		panic(fmt.Sprintf("KeyType on %s", t))
	}
	return t.Children[0]
}

func (t Type) ValueType() Type {
	if t.Oid != T_map {
		panic(fmt.Sprintf("ValueType on %s", t))
	}
	return t.Children[1]
}

func (t Type) Eq(o Type) bool {
	if t.Oid != o.Oid || t.Size != o.Size || len(t.Children) != len(o.Children) {
		return false
	}
	for i := range t.Children {
		if !t.Children[i].Eq(o.Children[i]) {
			return false
		}
	}
	return true
}

func (t Type) String() string {
	switch t.Oid {
	case T_array:
		return fmt.Sprintf("ARRAY(%s)", t.Children[0])
	case T_map:
		return fmt.Sprintf("MAP(%s, %s)", t.Children[0], t.Children[1])
	case T_row:
		fields := make([]string, len(t.Children))
		for i, c := range t.Children {
			fields[i] = c.String()
		}
		return fmt.Sprintf("ROW(%s)", strings.Join(fields, ", "))
	}
	return t.Oid.String()
}

func (t T) ToType() Type {
	return New(t)
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "TINYINT"
	case T_int16:
		return "SMALLINT"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_uint8:
		return "TINYINT UNSIGNED"
	case T_uint16:
		return "SMALLINT UNSIGNED"
	case T_uint32:
		return "INT UNSIGNED"
	case T_uint64:
		return "BIGINT UNSIGNED"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_date:
		return "DATE"
	case T_timestamp:
		return "TIMESTAMP"
	case T_char:
		return "CHAR"
	case T_varchar:
		return "VARCHAR"
	case T_varbinary:
		return "VARBINARY"
	case T_array:
		return "ARRAY"
	case T_map:
		return "MAP"
	case T_row:
		return "ROW"
	}
	return fmt.Sprintf("unexpected type: %d", t)
}

// TypeLen returns the in-memory width of one value, 0 for variable length
// and nested types.
func (t T) TypeLen() int {
	switch t {
	case T_bool, T_int8, T_uint8:
		return 1
	case T_int16, T_uint16:
		return 2
	case T_int32, T_uint32, T_float32, T_date:
		return 4
	case T_int64, T_uint64, T_float64, T_timestamp:
		return 8
	}
	return 0
}

// FixedLength is -1 for variable length types and 0 for nested or unknown
// types.
func (t T) FixedLength() int {
	switch t {
	case T_char, T_varchar, T_varbinary:
		return -1
	}
	return t.TypeLen()
}

func (t T) IsNested() bool {
	return t == T_array || t == T_map || t == T_row
}

func (t T) IsInteger() bool {
	switch t {
	case T_int8, T_int16, T_int32, T_int64, T_uint8, T_uint16, T_uint32, T_uint64:
		return true
	}
	return false
}

func (t T) IsFloat() bool {
	return t == T_float32 || t == T_float64
}
