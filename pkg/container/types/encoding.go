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
	"encoding/binary"
	"unsafe"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
)

// EncodeSlice reinterprets v as bytes without copying.
func EncodeSlice[T any](v []T) []byte {
	var t T
	sz := int(unsafe.Sizeof(t))
	if len(v) > 0 {
		return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*sz)[:len(v)*sz]
	}
	return nil
}

// DecodeSlice reinterprets v as a slice of T without copying.
func DecodeSlice[T any](v []byte) []T {
	var t T
	sz := int(unsafe.Sizeof(t))

	if len(v)%sz != 0 {
		panic(moerr.NewInternalErrorNoCtx("decode slice that is not a multiple of element size"))
	}

	if len(v) > 0 {
		return unsafe.Slice((*T)(unsafe.Pointer(&v[0])), len(v)/sz)[:len(v)/sz]
	}
	return nil
}

func EncodeFixed[T FixedSizeT](v T) []byte {
	sz := unsafe.Sizeof(v)
	return unsafe.Slice((*byte)(unsafe.Pointer(&v)), sz)
}

func DecodeFixed[T FixedSizeT](v []byte) T {
	return *(*T)(unsafe.Pointer(&v[0]))
}

// EncodeType appends the recursive wire form of t to buf:
// oid, size, child count, children.
func EncodeType(buf []byte, t Type) []byte {
	buf = append(buf, byte(t.Oid))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(t.Size))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.Children)))
	for _, c := range t.Children {
		buf = EncodeType(buf, c)
	}
	return buf
}

// DecodeType is the inverse of EncodeType and returns the unread rest of v.
func DecodeType(v []byte) (Type, []byte, error) {
	if len(v) < 7 {
		return Type{}, nil, moerr.NewUnexpectedEOFNoCtx("type")
	}
	t := Type{
		Oid:  T(v[0]),
		Size: int32(binary.LittleEndian.Uint32(v[1:])),
	}
	n := int(binary.LittleEndian.Uint16(v[5:]))
	v = v[7:]
	if n > 0 {
		t.Children = make([]Type, n)
		for i := 0; i < n; i++ {
			var err error
			if t.Children[i], v, err = DecodeType(v); err != nil {
				return Type{}, nil, err
			}
		}
	}
	return t, v, nil
}
