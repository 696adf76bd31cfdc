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

// Package nulls wrap up functions for the manipulation of bitmap library roaring.
// Blocks keep one null flag per position in memory; Nulls is the sparse form
// of those flags used when a block leaves the process.
package nulls

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

type Nulls struct {
	Np *roaring.Bitmap
}

func New() *Nulls {
	return &Nulls{Np: roaring.New()}
}

func Build(rows ...uint32) *Nulls {
	nsp := New()
	Add(nsp, rows...)
	return nsp
}

func (nsp *Nulls) Clone() *Nulls {
	if nsp == nil {
		return nil
	}
	if nsp.Np == nil {
		return &Nulls{}
	}
	return &Nulls{Np: nsp.Np.Clone()}
}

// Any returns true if any bit in the Nulls is set, otherwise it will return false.
func Any(nsp *Nulls) bool {
	if nsp == nil || nsp.Np == nil {
		return false
	}
	return !nsp.Np.IsEmpty()
}

// Length returns the number of integers contained in the Nulls
func Length(nsp *Nulls) int {
	if nsp == nil || nsp.Np == nil {
		return 0
	}
	return int(nsp.Np.GetCardinality())
}

// Size estimates the serialized size of the Nulls.
func Size(nsp *Nulls) int {
	if nsp == nil || nsp.Np == nil {
		return 0
	}
	return int(nsp.Np.GetSerializedSizeInBytes())
}

func String(nsp *Nulls) string {
	if nsp == nil || nsp.Np == nil {
		return "[]"
	}
	return fmt.Sprintf("%v", nsp.Np.ToArray())
}

// Contains returns true if the integer is contained in the Nulls
func Contains(nsp *Nulls, row uint32) bool {
	return nsp != nil && nsp.Np != nil && nsp.Np.Contains(row)
}

func Add(nsp *Nulls, rows ...uint32) {
	if len(rows) == 0 {
		return
	}
	if nsp.Np == nil {
		nsp.Np = roaring.New()
	}
	nsp.Np.AddMany(rows)
}

func Del(nsp *Nulls, rows ...uint32) {
	if nsp.Np == nil {
		return
	}
	for _, row := range rows {
		nsp.Np.Remove(row)
	}
}

// FromFlags collects the set positions of flags[offset:offset+count],
// rebased to zero. A nil result means no position is null.
func FromFlags(flags []bool, offset, count int) *Nulls {
	if flags == nil {
		return nil
	}
	var nsp *Nulls
	for i := 0; i < count; i++ {
		if flags[offset+i] {
			if nsp == nil {
				nsp = New()
			}
			nsp.Np.Add(uint32(i))
		}
	}
	return nsp
}

// ToFlags expands nsp into count flags. It returns nil when nothing is null
// so callers can keep the no-null fast path.
func ToFlags(nsp *Nulls, count int) []bool {
	if !Any(nsp) {
		return nil
	}
	flags := make([]bool, count)
	itr := nsp.Np.Iterator()
	for itr.HasNext() {
		row := int(itr.Next())
		if row >= count {
			break
		}
		flags[row] = true
	}
	return flags
}

func (nsp *Nulls) Show() ([]byte, error) {
	if nsp.Np == nil {
		return nil, nil
	}
	return nsp.Np.ToBytes()
}

func (nsp *Nulls) Read(data []byte) error {
	if len(data) == 0 {
		nsp.Np = nil
		return nil
	}
	np := roaring.New()
	if err := np.UnmarshalBinary(data); err != nil {
		return err
	}
	nsp.Np = np
	return nil
}
