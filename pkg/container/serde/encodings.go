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

package serde

import (
	"github.com/google/uuid"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/common/util"
	"github.com/matrixorigin/moblock/pkg/container/block"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

func builtinEncodings() []Encoding {
	return []Encoding{
		fixedEncoding{name: block.ByteArrayEncoding, size: 1},
		fixedEncoding{name: block.ShortArrayEncoding, size: 2},
		fixedEncoding{name: block.IntArrayEncoding, size: 4},
		fixedEncoding{name: block.LongArrayEncoding, size: 8},
		variableWidthEncoding{},
		arrayEncoding{},
		mapEncoding{},
		rowEncoding{},
		dictionaryEncoding{},
		rleEncoding{},
	}
}

func unexpectedBlock(e Encoding, b block.Block) error {
	return moerr.NewInternalErrorNoCtx("encoding %s cannot write %T", e.Name(), b)
}

// fixedEncoding writes the element type, the nulls and the raw values. One
// encoding serves every element type of a width.
type fixedEncoding struct {
	name string
	size int
}

func (e fixedEncoding) Name() string {
	return e.name
}

func (e fixedEncoding) Write(w *Writer, b block.Block) error {
	switch v := b.(type) {
	case *block.FixedWidthBlock[bool]:
		return writeFixed(w, types.T_bool, v)
	case *block.FixedWidthBlock[int8]:
		return writeFixed(w, types.T_int8, v)
	case *block.FixedWidthBlock[int16]:
		return writeFixed(w, types.T_int16, v)
	case *block.FixedWidthBlock[int32]:
		return writeFixed(w, types.T_int32, v)
	case *block.FixedWidthBlock[int64]:
		return writeFixed(w, types.T_int64, v)
	case *block.FixedWidthBlock[uint8]:
		return writeFixed(w, types.T_uint8, v)
	case *block.FixedWidthBlock[uint16]:
		return writeFixed(w, types.T_uint16, v)
	case *block.FixedWidthBlock[uint32]:
		return writeFixed(w, types.T_uint32, v)
	case *block.FixedWidthBlock[uint64]:
		return writeFixed(w, types.T_uint64, v)
	case *block.FixedWidthBlock[float32]:
		return writeFixed(w, types.T_float32, v)
	case *block.FixedWidthBlock[float64]:
		return writeFixed(w, types.T_float64, v)
	}
	return unexpectedBlock(e, b)
}

func (e fixedEncoding) Read(r *Reader) (block.Block, error) {
	oid, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	t := types.T(oid)
	if t.TypeLen() != e.size {
		return nil, moerr.NewCorruptedPageNoCtx("%s holds %s", e.name, t)
	}
	switch t {
	case types.T_bool:
		return readFixed[bool](r)
	case types.T_int8:
		return readFixed[int8](r)
	case types.T_int16:
		return readFixed[int16](r)
	case types.T_int32:
		return readFixed[int32](r)
	case types.T_int64:
		return readFixed[int64](r)
	case types.T_uint8:
		return readFixed[uint8](r)
	case types.T_uint16:
		return readFixed[uint16](r)
	case types.T_uint32:
		return readFixed[uint32](r)
	case types.T_uint64:
		return readFixed[uint64](r)
	case types.T_float32:
		return readFixed[float32](r)
	case types.T_float64:
		return readFixed[float64](r)
	}
	return nil, moerr.NewCorruptedPageNoCtx("%s holds %s", e.name, t)
}

func writeFixed[T types.FixedSizeT](w *Writer, oid types.T, b *block.FixedWidthBlock[T]) error {
	_ = w.WriteByte(byte(oid))
	n := b.PositionCount()
	w.WriteCount(n)
	if err := w.WriteNulls(b.Nulls(), n); err != nil {
		return err
	}
	w.WriteRaw(types.EncodeSlice(b.Values()))
	return nil
}

func readFixed[T types.FixedSizeT](r *Reader) (block.Block, error) {
	n, err := r.ReadCount("position count", 0)
	if err != nil {
		return nil, err
	}
	isNull, err := r.ReadNulls(n)
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadRaw("values")
	if err != nil {
		return nil, err
	}
	var zero T
	if len(raw) != n*len(types.EncodeFixed(zero)) {
		return nil, moerr.NewCorruptedPageNoCtx("%d value bytes for %d positions", len(raw), n)
	}
	return block.NewFixedWidthBlock(n, isNull, readSlice[T](raw, n)), nil
}

// variableWidthEncoding writes the nulls, the rebased offsets and the bytes.
type variableWidthEncoding struct{}

func (variableWidthEncoding) Name() string {
	return block.VariableWidthEncoding
}

func (e variableWidthEncoding) Write(w *Writer, b block.Block) error {
	v, ok := b.(*block.VariableWidthBlock)
	if !ok {
		return unexpectedBlock(e, b)
	}
	n := v.PositionCount()
	w.WriteCount(n)
	if err := w.WriteNulls(v.Nulls(), n); err != nil {
		return err
	}
	data, offsets := v.RawData()
	w.WriteOffsets(offsets)
	w.WriteRaw(data)
	return nil
}

func (variableWidthEncoding) Read(r *Reader) (block.Block, error) {
	n, isNull, offsets, err := readNested(r)
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadRaw("data")
	if err != nil {
		return nil, err
	}
	if int(offsets[n]) != len(raw) {
		return nil, moerr.NewCorruptedPageNoCtx("last offset %d, %d data bytes", offsets[n], len(raw))
	}
	return block.NewVariableWidthBlock(n, util.CloneBytes(raw), offsets, isNull), nil
}

// readNested reads the position count, nulls and offsets shared by the
// variable width, array and map layouts.
func readNested(r *Reader) (int, []bool, []int32, error) {
	n, err := r.ReadCount("position count", 4)
	if err != nil {
		return 0, nil, nil, err
	}
	isNull, err := r.ReadNulls(n)
	if err != nil {
		return 0, nil, nil, err
	}
	offsets, err := r.ReadOffsets(n)
	if err != nil {
		return 0, nil, nil, err
	}
	return n, isNull, offsets, nil
}

func checkLastOffset(offsets []int32, count int) error {
	if last := int(offsets[len(offsets)-1]); last != count {
		return moerr.NewCorruptedPageNoCtx("last offset %d, %d elements", last, count)
	}
	return nil
}

type arrayEncoding struct{}

func (arrayEncoding) Name() string {
	return block.ArrayEncoding
}

func (e arrayEncoding) Write(w *Writer, b block.Block) error {
	v, ok := b.(*block.ArrayBlock)
	if !ok {
		return unexpectedBlock(e, b)
	}
	n := v.PositionCount()
	w.WriteCount(n)
	if err := w.WriteNulls(v.Nulls(), n); err != nil {
		return err
	}
	w.WriteOffsets(v.Offsets())
	return w.WriteBlock(v.Elements())
}

func (arrayEncoding) Read(r *Reader) (block.Block, error) {
	_, isNull, offsets, err := readNested(r)
	if err != nil {
		return nil, err
	}
	elements, err := r.ReadBlock()
	if err != nil {
		return nil, err
	}
	if err = checkLastOffset(offsets, elements.PositionCount()); err != nil {
		return nil, err
	}
	return block.NewArrayBlock(isNull, offsets, elements), nil
}

// mapEncoding writes the map type ahead of the entries. Hash tables are not
// written, the reader rebuilds them.
type mapEncoding struct{}

func (mapEncoding) Name() string {
	return block.MapEncoding
}

func (e mapEncoding) Write(w *Writer, b block.Block) error {
	v, ok := b.(*block.MapBlock)
	if !ok {
		return unexpectedBlock(e, b)
	}
	w.WriteRaw(types.EncodeType(nil, v.Type()))
	n := v.PositionCount()
	w.WriteCount(n)
	if err := w.WriteNulls(v.Nulls(), n); err != nil {
		return err
	}
	w.WriteOffsets(v.Offsets())
	if err := w.WriteBlock(v.Keys()); err != nil {
		return err
	}
	return w.WriteBlock(v.Values())
}

func (mapEncoding) Read(r *Reader) (block.Block, error) {
	raw, err := r.ReadRaw("map type")
	if err != nil {
		return nil, err
	}
	mapType, rest, err := types.DecodeType(raw)
	if err != nil {
		return nil, moerr.NewCorruptedPageNoCtx("map type: %v", err)
	}
	if len(rest) != 0 || mapType.Oid != types.T_map {
		return nil, moerr.NewCorruptedPageNoCtx("bad map type %s", mapType)
	}
	_, isNull, offsets, err := readNested(r)
	if err != nil {
		return nil, err
	}
	keys, err := r.ReadBlock()
	if err != nil {
		return nil, err
	}
	values, err := r.ReadBlock()
	if err != nil {
		return nil, err
	}
	if err = checkLastOffset(offsets, keys.PositionCount()); err != nil {
		return nil, err
	}
	return block.NewMapBlock(mapType, isNull, offsets, keys, values), nil
}

type rowEncoding struct{}

func (rowEncoding) Name() string {
	return block.RowEncoding
}

func (e rowEncoding) Write(w *Writer, b block.Block) error {
	v, ok := b.(*block.RowBlock)
	if !ok {
		return unexpectedBlock(e, b)
	}
	n := v.PositionCount()
	w.WriteCount(n)
	if err := w.WriteNulls(v.Nulls(), n); err != nil {
		return err
	}
	fields := v.Fields()
	w.WriteCount(len(fields))
	for _, field := range fields {
		if err := w.WriteBlock(field); err != nil {
			return err
		}
	}
	return nil
}

func (rowEncoding) Read(r *Reader) (block.Block, error) {
	n, err := r.ReadCount("position count", 0)
	if err != nil {
		return nil, err
	}
	isNull, err := r.ReadNulls(n)
	if err != nil {
		return nil, err
	}
	fieldCount, err := r.ReadCount("field count", 4)
	if err != nil {
		return nil, err
	}
	fields := make([]block.Block, fieldCount)
	for i := range fields {
		if fields[i], err = r.ReadBlock(); err != nil {
			return nil, err
		}
	}
	return block.NewRowBlock(n, isNull, fields), nil
}

// dictionaryEncoding compacts the block before writing it, so unreferenced
// dictionary positions never reach the wire. Dictionaries a page shares
// across channels are compacted together beforehand and keep their id.
type dictionaryEncoding struct{}

func (dictionaryEncoding) Name() string {
	return block.DictionaryEncoding
}

func (e dictionaryEncoding) Write(w *Writer, b block.Block) error {
	v, ok := b.(*block.DictionaryBlock)
	if !ok {
		return unexpectedBlock(e, b)
	}
	if _, ok := w.related[v.DictionaryID()]; !ok {
		v = v.Compact()
	}
	w.WriteRaw(types.EncodeSlice(v.IDs()))
	if err := w.WriteBlock(v.Dictionary()); err != nil {
		return err
	}
	id := v.DictionaryID()
	w.WriteRaw(id[:])
	return nil
}

func (dictionaryEncoding) Read(r *Reader) (block.Block, error) {
	raw, err := r.ReadRaw("ids")
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, moerr.NewCorruptedPageNoCtx("%d id bytes", len(raw))
	}
	ids := readSlice[int32](raw, len(raw)/4)
	dictionary, err := r.ReadBlock()
	if err != nil {
		return nil, err
	}
	rawID, err := r.ReadRaw("dictionary id")
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromBytes(rawID)
	if err != nil {
		return nil, moerr.NewCorruptedPageNoCtx("dictionary id: %v", err)
	}
	return block.NewDictionaryBlockWithID(dictionary, ids, block.DictionaryID(id)), nil
}

type rleEncoding struct{}

func (rleEncoding) Name() string {
	return block.RLEEncoding
}

func (e rleEncoding) Write(w *Writer, b block.Block) error {
	v, ok := b.(*block.RunLengthEncodedBlock)
	if !ok {
		return unexpectedBlock(e, b)
	}
	w.WriteCount(v.PositionCount())
	return w.WriteBlock(v.Value())
}

func (rleEncoding) Read(r *Reader) (block.Block, error) {
	n, err := r.ReadCount("position count", 0)
	if err != nil {
		return nil, err
	}
	value, err := r.ReadBlock()
	if err != nil {
		return nil, err
	}
	return block.NewRunLengthEncodedBlock(value, n), nil
}
