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
	"bytes"
	"sync"

	"github.com/matrixorigin/moblock/pkg/common/moerr"
	"github.com/matrixorigin/moblock/pkg/container/block"
	"github.com/matrixorigin/moblock/pkg/container/nulls"
	"github.com/matrixorigin/moblock/pkg/container/types"
)

// Encoding serializes one kind of block. A block on the wire is its encoding
// name followed by whatever the encoding writes.
type Encoding interface {
	Name() string
	Write(w *Writer, b block.Block) error
	Read(r *Reader) (block.Block, error)
}

// Registry maps encoding names to encodings.
type Registry struct {
	sync.RWMutex
	encodings map[string]Encoding
}

// NewRegistry returns a registry holding the encoding of every block kind.
func NewRegistry() *Registry {
	r := &Registry{encodings: make(map[string]Encoding)}
	for _, e := range builtinEncodings() {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(e Encoding) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.encodings[e.Name()]; ok {
		return moerr.NewDuplicateBlockEncodingNoCtx(e.Name())
	}
	r.encodings[e.Name()] = e
	return nil
}

func (r *Registry) Lookup(name string) (Encoding, error) {
	r.RLock()
	defer r.RUnlock()
	e, ok := r.encodings[name]
	if !ok {
		return nil, moerr.NewUnknownBlockEncodingNoCtx(name)
	}
	return e, nil
}

// Marshal serializes b. Lazy blocks are loaded and written as the loaded
// block.
func (r *Registry) Marshal(b block.Block) ([]byte, error) {
	w := r.NewWriter()
	if err := w.WriteBlock(b); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal is the inverse of Marshal. All of data must be consumed.
func (r *Registry) Unmarshal(data []byte) (block.Block, error) {
	rd := r.NewReader(data)
	b, err := rd.ReadBlock()
	if err != nil {
		return nil, err
	}
	if rd.Remaining() != 0 {
		return nil, moerr.NewCorruptedPageNoCtx("%d trailing bytes after block", rd.Remaining())
	}
	return b, nil
}

type Writer struct {
	registry *Registry
	buf      bytes.Buffer
	// related holds dictionaries already compacted across a page. Blocks
	// over them are written as is so their ids stay shared.
	related map[block.DictionaryID]struct{}
}

func (r *Registry) NewWriter() *Writer {
	return &Writer{registry: r}
}

func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *Writer) Len() int {
	return w.buf.Len()
}

// WriteBlock writes the encoding name of b and its payload.
func (w *Writer) WriteBlock(b block.Block) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = moerr.ConvertPanicError(moerr.Context(), r)
		}
	}()
	b = b.LoadedBlock()
	e, err := w.registry.Lookup(b.EncodingName())
	if err != nil {
		return err
	}
	w.WriteString(e.Name())
	return e.Write(w, b)
}

func (w *Writer) WriteByte(v byte) error {
	return w.buf.WriteByte(v)
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf.Write(types.EncodeFixed(v))
}

// WriteCount writes a non-negative count as an uint32.
func (w *Writer) WriteCount(n int) {
	w.WriteUint32(uint32(n))
}

// WriteString writes the length of s followed by its bytes.
func (w *Writer) WriteString(s string) {
	w.WriteCount(len(s))
	w.buf.WriteString(s)
}

// WriteRaw writes the length of v followed by v.
func (w *Writer) WriteRaw(v []byte) {
	w.WriteCount(len(v))
	w.buf.Write(v)
}

// WriteNulls writes the null flags of count positions as a bitmap. A block
// without nulls costs a zero length.
func (w *Writer) WriteNulls(flags []bool, count int) error {
	nsp := nulls.FromFlags(flags, 0, count)
	if nsp == nil {
		w.WriteCount(0)
		return nil
	}
	data, err := nsp.Show()
	if err != nil {
		return err
	}
	w.WriteRaw(data)
	return nil
}

// WriteOffsets writes count+1 offsets starting at zero.
func (w *Writer) WriteOffsets(offsets []int32) {
	w.buf.Write(types.EncodeSlice(offsets))
}

// Reader reads what a Writer wrote. Every read is bounds checked, a short
// buffer yields a corrupted page error.
type Reader struct {
	registry *Registry
	data     []byte
	pos      int
}

func (r *Registry) NewReader(data []byte) *Reader {
	return &Reader{registry: r, data: data}
}

func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) ReadBlock() (b block.Block, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = moerr.NewCorruptedPageNoCtx("%v", e)
		}
	}()
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	e, err := r.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return e.Read(r)
}

func (r *Reader) next(n int, what string) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, moerr.NewCorruptedPageNoCtx("%s needs %d bytes, %d left", what, n, r.Remaining())
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *Reader) ReadByte() (byte, error) {
	v, err := r.next(1, "byte")
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.next(4, "uint32")
	if err != nil {
		return 0, err
	}
	return types.DecodeFixed[uint32](v), nil
}

// ReadCount reads a count and checks it against what is left, assuming every
// counted item takes at least minSize bytes.
func (r *Reader) ReadCount(what string, minSize int) (int, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	n := int(v)
	if n > block.MaxArraySize || n*minSize > r.Remaining() {
		return 0, moerr.NewCorruptedPageNoCtx("%s %d exceeds the buffer", what, n)
	}
	return n, nil
}

func (r *Reader) ReadString() (string, error) {
	v, err := r.ReadRaw("string")
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// ReadRaw reads a length prefixed byte slice. The result aliases the buffer.
func (r *Reader) ReadRaw(what string) ([]byte, error) {
	n, err := r.ReadCount(what, 1)
	if err != nil {
		return nil, err
	}
	return r.next(n, what)
}

func (r *Reader) ReadNulls(count int) ([]bool, error) {
	data, err := r.ReadRaw("nulls")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	nsp := nulls.New()
	if err = nsp.Read(data); err != nil {
		return nil, moerr.NewCorruptedPageNoCtx("nulls: %v", err)
	}
	if nsp.Np.GetCardinality() > 0 && int(nsp.Np.Maximum()) >= count {
		return nil, moerr.NewCorruptedPageNoCtx("null position %d out of %d", nsp.Np.Maximum(), count)
	}
	return nulls.ToFlags(nsp, count), nil
}

// ReadOffsets reads count+1 offsets. They must start at zero and never
// decrease.
func (r *Reader) ReadOffsets(count int) ([]int32, error) {
	raw, err := r.next((count+1)*4, "offsets")
	if err != nil {
		return nil, err
	}
	offsets := readSlice[int32](raw, count+1)
	if offsets[0] != 0 {
		return nil, moerr.NewCorruptedPageNoCtx("first offset is %d", offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return nil, moerr.NewCorruptedPageNoCtx("offset %d decreases", i)
		}
	}
	return offsets, nil
}

// readSlice copies raw into a fresh slice so the result is aligned and does
// not pin the input buffer.
func readSlice[T any](raw []byte, n int) []T {
	v := make([]T, n)
	copy(types.EncodeSlice(v), raw)
	return v
}
