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
	"unsafe"

	"go.uber.org/atomic"
)

// BuilderStatus receives the bytes appended by every builder sharing it.
// Implementations need no locking unless the builders run on different
// goroutines.
type BuilderStatus interface {
	AddBytes(bytes int64)
}

// DefaultMaxPageSizeInBytes is 1MB.
const DefaultMaxPageSizeInBytes = 1 << 20

var statusInstanceSize = int64(unsafe.Sizeof(PageBuilderStatus{}))

// PageBuilderStatus tracks the bytes of one accumulating page. It is used by
// a single goroutine.
type PageBuilderStatus struct {
	maxPageSizeInBytes int64
	currentSize        int64
}

func NewPageBuilderStatus(maxPageSizeInBytes int64) *PageBuilderStatus {
	checkNonNegativeSize("max page size", maxPageSizeInBytes)
	return &PageBuilderStatus{maxPageSizeInBytes: maxPageSizeInBytes}
}

func (s *PageBuilderStatus) AddBytes(bytes int64) {
	s.currentSize += bytes
}

func (s *PageBuilderStatus) IsEmpty() bool {
	return s.currentSize == 0
}

func (s *PageBuilderStatus) IsFull() bool {
	return s.currentSize >= s.maxPageSizeInBytes
}

func (s *PageBuilderStatus) SizeInBytes() int64 {
	return s.currentSize
}

func (s *PageBuilderStatus) MaxPageSizeInBytes() int64 {
	return s.maxPageSizeInBytes
}

// AtomicPageBuilderStatus is a PageBuilderStatus that builders on several
// goroutines may share.
type AtomicPageBuilderStatus struct {
	maxPageSizeInBytes int64
	currentSize        atomic.Int64
}

func NewAtomicPageBuilderStatus(maxPageSizeInBytes int64) *AtomicPageBuilderStatus {
	checkNonNegativeSize("max page size", maxPageSizeInBytes)
	return &AtomicPageBuilderStatus{maxPageSizeInBytes: maxPageSizeInBytes}
}

func (s *AtomicPageBuilderStatus) AddBytes(bytes int64) {
	s.currentSize.Add(bytes)
}

func (s *AtomicPageBuilderStatus) IsEmpty() bool {
	return s.currentSize.Load() == 0
}

func (s *AtomicPageBuilderStatus) IsFull() bool {
	return s.currentSize.Load() >= s.maxPageSizeInBytes
}

func (s *AtomicPageBuilderStatus) SizeInBytes() int64 {
	return s.currentSize.Load()
}
