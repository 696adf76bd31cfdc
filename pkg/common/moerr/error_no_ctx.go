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

package moerr

// NoCtx variants are used on hot paths (positional accessors, builders)
// where no context is plumbed through.

func NewInternalErrorNoCtx(msg string, args ...any) *Error {
	return NewInternalError(Context(), msg, args...)
}

func NewNotSupportedNoCtx(msg string, args ...any) *Error {
	return NewNotSupported(Context(), msg, args...)
}

func NewOutOfRangeNoCtx(typ string, msg string, args ...any) *Error {
	return NewOutOfRange(Context(), typ, msg, args...)
}

func NewInvalidArgNoCtx(arg string, val any) *Error {
	return NewInvalidArg(Context(), arg, val)
}

func NewSizeOverflowNoCtx(msg string, args ...any) *Error {
	return NewSizeOverflow(Context(), msg, args...)
}

func NewInvalidInputNoCtx(msg string, args ...any) *Error {
	return NewInvalidInput(Context(), msg, args...)
}

func NewInvalidStateNoCtx(msg string, args ...any) *Error {
	return NewInvalidState(Context(), msg, args...)
}

func NewLazyBlockAlreadyLoadedNoCtx() *Error {
	return NewLazyBlockAlreadyLoaded(Context())
}

func NewLazyBlockStaleNoCtx(expected, current uint64) *Error {
	return NewLazyBlockStale(Context(), expected, current)
}

func NewCorruptedPageNoCtx(msg string, args ...any) *Error {
	return NewCorruptedPage(Context(), msg, args...)
}

func NewUnexpectedEOFNoCtx(f string) *Error {
	return NewUnexpectedEOF(Context(), f)
}

func NewUnknownBlockEncodingNoCtx(name string) *Error {
	return NewUnknownBlockEncoding(Context(), name)
}

func NewDuplicateBlockEncodingNoCtx(name string) *Error {
	return NewDuplicateBlockEncoding(Context(), name)
}
