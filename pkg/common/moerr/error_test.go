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

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMoErrCode(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		err  error
		code uint16
		want bool
	}{
		{"nil is ok", nil, Ok, true},
		{"nil is not invalid arg", nil, ErrInvalidArg, false},
		{"go error", errors.New("x"), ErrInternal, false},
		{"invalid arg", NewInvalidArg(ctx, "position", 10), ErrInvalidArg, true},
		{"already loaded", NewLazyBlockAlreadyLoaded(ctx), ErrLazyBlockAlreadyLoaded, true},
		{"stale", NewLazyBlockStale(ctx, 1, 2), ErrLazyBlockStale, true},
		{"stale is not already loaded", NewLazyBlockStale(ctx, 1, 2), ErrLazyBlockAlreadyLoaded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsMoErrCode(tt.err, tt.code))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewInvalidArgNoCtx("position", 7)
	require.Equal(t, "invalid argument position, bad value 7", err.Error())
	require.Equal(t, ErrInvalidArg, err.ErrorCode())
	require.False(t, err.Succeeded())

	err = NewLazyBlockStaleNoCtx(3, 4)
	require.Equal(t, "lazy block is stale: reader advanced from generation 3 to 4", err.Error())

	d := err.WithDetail("column 2")
	require.Equal(t, "lazy block is stale: reader advanced from generation 3 to 4: column 2", d.Display())
	require.Equal(t, "", err.Detail())
	require.True(t, GetOkExpectedEOB().Succeeded())
}

func TestConvertGoError(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, ConvertGoError(ctx, nil))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, io.EOF), ErrUnexpectedEOF))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, errors.New("boom")), ErrInternal))

	orig := NewCorruptedPage(ctx, "short read")
	require.Same(t, orig, ConvertGoError(ctx, orig))
}

func TestConvertPanicError(t *testing.T) {
	ctx := context.Background()
	orig := NewInvalidArg(ctx, "length", -1)
	require.Same(t, orig, ConvertPanicError(ctx, orig))

	err := ConvertPanicError(ctx, "index out of range")
	require.True(t, IsMoErrCode(err, ErrInternal))
	require.Equal(t, ErrInvalidArg, DowncastError(orig).ErrorCode())
	require.Equal(t, ErrInternal, DowncastError(errors.New("x")).ErrorCode())
}
