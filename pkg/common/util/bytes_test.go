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

package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneBytes(t *testing.T) {
	require.Nil(t, CloneBytes(nil))
	require.Nil(t, CloneBytes([]byte{}))

	src := []byte("abc")
	dst := CloneBytes(src)
	require.Equal(t, src, dst)
	dst[0] = 'x'
	require.Equal(t, byte('a'), src[0])
}
