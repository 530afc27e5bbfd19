// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSubmit(t *testing.T) {
	pool := NewPool[int](4)
	defer pool.Release()
	assert.Equal(t, 4, pool.Cap())

	futures := make([]*Future[int], 0, 16)
	for i := 0; i < 16; i++ {
		i := i
		futures = append(futures, pool.Submit(func() (int, error) {
			return i * i, nil
		}))
	}

	for i, future := range futures {
		v, err := future.Await()
		require.NoError(t, err)
		assert.Equal(t, i*i, v)
	}
}

func TestFutureError(t *testing.T) {
	pool := NewPool[int](1)
	defer pool.Release()

	errBoom := errors.New("boom")
	future := pool.Submit(func() (int, error) {
		return 0, errBoom
	})
	_, err := future.Await()
	assert.ErrorIs(t, err, errBoom)

	<-future.Done()
	assert.ErrorIs(t, AwaitAll(future), errBoom)
}
