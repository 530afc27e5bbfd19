// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

func TestDoEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, Attempts(5), Sleep(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	errTransient := errors.New("still failing")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errTransient
	}, Attempts(3), Sleep(time.Millisecond))

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDoNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return merr.ErrTypeNotFound
	}, Attempts(5), Sleep(time.Millisecond), RetryAll(false))

	assert.ErrorIs(t, err, merr.ErrTypeNotFound)
	assert.Equal(t, 1, calls)
}

func TestDoRetriableMerr(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return merr.ErrEngineNotReady
		}
		return nil
	}, Attempts(5), Sleep(time.Millisecond), RetryAll(false))

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandlePermanent(t *testing.T) {
	errFatal := errors.New("fatal")
	calls := 0
	err := Handle(context.Background(), func() (bool, error) {
		calls++
		return false, errFatal
	}, Attempts(5), Sleep(time.Millisecond))

	// 不可重试的错误立即返回，且不带退避包装。
	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestHandleRetryable(t *testing.T) {
	calls := 0
	err := Handle(context.Background(), func() (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("transient")
		}
		return false, nil
	}, Attempts(5), Sleep(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
