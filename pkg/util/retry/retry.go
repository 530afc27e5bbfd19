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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/object-garden-go/pkg/log"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Do 使用重试机制执行指定函数。
// fn 为待执行的函数，opts 用于控制最大重试次数、退避参数等行为。
//
// 退避策略基于 cenkalti/backoff 的指数退避实现；
// 当错误不可重试（merr.IsRetryableErr 为 false 且未显式放开）时立即返回。
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c := newDefaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.sleep
	bo.MaxInterval = c.maxSleepTime
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0.1
	bo.Reset()

	var lastErr error
	for i := uint(0); c.attempts == 0 || i < c.attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if i%4 == 0 {
			log.Ctx(ctx).Warn("retry func failed",
				zap.Uint("retried", i),
				zap.Error(err))
		}

		if !isRecoverable(err, c) {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				return perm.Unwrap()
			}
			if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) && lastErr != nil {
				return lastErr
			}
			return err
		}

		interval := bo.NextBackOff()
		if interval == backoff.Stop {
			break
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < interval {
			return lastErr
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return merr.Combine(ctx.Err(), lastErr)
		}
	}
	return lastErr
}

// Handle 与 Do 类似，但由 fn 自行返回是否需要重试，
// 适用于错误类型无法表达可重试性的场景。
func Handle(ctx context.Context, fn func() (bool, error), opts ...Option) error {
	return Do(ctx, func() error {
		retryable, err := fn()
		if err == nil {
			return nil
		}
		if !retryable {
			return backoff.Permanent(err)
		}
		return err
	}, opts...)
}

func isRecoverable(err error, c *config) bool {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
		return false
	}
	if c.isRetryErr != nil {
		return c.isRetryErr(err)
	}
	if merr.IsRetryableErr(errors.Cause(err)) {
		return true
	}
	return c.retryAll
}
