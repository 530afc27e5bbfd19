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
	ants "github.com/panjf2000/ants/v2"
)

// Pool 是 ants.Pool 的泛型封装，任务通过 Future 返回结果。
type Pool[T any] struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建一个容量为 cap 的协程池。
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		// ants 仅在参数非法时返回错误，这里视为编程错误。
		panic(err)
	}

	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}
}

// Submit 提交一个任务，返回用于等待结果的 Future。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		res, err := method()
		if err != nil {
			future.err = err
			return
		}
		future.value = res
	})
	if err != nil {
		future.err = err
		close(future.ch)
	}

	return future
}

// Cap 返回协程池容量。
func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

// Running 返回当前正在运行的 worker 数量。
func (pool *Pool[T]) Running() int {
	return pool.inner.Running()
}

// Release 关闭协程池并回收 worker。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}

// Future 表示一个异步任务的结果占位。
type Future[T any] struct {
	ch    chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		ch: make(chan struct{}),
	}
}

// Await 阻塞等待任务完成，返回任务结果与错误。
func (future *Future[T]) Await() (T, error) {
	<-future.ch
	return future.value, future.err
}

// Done 返回一个在任务完成时关闭的 channel。
func (future *Future[T]) Done() <-chan struct{} {
	return future.ch
}

// AwaitAll 等待所有 Future 完成，返回首个出现的错误（如有）。
func AwaitAll[T any](futures ...*Future[T]) error {
	var first error
	for i := range futures {
		_, err := futures[i].Await()
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
