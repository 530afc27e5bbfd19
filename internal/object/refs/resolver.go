// Package refs 实现引用解析器：活对象与稳定引用句柄之间的映射。
//
// 引用类实体不能按值跨进程复制，Member 树中只携带句柄；
// 解析器只做登记与查询，绝不拥有实体生命周期（arena-and-index 模式，
// 句柄是进程内下标，不是裸指针）。句柄仅在实体存活期间有效，
// 不跨进程重启。
package refs

import (
	"reflect"
	"sync"

	"go.uber.org/atomic"

	"github.com/lk2023060901/object-garden-go/pkg/metrics"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Handle 是进程内稳定、对外不透明的引用句柄。
type Handle int64

// NilHandle 表示“无引用”。
const NilHandle Handle = 0

// Resolver 维护句柄与活实体之间的双向映射。
// 所有方法都可以并发调用。
type Resolver struct {
	mu       sync.RWMutex
	byHandle map[Handle]any
	byIdent  map[identity]Handle

	next atomic.Int64
}

// identity 以指针身份（而非值相等）标识一个活实体。
type identity struct {
	ptr uintptr
	typ reflect.Type
}

// NewResolver 创建一个空的解析器。
func NewResolver() *Resolver {
	return &Resolver{
		byHandle: make(map[Handle]any),
		byIdent:  make(map[identity]Handle),
	}
}

// Identify 返回实体对应的句柄，同一活实体重复登记得到同一句柄（幂等）。
//
// entity 必须是指针（引用类实体总是以指针形式存在），
// 否则无法建立稳定的身份映射。
func (r *Resolver) Identify(entity any) (Handle, error) {
	if entity == nil {
		return NilHandle, merr.WrapErrParameterInvalidMsg("cannot identify nil entity")
	}
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return NilHandle, merr.WrapErrParameterInvalidMsg(
			"entity must be a non-nil pointer, got %T", entity)
	}

	id := identity{ptr: v.Pointer(), typ: v.Type()}

	r.mu.RLock()
	h, ok := r.byIdent[id]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byIdent[id]; ok {
		return h, nil
	}
	h = Handle(r.next.Inc())
	r.byIdent[id] = h
	r.byHandle[h] = entity
	metrics.RefTableSize.Set(float64(len(r.byHandle)))
	return h, nil
}

// Lookup 按句柄查找活实体。
// 句柄未知或已被 Release 时返回 ErrReferenceNotFound。
func (r *Resolver) Lookup(h Handle) (any, error) {
	r.mu.RLock()
	entity, ok := r.byHandle[h]
	r.mu.RUnlock()
	if !ok {
		return nil, merr.WrapErrReferenceNotFound(int64(h))
	}
	return entity, nil
}

// Release 注销一个句柄。实体销毁/卸载时由宿主调用，
// 此后对该句柄的 Lookup 显式失败，而不是悬空。
func (r *Resolver) Release(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entity, ok := r.byHandle[h]
	if !ok {
		return
	}
	delete(r.byHandle, h)
	v := reflect.ValueOf(entity)
	delete(r.byIdent, identity{ptr: v.Pointer(), typ: v.Type()})
	metrics.RefTableSize.Set(float64(len(r.byHandle)))
}

// Size 返回当前登记的实体数量。
func (r *Resolver) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}
