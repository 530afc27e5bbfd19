// Package registry 实现类型注册表：完整类型名到类型描述表的解析与缓存。
//
// 描述表在首次解析时构建（显式注册或惰性解析），进程生命周期内缓存，
// 只读为主。解析失败不会被缓存，类型可能在之后（例如动态注册）变为可用。
package registry

import (
	"reflect"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/lk2023060901/object-garden-go/pkg/metrics"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Registry 维护类型名与类型描述表的映射。
// 所有方法都可以并发调用。
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*TypeDescriptor
	byType map[reflect.Type]*TypeDescriptor
}

// NewRegistry 创建一个注册表，内置标量类型开箱即用。
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]*TypeDescriptor),
		byType: make(map[reflect.Type]*TypeDescriptor),
	}
	r.registerBuiltins()
	return r
}

var builtinSamples = []any{
	false, "",
	int(0), int8(0), int16(0), int32(0), int64(0),
	uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
	float32(0), float64(0),
}

func (r *Registry) registerBuiltins() {
	for _, sample := range builtinSamples {
		// 内置标量的描述表构建不会失败。
		_, _ = r.Register(sample)
	}
}

// RegisterOption 用于定制类型注册行为。
type RegisterOption func(*registerConfig)

type registerConfig struct {
	name    string
	refKind bool
}

// WithName 为类型指定注册名，代替默认的反射完整名。
func WithName(name string) RegisterOption {
	return func(c *registerConfig) {
		c.name = name
	}
}

// AsRef 将类型标记为引用类：序列化时只以引用句柄出现。
func AsRef() RegisterOption {
	return func(c *registerConfig) {
		c.refKind = true
	}
}

// Register 注册 sample 的类型并返回其描述表。
//
// 对同一类型重复注册是幂等的；同名但不同类型的注册返回
// ErrTypeDuplicate。
func (r *Registry) Register(sample any, opts ...RegisterOption) (*TypeDescriptor, error) {
	if sample == nil {
		return nil, merr.WrapErrParameterInvalidMsg("cannot register nil sample")
	}

	cfg := &registerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	desc, err := buildDescriptor(t, cfg.name, cfg.refKind, r.nameFor)
	if err != nil {
		return nil, err
	}
	return r.store(desc)
}

// store 将描述表写入缓存。
// 并发构建同一类型时保留先写入的描述表，保证所有调用方观察到同一份。
func (r *Registry) store(desc *TypeDescriptor) (*TypeDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byType[desc.Type]; ok {
		if existing.Name == desc.Name {
			return existing, nil
		}
		// 同一类型的别名：名字也指向已有描述表。
		if prior, taken := r.byName[desc.Name]; taken && prior.Type != desc.Type {
			return nil, merr.WrapErrTypeDuplicate(desc.Name)
		}
		r.byName[desc.Name] = existing
		return existing, nil
	}
	if prior, taken := r.byName[desc.Name]; taken && prior.Type != desc.Type {
		return nil, merr.WrapErrTypeDuplicate(desc.Name)
	}

	r.byType[desc.Type] = desc
	r.byName[desc.Name] = desc
	if defName := defaultTypeName(desc.Type); defName != desc.Name {
		if _, taken := r.byName[defName]; !taken {
			r.byName[defName] = desc
		}
	}
	metrics.RegistryTypes.Set(float64(len(r.byType)))
	return desc, nil
}

// Resolve 按完整类型名解析描述表。
// 精确、大小写敏感匹配；未注册返回 ErrTypeNotFound（不缓存失败结果）。
func (r *Registry) Resolve(typeName string) (*TypeDescriptor, error) {
	r.mu.RLock()
	desc, ok := r.byName[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, merr.WrapErrTypeNotFound(typeName)
	}
	return desc, nil
}

// ResolveType 按运行时类型解析描述表，未见过的类型会被惰性构建并缓存。
func (r *Registry) ResolveType(t reflect.Type) (*TypeDescriptor, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.RLock()
	desc, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return desc, nil
	}

	// 构建在锁外进行；并发的重复构建由 store 收敛到同一份描述表。
	built, err := buildDescriptor(t, "", false, r.nameFor)
	if err != nil {
		return nil, err
	}
	return r.store(built)
}

// ResolveValue 解析一个运行时值的描述表。
func (r *Registry) ResolveValue(v any) (*TypeDescriptor, error) {
	if v == nil {
		return nil, merr.WrapErrParameterInvalidMsg("cannot resolve nil value")
	}
	return r.ResolveType(reflect.TypeOf(v))
}

// nameFor 返回类型在本注册表中的名字：已注册的用注册名，否则用默认名。
func (r *Registry) nameFor(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	desc, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return desc.Name
	}
	return defaultTypeName(t)
}

// TypeNameOf 返回类型在本注册表中的名字：已注册的用注册名，否则用
// 反射默认名。
func (r *Registry) TypeNameOf(t reflect.Type) string {
	return r.nameFor(t)
}

// IsAssignable 判断具体类型的值能否赋给目标类型的槽位。
// 任一类型名无法解析时返回 false。
func (r *Registry) IsAssignable(concreteName, targetName string) bool {
	concrete, err := r.Resolve(concreteName)
	if err != nil {
		return false
	}
	target, err := r.Resolve(targetName)
	if err != nil {
		return false
	}
	return isAssignableType(concrete.Type, target.Type)
}

func isAssignableType(concrete, target reflect.Type) bool {
	if concrete == target {
		return true
	}
	if concrete.AssignableTo(target) {
		return true
	}
	if target.Kind() == reflect.Interface {
		return concrete.Implements(target) || reflect.PointerTo(concrete).Implements(target)
	}
	return false
}

// New 默认构造一个该类型的新实例，返回指向实例的指针值。
// 不可构造的类型（接口、引用类等）返回 ErrCannotConstruct。
func (r *Registry) New(typeName string) (reflect.Value, error) {
	desc, err := r.Resolve(typeName)
	if err != nil {
		return reflect.Value{}, err
	}
	return r.NewOf(desc)
}

// NewOf 按描述表默认构造新实例，返回指向实例的指针值。
func (r *Registry) NewOf(desc *TypeDescriptor) (reflect.Value, error) {
	if !desc.Constructible() {
		return reflect.Value{}, merr.WrapErrCannotConstruct(desc.Name)
	}
	return reflect.New(desc.Type), nil
}

// Size 返回当前缓存的描述表数量。
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// TypeNames 返回所有已注册的类型名，顺序不保证。
func (r *Registry) TypeNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Keys(r.byName)
}
