// Package bridge 是对象引擎的对外门面。
//
// Engine 聚合类型注册表、引用解析器、序列化器与回写器，对外提供带
// 日志、指标与链路追踪的完整操作入口；远端调用方通过 ops 信封间接
// 使用这些能力。
package bridge

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/object-garden-go/internal/object/member"
	"github.com/lk2023060901/object-garden-go/internal/object/populate"
	"github.com/lk2023060901/object-garden-go/internal/object/refs"
	"github.com/lk2023060901/object-garden-go/internal/object/registry"
	"github.com/lk2023060901/object-garden-go/internal/object/serialize"
	"github.com/lk2023060901/object-garden-go/pkg/buffer/ring"
	"github.com/lk2023060901/object-garden-go/pkg/log"
	"github.com/lk2023060901/object-garden-go/pkg/metrics"
	"github.com/lk2023060901/object-garden-go/pkg/util/conc"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Config 为引擎的可调参数。
type Config struct {
	// MaxDepth 为序列化的默认遍历深度上限。
	MaxDepth int `mapstructure:"maxDepth"`
	// IncludeProps 控制序列化是否默认包含访问器成员。
	IncludeProps bool `mapstructure:"includeProps"`
	// PoolSize 为批量序列化协程池的容量。
	PoolSize int `mapstructure:"poolSize"`
	// RecentOps 为最近操作记录环形缓冲区的容量。
	RecentOps int `mapstructure:"recentOps"`
}

// DefaultConfig 返回引擎的默认参数。
func DefaultConfig() Config {
	return Config{
		MaxDepth:     8,
		IncludeProps: true,
		PoolSize:     4,
		RecentOps:    ring.DefaultCapacity,
	}
}

func (c *Config) withDefaults() {
	def := DefaultConfig()
	if c.MaxDepth <= 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.PoolSize <= 0 {
		c.PoolSize = def.PoolSize
	}
	if c.RecentOps <= 0 {
		c.RecentOps = def.RecentOps
	}
}

// OpRecord 记录一次已完成的引擎操作。
type OpRecord struct {
	Op      string        `json:"op"`
	Status  string        `json:"status"`
	Elapsed time.Duration `json:"elapsed"`
	At      time.Time     `json:"at"`
}

// Engine 是对象引擎的公共入口，所有方法都可以并发调用。
type Engine struct {
	cfg Config

	reg *registry.Registry
	res *refs.Resolver
	ser *serialize.Serializer
	pop *populate.Populator

	pool   *conc.Pool[*member.Member]
	recent *ring.Buffer[OpRecord]

	tracer trace.Tracer
	logger *log.MLogger

	closed atomic.Bool
}

// NewEngine 创建一个引擎实例。
func NewEngine(cfg Config) *Engine {
	cfg.withDefaults()

	reg := registry.NewRegistry()
	res := refs.NewResolver()
	return &Engine{
		cfg:    cfg,
		reg:    reg,
		res:    res,
		ser:    serialize.New(reg, res),
		pop:    populate.New(reg, res),
		pool:   conc.NewPool[*member.Member](cfg.PoolSize),
		recent: ring.New[OpRecord](cfg.RecentOps),
		tracer: otel.Tracer("object-garden"),
		logger: log.With(log.FieldModule("bridge")),
	}
}

// Registry 返回引擎持有的类型注册表。
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Resolver 返回引擎持有的引用解析器。
func (e *Engine) Resolver() *refs.Resolver {
	return e.res
}

// RegisterType 注册一个类型，sample 为该类型（或其指针）的任意值。
func (e *Engine) RegisterType(sample any, opts ...registry.RegisterOption) (*registry.TypeDescriptor, error) {
	return e.reg.Register(sample, opts...)
}

// Identify 为实体登记引用句柄，重复登记返回同一句柄。
func (e *Engine) Identify(entity any) (refs.Handle, error) {
	return e.res.Identify(entity)
}

// Release 释放引用句柄，此后经由该句柄的访问都会失败。
func (e *Engine) Release(h refs.Handle) {
	e.res.Release(h)
}

// Serialize 将实体序列化为 Member 树。
// maxDepth 传负值时使用引擎默认深度；0 是合法深度，只返回顶层占位。
func (e *Engine) Serialize(ctx context.Context, entity any, maxDepth int, includeProps bool) (*member.Member, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if maxDepth < 0 {
		maxDepth = e.cfg.MaxDepth
	}

	_, span := e.tracer.Start(ctx, "Engine.Serialize",
		trace.WithAttributes(attribute.Int("maxDepth", maxDepth)))
	defer span.End()

	start := time.Now()
	m, err := e.ser.Serialize(entity, maxDepth, includeProps)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		metrics.SerializeTotal.WithLabelValues(metrics.StatusFail).Inc()
		e.record("serialize", metrics.StatusFail, elapsed)
		return nil, err
	}

	span.SetAttributes(attribute.Int("nodes", m.NodeCount()))
	metrics.SerializeTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	metrics.SerializeLatency.Observe(float64(elapsed.Microseconds()) / 1000.0)
	metrics.SerializeNodes.Observe(float64(m.NodeCount()))
	e.record("serialize", metrics.StatusSuccess, elapsed)
	return m, nil
}

// SerializeDefault 以引擎默认参数序列化实体。
func (e *Engine) SerializeDefault(ctx context.Context, entity any) (*member.Member, error) {
	return e.Serialize(ctx, entity, e.cfg.MaxDepth, e.cfg.IncludeProps)
}

// SerializeMany 并发序列化多个互不相关的实体，结果按输入顺序排列。
// 任一实体失败时返回聚合错误，成功实体的结果仍然保留在对应位置。
func (e *Engine) SerializeMany(ctx context.Context, entities []any, maxDepth int, includeProps bool) ([]*member.Member, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	futures := make([]*conc.Future[*member.Member], len(entities))
	for i := range entities {
		entity := entities[i]
		futures[i] = e.pool.Submit(func() (*member.Member, error) {
			return e.Serialize(ctx, entity, maxDepth, includeProps)
		})
	}

	results := make([]*member.Member, len(entities))
	var errs []error
	for i := range futures {
		m, err := futures[i].Await()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results[i] = m
	}
	if len(errs) > 0 {
		return results, merr.Combine(errs...)
	}
	return results, nil
}

// Populate 将 diff 树应用到目标实体上。
// 返回的 MutationResult 描述逐节点结果；部分失败不回滚已应用的节点。
func (e *Engine) Populate(ctx context.Context, target any, diff *member.Member) (*populate.MutationResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	_, span := e.tracer.Start(ctx, "Engine.Populate")
	defer span.End()
	if diff != nil {
		span.SetAttributes(attribute.Int("nodes", diff.NodeCount()))
	}

	start := time.Now()
	result, err := e.pop.Populate(target, diff)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		metrics.PopulateTotal.WithLabelValues(metrics.StatusFail).Inc()
		e.record("populate", metrics.StatusFail, elapsed)
		return nil, err
	}

	status := metrics.StatusSuccess
	if !result.Success {
		status = metrics.StatusPartial
		e.logger.Info("populate finished with node failures",
			zap.Int("applied", result.Applied()),
			zap.Int("failed", len(result.Failures)))
	}
	metrics.PopulateTotal.WithLabelValues(status).Inc()
	metrics.PopulateLatency.Observe(float64(elapsed.Microseconds()) / 1000.0)
	e.record("populate", status, elapsed)
	return result, nil
}

// CloneInto 通过"序列化再回写"把 src 的状态复制到 dst 上。
// dst 必须是与 src 同类型（或类型兼容）实体的非空指针。
func (e *Engine) CloneInto(ctx context.Context, src, dst any) error {
	m, err := e.Serialize(ctx, src, e.cfg.MaxDepth, e.cfg.IncludeProps)
	if err != nil {
		return err
	}
	result, err := e.Populate(ctx, dst, m)
	if err != nil {
		return err
	}
	if !result.Success {
		return merr.WrapErrEngineInternal("clone applied partially: " + result.Message)
	}
	return nil
}

// RecentOps 返回最近完成的操作记录，从旧到新排列。
func (e *Engine) RecentOps() []OpRecord {
	return e.recent.Collect()
}

// Close 关闭引擎并释放协程池，之后的调用返回 EngineNotReady。
func (e *Engine) Close() {
	if e.closed.CompareAndSwap(false, true) {
		e.pool.Release()
	}
}

func (e *Engine) checkReady() error {
	if e.closed.Load() {
		return merr.WrapErrEngineNotReady("engine is closed")
	}
	return nil
}

func (e *Engine) record(op, status string, elapsed time.Duration) {
	e.recent.Push(OpRecord{
		Op:      op,
		Status:  status,
		Elapsed: elapsed,
		At:      time.Now(),
	})
}
