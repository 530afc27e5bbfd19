// Package serialize 实现活对象图到 Member 树的有界深度遍历。
//
// 遍历深度由调用方限定，引用类实体永远只以句柄出现、绝不内联展开，
// 因此环只能经由引用间接延续，无需显式环检测即可保证终止。
package serialize

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/lk2023060901/object-garden-go/internal/object/convert"
	"github.com/lk2023060901/object-garden-go/internal/object/member"
	"github.com/lk2023060901/object-garden-go/internal/object/refs"
	"github.com/lk2023060901/object-garden-go/internal/object/registry"
	"github.com/lk2023060901/object-garden-go/pkg/log"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Serializer 将活对象转换为可移植的 Member 树。
type Serializer struct {
	reg *registry.Registry
	res *refs.Resolver

	logger *log.MLogger
}

// New 创建一个序列化器。
func New(reg *registry.Registry, res *refs.Resolver) *Serializer {
	return &Serializer{
		reg: reg,
		res: res,
		logger: log.With(log.FieldComponent("serializer")).
			WithRateGroup("serialize.skipped", 1, 60),
	}
}

// Serialize 将实体序列化为 Member 树。
//
// maxDepth 限定复合节点链的最大长度；预算耗尽后子节点退化为只携带
// 类型名（引用类还携带句柄）的截断占位，不再展开。includeProps 控制
// 是否序列化访问器成员。
//
// 顶层实体无法解析类型时返回调用级错误；子节点的类型解析失败只影响
// 该节点，兄弟节点照常完成。
func (s *Serializer) Serialize(entity any, maxDepth int, includeProps bool) (*member.Member, error) {
	if entity == nil {
		return nil, merr.WrapErrParameterInvalidMsg("cannot serialize nil entity")
	}
	if maxDepth < 0 {
		return nil, merr.WrapErrParameterInvalid(0, maxDepth, "maxDepth must not be negative")
	}

	v := reflect.ValueOf(entity)
	m, err := s.walk(v, "", maxDepth, includeProps)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// walk 递归序列化一个值。返回 (nil, nil) 表示该节点被跳过。
func (s *Serializer) walk(v reflect.Value, name string, depth int, includeProps bool) (*member.Member, error) {
	// 解开接口与指针，拿到具体值。
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			// 真正未设置的可选槽位：只携带类型名，不携带值。
			return member.NewPlaceholder(name, s.reg.TypeNameOf(v.Type())), nil
		}
		if v.Kind() == reflect.Pointer {
			// 引用类实体必须以指针身份登记，先于解引用判断。
			if desc, err := s.reg.ResolveType(v.Type()); err == nil && desc.RefKind {
				return s.refLeaf(v, name, desc)
			}
		}
		v = v.Elem()
	}

	desc, err := s.reg.ResolveType(v.Type())
	if err != nil {
		return nil, err
	}

	if desc.RefKind {
		if !v.CanAddr() {
			// 无法取得稳定身份，退化为截断占位。
			s.logger.RatedWarn(1, "ref-kind value not addressable, emitting placeholder",
				log.FieldTypeName(desc.Name))
			return member.NewPlaceholder(name, desc.Name), nil
		}
		return s.refLeaf(v.Addr(), name, desc)
	}

	if desc.IsScalar() {
		value, err := convert.ToPortable(v)
		if err != nil {
			return nil, err
		}
		return member.NewLeaf(name, desc.Name, value), nil
	}

	// 深度预算耗尽：复合节点截断为占位，不再展开。
	if depth <= 0 {
		return member.NewPlaceholder(name, desc.Name), nil
	}

	if desc.IsSequence() {
		return s.walkSequence(v, name, desc, depth, includeProps)
	}

	return s.walkStruct(v, name, desc, depth, includeProps)
}

func (s *Serializer) refLeaf(ptr reflect.Value, name string, desc *registry.TypeDescriptor) (*member.Member, error) {
	h, err := s.res.Identify(ptr.Interface())
	if err != nil {
		return nil, err
	}
	return member.NewRef(name, desc.Name, int64(h)), nil
}

func (s *Serializer) walkStruct(v reflect.Value, name string, desc *registry.TypeDescriptor, depth int, includeProps bool) (*member.Member, error) {
	node := member.NewComposite(name, desc.Name)

	// 字段按声明顺序输出；空值/默认值照常输出，保证可回放。
	for i := range desc.Fields {
		fd := &desc.Fields[i]
		child, err := s.walk(v.Field(fd.Index), fd.Name, depth-1, includeProps)
		if err != nil {
			// 类型解析失败只影响该节点，兄弟节点照常完成。
			s.logger.RatedWarn(1, "skip unserializable field",
				log.FieldTypeName(desc.Name),
				zap.String("field", fd.Name),
				zap.Error(err))
			continue
		}
		if child == nil {
			continue
		}
		if err := node.AppendField(child); err != nil {
			return nil, err
		}
	}

	if includeProps {
		for i := range desc.Props {
			pd := &desc.Props[i]
			if !pd.CanRead {
				continue
			}
			pv, err := pd.ReadProp(v)
			if err != nil {
				s.logger.RatedWarn(1, "skip unreadable prop",
					log.FieldTypeName(desc.Name),
					zap.String("prop", pd.Name),
					zap.Error(err))
				continue
			}
			child, err := s.walk(pv, pd.Name, depth-1, includeProps)
			if err != nil {
				s.logger.RatedWarn(1, "skip unserializable prop",
					log.FieldTypeName(desc.Name),
					zap.String("prop", pd.Name),
					zap.Error(err))
				continue
			}
			if child == nil {
				continue
			}
			if err := node.AppendProp(child); err != nil {
				return nil, err
			}
		}
	}

	return node, nil
}

func (s *Serializer) walkSequence(v reflect.Value, name string, desc *registry.TypeDescriptor, depth int, includeProps bool) (*member.Member, error) {
	node := member.NewComposite(name, desc.Name)

	for i := 0; i < v.Len(); i++ {
		child, err := s.walk(v.Index(i), member.IndexName(i), depth-1, includeProps)
		if err != nil {
			s.logger.RatedWarn(1, "skip unserializable element",
				log.FieldTypeName(desc.Name),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		if child == nil {
			continue
		}
		if err := node.AppendField(child); err != nil {
			return nil, err
		}
	}

	return node, nil
}
