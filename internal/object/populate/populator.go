// Package populate 实现 diff 树到活对象的原位回写。
//
// diff 按名字寻址目标成员，逐节点转换并写入；单个节点的失败只影响
// 该节点，兄弟节点照常应用，所有结果聚合到 MutationResult 中返回。
// 已应用的节点不会因后续节点失败而回滚。
package populate

import (
	"reflect"

	"github.com/lk2023060901/object-garden-go/internal/object/convert"
	"github.com/lk2023060901/object-garden-go/internal/object/member"
	"github.com/lk2023060901/object-garden-go/internal/object/refs"
	"github.com/lk2023060901/object-garden-go/internal/object/registry"
	"github.com/lk2023060901/object-garden-go/pkg/log"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Populator 将 diff 树应用到活对象上。
type Populator struct {
	reg *registry.Registry
	res *refs.Resolver

	logger *log.MLogger
}

// New 创建一个回写器。
func New(reg *registry.Registry, res *refs.Resolver) *Populator {
	return &Populator{
		reg:    reg,
		res:    res,
		logger: log.With(log.FieldComponent("populator")),
	}
}

// Populate 将 diff 应用到目标实体上。
//
// target 必须是指向可寻址实体的非空指针。只有顶层输入非法
// （nil diff、nil target、目标类型完全无法解析）才返回调用级错误；
// 其余失败都是节点级的，累积在 MutationResult 中。
func (p *Populator) Populate(target any, diff *member.Member) (*MutationResult, error) {
	if err := merr.CheckTarget(target); err != nil {
		return nil, err
	}
	if err := diff.ValidateDiff(); err != nil {
		return nil, err
	}

	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, merr.WrapErrParameterInvalidMsg(
			"target must be a non-nil pointer, got %T", target)
	}
	v = v.Elem()

	desc, err := p.reg.ResolveType(v.Type())
	if err != nil {
		return nil, err
	}

	result := newResult()

	// 顶层类型断言：diff 声明的类型必须能赋给目标。
	if diff.TypeName != "" && !p.typeNameCompatible(diff.TypeName, v.Type()) {
		result.addFailure("", merr.WrapErrTypeMismatch(diff.TypeName, desc.Name))
		result.finalize()
		return result, nil
	}

	p.populateInto(v, desc, diff, "", result)
	result.finalize()
	return result, nil
}

// populateInto 将 diff 的子节点应用到一个已定位的复合值上。
func (p *Populator) populateInto(v reflect.Value, desc *registry.TypeDescriptor, diff *member.Member, path string, result *MutationResult) {
	if desc.IsSequence() {
		p.populateSequence(v, desc, diff, path, result)
		return
	}

	for _, child := range diff.Fields {
		childPath := member.JoinPath(path, child.Name)
		fd, ok := desc.FieldByName(child.Name)
		if !ok {
			result.addFailure(childPath, merr.WrapErrMemberUnknown(child.Name, desc.Name))
			continue
		}
		p.applyToSlot(v.Field(fd.Index), child, childPath, result)
	}

	for _, child := range diff.Props {
		childPath := member.JoinPath(path, child.Name)
		pd, ok := desc.PropByName(child.Name)
		if !ok {
			result.addFailure(childPath, merr.WrapErrMemberUnknown(child.Name, desc.Name))
			continue
		}
		p.applyToProp(v, pd, child, childPath, result)
	}
}

// applyToSlot 将一个 diff 节点应用到可寻址槽位上。
func (p *Populator) applyToSlot(slot reflect.Value, node *member.Member, path string, result *MutationResult) {
	// diff 节点声明了类型时，先做兼容性断言。
	if node.TypeName != "" && !p.typeNameCompatible(node.TypeName, slot.Type()) {
		if _, err := p.reg.Resolve(node.TypeName); err != nil {
			result.addFailure(path, err)
		} else {
			result.addFailure(path, merr.WrapErrTypeMismatch(node.TypeName, p.reg.TypeNameOf(slot.Type())))
		}
		return
	}

	slotDesc, err := p.reg.ResolveType(slot.Type())
	if err != nil {
		result.addFailure(path, err)
		return
	}

	// 引用类槽位：diff 携带句柄，解析出活实体后整体重指。
	if slotDesc.RefKind {
		p.assignReference(slot, slotDesc, node, path, result)
		return
	}

	if node.IsComposite() {
		target, targetDesc, err := p.materialize(slot, slotDesc)
		if err != nil {
			result.addFailure(path, err)
			return
		}
		// 原位递归：只更新 diff 提到的成员，绝不重建容器。
		p.populateInto(target, targetDesc, node, path, result)
		return
	}

	if !node.HasValue() {
		// 纯占位节点没有可应用的内容。
		return
	}

	converted, err := convert.FromPortable(node.Value, slot.Type())
	if err != nil {
		result.addFailure(path, err)
		return
	}
	slot.Set(converted)
	result.markApplied()
}

// materialize 解开槽位上的指针/接口，缺失的中间容器按需默认构造。
func (p *Populator) materialize(slot reflect.Value, slotDesc *registry.TypeDescriptor) (reflect.Value, *registry.TypeDescriptor, error) {
	v := slot
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			elemDesc, err := p.reg.ResolveType(v.Type().Elem())
			if err != nil {
				return reflect.Value{}, nil, err
			}
			fresh, err := p.reg.NewOf(elemDesc)
			if err != nil {
				return reflect.Value{}, nil, err
			}
			v.Set(fresh)
		}
		v = v.Elem()
	}

	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, nil, merr.WrapErrCannotConstruct(slotDesc.Name,
				"interface slot is nil and carries no concrete type")
		}
		inner := v.Elem()
		if inner.Kind() == reflect.Pointer && !inner.IsNil() {
			v = inner.Elem()
		} else {
			return reflect.Value{}, nil, merr.WrapErrParameterInvalidMsg(
				"cannot populate value stored in interface slot %s in place", slotDesc.Name)
		}
	}

	desc, err := p.reg.ResolveType(v.Type())
	if err != nil {
		return reflect.Value{}, nil, err
	}
	return v, desc, nil
}

// assignReference 把引用句柄解析为活实体并赋给槽位。
func (p *Populator) assignReference(slot reflect.Value, slotDesc *registry.TypeDescriptor, node *member.Member, path string, result *MutationResult) {
	ev, ok := p.resolveReference(slot.Type(), slotDesc, node, path, result)
	if !ok {
		return
	}
	slot.Set(ev)
	result.markApplied()
}

// resolveReference 把引用句柄解析为可赋给槽位类型的活实体值。
// 失败记入 result 并返回 false；无值占位节点返回 false 且不记失败。
func (p *Populator) resolveReference(slotType reflect.Type, slotDesc *registry.TypeDescriptor, node *member.Member, path string, result *MutationResult) (reflect.Value, bool) {
	if node.IsComposite() {
		// 引用类实体只能重指，不能通过 diff 展开修改。
		result.addFailure(path, merr.WrapErrTypeMismatch("composite node", slotDesc.Name,
			"ref-kind slot accepts a handle only"))
		return reflect.Value{}, false
	}
	if !node.HasValue() {
		return reflect.Value{}, false
	}

	raw, err := convert.AsHandle(node.Value)
	if err != nil {
		result.addFailure(path, err)
		return reflect.Value{}, false
	}
	entity, err := p.res.Lookup(refs.Handle(raw))
	if err != nil {
		result.addFailure(path, err)
		return reflect.Value{}, false
	}

	ev := reflect.ValueOf(entity)
	if !ev.Type().AssignableTo(slotType) {
		// 槽位是具体类型而实体以指针登记：尝试解引用赋值。
		if ev.Kind() == reflect.Pointer && ev.Type().Elem().AssignableTo(slotType) {
			ev = ev.Elem()
		} else {
			result.addFailure(path, merr.WrapErrTypeNotAssignable(
				p.reg.TypeNameOf(ev.Type()), p.reg.TypeNameOf(slotType)))
			return reflect.Value{}, false
		}
	}
	return ev, true
}

// applyToProp 将一个 diff 节点应用到访问器成员上。
// 复合属性采用读出-修改-写回：getter 返回副本，修改后经 setter 写回。
func (p *Populator) applyToProp(recv reflect.Value, pd *registry.PropDescriptor, node *member.Member, path string, result *MutationResult) {
	if !pd.CanWrite {
		result.addFailure(path, merr.WrapErrMemberReadOnly(pd.Name, p.reg.TypeNameOf(recv.Type())))
		return
	}
	if node.TypeName != "" && !p.typeNameCompatible(node.TypeName, pd.Type) {
		if _, err := p.reg.Resolve(node.TypeName); err != nil {
			result.addFailure(path, err)
		} else {
			result.addFailure(path, merr.WrapErrTypeMismatch(node.TypeName, pd.TypeName))
		}
		return
	}

	propDesc, err := p.reg.ResolveType(pd.Type)
	if err != nil {
		result.addFailure(path, err)
		return
	}

	// 引用类属性：diff 携带句柄，解析出活实体后经 setter 整体重指。
	if propDesc.RefKind {
		ev, ok := p.resolveReference(pd.Type, propDesc, node, path, result)
		if !ok {
			return
		}
		if err := pd.WriteProp(recv, ev); err != nil {
			result.addFailure(path, err)
			return
		}
		result.markApplied()
		return
	}

	if node.IsComposite() {
		current, err := pd.ReadProp(recv)
		if err != nil {
			result.addFailure(path, err)
			return
		}
		scratch := reflect.New(pd.Type).Elem()
		scratch.Set(current)

		// getter 返回指针时解到被指对象再递归，nil 指针按需默认构造。
		inner, innerDesc, err := p.materialize(scratch, propDesc)
		if err != nil {
			result.addFailure(path, err)
			return
		}

		before := len(result.Failures)
		p.populateInto(inner, innerDesc, node, path, result)
		if len(result.Failures) > before {
			// 子节点有失败时仍写回：已成功的子更新不回滚。
			p.logger.Debug("prop write-back with partial failures",
				log.FieldPath(path))
		}
		if err := pd.WriteProp(recv, scratch); err != nil {
			result.addFailure(path, err)
		}
		return
	}

	if !node.HasValue() {
		return
	}

	converted, err := convert.FromPortable(node.Value, pd.Type)
	if err != nil {
		result.addFailure(path, err)
		return
	}
	if err := pd.WriteProp(recv, converted); err != nil {
		result.addFailure(path, err)
		return
	}
	result.markApplied()
}

// populateSequence 将带位置标记的 diff 子节点应用到序列元素上。
// 越界下标与无法解析的引用句柄都是元素级失败，不中止整个序列。
func (p *Populator) populateSequence(v reflect.Value, desc *registry.TypeDescriptor, diff *member.Member, path string, result *MutationResult) {
	for _, child := range diff.Fields {
		idx, ok := member.ParseIndexName(child.Name)
		if !ok {
			result.addFailure(member.JoinPath(path, child.Name),
				merr.WrapErrMemberUnknown(child.Name, desc.Name, "sequence elements use index names"))
			continue
		}
		childPath := path + member.IndexName(idx)
		if idx >= v.Len() {
			result.addFailure(childPath, merr.WrapErrIndexOutOfRange(idx, v.Len()))
			continue
		}
		p.applyToSlot(v.Index(idx), child, childPath, result)
	}
}

// typeNameCompatible 判断 diff 声明的类型名能否赋给目标槽位。
// 未注册的声明类型视为不兼容，由调用方归因为 TypeNotFound。
func (p *Populator) typeNameCompatible(typeName string, slotType reflect.Type) bool {
	declared, err := p.reg.Resolve(typeName)
	if err != nil {
		return false
	}
	for slotType.Kind() == reflect.Pointer {
		slotType = slotType.Elem()
	}
	if declared.Type == slotType {
		return true
	}
	if declared.Type.AssignableTo(slotType) {
		return true
	}
	if slotType.Kind() == reflect.Interface {
		return declared.Type.Implements(slotType) ||
			reflect.PointerTo(declared.Type).Implements(slotType)
	}
	return false
}
