package registry

import (
	"reflect"
	"strings"

	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Referable 是引用类实体的标记接口。
//
// 实现了该接口的类型在序列化时只会以引用句柄出现，绝不内联展开；
// 应用侧用它标记不能按值跨进程复制的实体（如场景对象、外部资源）。
type Referable interface {
	RefKind()
}

var referableType = reflect.TypeOf((*Referable)(nil)).Elem()

// FieldDescriptor 描述一个结构字段。
type FieldDescriptor struct {
	Name     string
	TypeName string
	Type     reflect.Type
	// Index 为 reflect.StructField 的字段下标。
	Index int
}

// PropDescriptor 描述一个访问器成员（getter/setter 方法对）。
type PropDescriptor struct {
	Name     string
	TypeName string
	Type     reflect.Type
	CanRead  bool
	CanWrite bool

	// getterName/setterName 为指针接收者方法名，不存在时为空。
	getterName string
	setterName string
}

// TypeDescriptor 是类型注册表的内部实体：一个类型的字段表、属性表、
// 元素类型与可构造性。首次解析时构建，进程生命周期内缓存。
type TypeDescriptor struct {
	Name string
	Type reflect.Type

	Fields []FieldDescriptor
	Props  []PropDescriptor

	// ElemType 为序列类型（slice/array）的元素类型，否则为 nil。
	ElemType     reflect.Type
	ElemTypeName string

	// RefKind 表示该类型的值只能以引用句柄出现在 Member 树中。
	RefKind bool

	constructible bool
}

// IsSequence 判断该类型是否为有序序列（slice/array）。
func (d *TypeDescriptor) IsSequence() bool {
	return d.ElemType != nil
}

// IsScalar 判断该类型是否为标量叶子类型。
func (d *TypeDescriptor) IsScalar() bool {
	switch d.Type.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// Constructible 判断该类型能否被默认构造。
func (d *TypeDescriptor) Constructible() bool {
	return d.constructible
}

// FieldByName 按名字查找结构字段描述。
func (d *TypeDescriptor) FieldByName(name string) (*FieldDescriptor, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// PropByName 按名字查找访问器描述。
func (d *TypeDescriptor) PropByName(name string) (*PropDescriptor, bool) {
	for i := range d.Props {
		if d.Props[i].Name == name {
			return &d.Props[i], true
		}
	}
	return nil, false
}

// ReadProp 调用 getter 读取属性值。
// v 必须是该类型的可寻址值或其指针。
func (p *PropDescriptor) ReadProp(v reflect.Value) (reflect.Value, error) {
	if !p.CanRead {
		return reflect.Value{}, merr.WrapErrMemberReadOnly(p.Name, v.Type().String(), "prop has no getter")
	}
	m, err := propMethod(v, p.getterName)
	if err != nil {
		return reflect.Value{}, err
	}
	out := m.Call(nil)
	return out[0], nil
}

// WriteProp 调用 setter 写入属性值。
// v 必须是该类型的可寻址值或其指针。
func (p *PropDescriptor) WriteProp(v reflect.Value, val reflect.Value) error {
	if !p.CanWrite {
		return merr.WrapErrMemberReadOnly(p.Name, v.Type().String(), "prop has no setter")
	}
	m, err := propMethod(v, p.setterName)
	if err != nil {
		return err
	}
	m.Call([]reflect.Value{val})
	return nil
}

func propMethod(v reflect.Value, name string) (reflect.Value, error) {
	recv := v
	if recv.Kind() != reflect.Pointer {
		if !recv.CanAddr() {
			return reflect.Value{}, merr.WrapErrParameterInvalidMsg(
				"prop access requires addressable value of type %s", recv.Type())
		}
		recv = recv.Addr()
	}
	m := recv.MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, merr.WrapErrMemberUnknown(name, recv.Type().String())
	}
	return m, nil
}

// methodBlocklist 列出不作为属性暴露的常见方法名。
var methodBlocklist = map[string]struct{}{
	"String":   {},
	"GoString": {},
	"Error":    {},
	"RefKind":  {},
}

// buildDescriptor 通过一次反射为类型构建描述表。
// name 为空时使用类型的默认完整名。
func buildDescriptor(t reflect.Type, name string, refKind bool, nameFor func(reflect.Type) string) (*TypeDescriptor, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name == "" {
		name = defaultTypeName(t)
	}

	desc := &TypeDescriptor{
		Name:    name,
		Type:    t,
		RefKind: refKind || implementsReferable(t),
	}

	switch t.Kind() {
	case reflect.Struct:
		desc.constructible = !desc.RefKind
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() || sf.Anonymous {
				continue
			}
			desc.Fields = append(desc.Fields, FieldDescriptor{
				Name:     sf.Name,
				TypeName: nameFor(sf.Type),
				Type:     sf.Type,
				Index:    i,
			})
		}
		desc.Props = discoverProps(t, nameFor)

	case reflect.Slice, reflect.Array:
		desc.constructible = t.Kind() == reflect.Slice
		desc.ElemType = t.Elem()
		desc.ElemTypeName = nameFor(t.Elem())

	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		desc.constructible = true

	case reflect.Interface:
		// 接口类型只能作为多态目标出现，不可构造。
		desc.constructible = false

	default:
		return nil, merr.WrapErrParameterInvalidMsg(
			"unsupported kind %s for type %s", t.Kind(), t)
	}

	return desc, nil
}

// discoverProps 在指针接收者方法集中发现 getter/setter 方法对。
//
// 约定：Foo() T 为可读属性 Foo，SetFoo(T) 为对应的 setter。
// 只有 getter 存在时属性才会被收录，setter 单独存在时忽略。
func discoverProps(t reflect.Type, nameFor func(reflect.Type) string) []PropDescriptor {
	pt := reflect.PointerTo(t)

	setters := make(map[string]reflect.Method)
	var props []PropDescriptor

	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if strings.HasPrefix(m.Name, "Set") && len(m.Name) > 3 &&
			m.Type.NumIn() == 2 && m.Type.NumOut() == 0 {
			setters[m.Name[3:]] = m
		}
	}

	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if _, blocked := methodBlocklist[m.Name]; blocked {
			continue
		}
		if strings.HasPrefix(m.Name, "Set") {
			continue
		}
		// getter: 除接收者外无参数，单返回值
		if m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
			continue
		}
		propType := m.Type.Out(0)
		prop := PropDescriptor{
			Name:       m.Name,
			TypeName:   nameFor(propType),
			Type:       propType,
			CanRead:    true,
			getterName: m.Name,
		}
		if setter, ok := setters[m.Name]; ok && setter.Type.In(1) == propType {
			prop.CanWrite = true
			prop.setterName = setter.Name
		}
		props = append(props, prop)
	}

	return props
}

func implementsReferable(t reflect.Type) bool {
	return t.Implements(referableType) || reflect.PointerTo(t).Implements(referableType)
}

// defaultTypeName 返回类型的默认完整名（reflect 的规范形式）。
func defaultTypeName(t reflect.Type) string {
	return t.String()
}
