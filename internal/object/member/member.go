// Package member 定义对象图的可移植树形表示。
//
// 一棵 Member 树是自描述的：每个节点都携带完整类型名，叶子节点携带
// 标量值或引用句柄，复合节点携带有序的子节点序列。远端调用方与本进程
// 之间只交换这一种表示。
package member

import (
	"fmt"

	"github.com/lk2023060901/object-garden-go/internal/json"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
	"github.com/lk2023060901/object-garden-go/pkg/util/typeutil"
)

// Member 表示对象图中一个具名值。
//
// 约束：
//   - TypeName 必填，缺失视为非法输入而不是取默认值；
//   - 叶子节点只允许 Value，复合节点只允许 Fields/Props，两者互斥；
//   - 同一 Fields 或 Props 序列内名字唯一；
//   - 引用类对象的节点只携带引用句柄，绝不内联展开。
type Member struct {
	// Name 为字段/属性名；数组元素等匿名场景使用位置标记（如 "[0]"）。
	Name string `json:"name,omitempty"`

	// TypeName 为完整类型名。
	TypeName string `json:"typeName"`

	// Value 为叶子节点的标量值或引用句柄，复合节点为空。
	Value any `json:"value,omitempty"`

	// Fields 为结构字段子节点，按声明顺序排列。
	Fields []*Member `json:"fields,omitempty"`

	// Props 为访问器（getter/setter）子节点，与 Fields 分属不同的寻址
	// 空间，两边允许出现同名成员。
	Props []*Member `json:"props,omitempty"`
}

// NewLeaf 创建一个叶子节点。
func NewLeaf(name, typeName string, value any) *Member {
	return &Member{
		Name:     name,
		TypeName: typeName,
		Value:    value,
	}
}

// NewComposite 创建一个复合节点。
func NewComposite(name, typeName string) *Member {
	return &Member{
		Name:     name,
		TypeName: typeName,
	}
}

// NewRef 创建一个引用叶子节点，value 为引用句柄。
func NewRef(name, typeName string, handle int64) *Member {
	return &Member{
		Name:     name,
		TypeName: typeName,
		Value:    handle,
	}
}

// NewPlaceholder 创建一个仅携带类型名的截断占位节点。
// 深度预算耗尽时，序列化器用它代替继续展开的子树。
func NewPlaceholder(name, typeName string) *Member {
	return &Member{
		Name:     name,
		TypeName: typeName,
	}
}

// IsLeaf 判断节点是否为叶子（不含任何子节点）。
func (m *Member) IsLeaf() bool {
	return len(m.Fields) == 0 && len(m.Props) == 0
}

// IsComposite 判断节点是否为复合节点。
func (m *Member) IsComposite() bool {
	return !m.IsLeaf()
}

// HasValue 判断节点是否携带标量值或引用句柄。
func (m *Member) HasValue() bool {
	return m.Value != nil
}

// Field 按名字查找结构字段子节点，不存在时返回 nil。
func (m *Member) Field(name string) *Member {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Prop 按名字查找访问器子节点，不存在时返回 nil。
func (m *Member) Prop(name string) *Member {
	for _, p := range m.Props {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// AppendField 追加一个结构字段子节点。
// 与已有字段同名时返回错误（构造期不变量）。
func (m *Member) AppendField(child *Member) error {
	for _, f := range m.Fields {
		if f.Name == child.Name {
			return merr.WrapErrMemberMalformed(
				fmt.Sprintf("duplicate field name %q under %q", child.Name, m.TypeName))
		}
	}
	m.Fields = append(m.Fields, child)
	return nil
}

// AppendProp 追加一个访问器子节点。
// 与已有属性同名时返回错误（构造期不变量）。
func (m *Member) AppendProp(child *Member) error {
	for _, p := range m.Props {
		if p.Name == child.Name {
			return merr.WrapErrMemberMalformed(
				fmt.Sprintf("duplicate prop name %q under %q", child.Name, m.TypeName))
		}
	}
	m.Props = append(m.Props, child)
	return nil
}

// Validate 递归校验整棵树的结构不变量。
// 返回的错误携带首个违规节点的路径。
func (m *Member) Validate() error {
	if m == nil {
		return merr.WrapErrMemberMalformed("nil member")
	}
	return m.validate("", true)
}

// ValidateDiff 校验一棵 diff 树的结构不变量。
// 与 Validate 不同，diff 节点允许省略 typeName：diff 按名字寻址目标
// 成员，类型兼容性以目标槽位为准，在应用时逐节点检查。
func (m *Member) ValidateDiff() error {
	if m == nil {
		return merr.WrapErrMemberMalformed("nil diff")
	}
	return m.validate("", false)
}

func (m *Member) validate(path string, requireType bool) error {
	path = JoinPath(path, m.Name)

	if requireType && m.TypeName == "" {
		return merr.WrapErrMemberMalformed("missing typeName", "path: "+displayPath(path))
	}
	if m.HasValue() && m.IsComposite() {
		return merr.WrapErrMemberMalformed("node is both scalar and container", "path: "+displayPath(path))
	}

	names := typeutil.NewSet[string]()
	for _, f := range m.Fields {
		if f.Name != "" && !names.TryInsert(f.Name) {
			return merr.WrapErrMemberMalformed(
				fmt.Sprintf("duplicate field name %q", f.Name), "path: "+displayPath(path))
		}
		if err := f.validate(path, requireType); err != nil {
			return err
		}
	}

	names = typeutil.NewSet[string]()
	for _, p := range m.Props {
		if p.Name != "" && !names.TryInsert(p.Name) {
			return merr.WrapErrMemberMalformed(
				fmt.Sprintf("duplicate prop name %q", p.Name), "path: "+displayPath(path))
		}
		if err := p.validate(path, requireType); err != nil {
			return err
		}
	}

	return nil
}

// NodeCount 返回整棵树的节点总数。
func (m *Member) NodeCount() int {
	if m == nil {
		return 0
	}
	count := 1
	for _, f := range m.Fields {
		count += f.NodeCount()
	}
	for _, p := range m.Props {
		count += p.NodeCount()
	}
	return count
}

// ToJSON 将 Member 树编码为 JSON 字节序列。
func (m *Member) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON 将 JSON 字节序列解码为 Member 树并校验结构不变量。
func FromJSON(data []byte) (*Member, error) {
	var m Member
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, merr.WrapErrMemberMalformed(err.Error())
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
