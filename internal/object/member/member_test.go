package member

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

func TestMemberKinds(t *testing.T) {
	leaf := NewLeaf("X", "float64", 1.5)
	assert.True(t, leaf.IsLeaf())
	assert.False(t, leaf.IsComposite())
	assert.True(t, leaf.HasValue())

	ref := NewRef("Material", "Material", 42)
	assert.True(t, ref.IsLeaf())
	assert.Equal(t, int64(42), ref.Value)

	placeholder := NewPlaceholder("Child", "Transform")
	assert.True(t, placeholder.IsLeaf())
	assert.False(t, placeholder.HasValue())

	node := NewComposite("Position", "Vector3")
	require.NoError(t, node.AppendField(NewLeaf("X", "float64", 1.0)))
	assert.True(t, node.IsComposite())
	assert.NotNil(t, node.Field("X"))
	assert.Nil(t, node.Field("Y"))
	assert.Nil(t, node.Prop("X"))
}

func TestAppendDuplicate(t *testing.T) {
	node := NewComposite("Position", "Vector3")
	require.NoError(t, node.AppendField(NewLeaf("X", "float64", 1.0)))
	assert.ErrorIs(t, node.AppendField(NewLeaf("X", "float64", 2.0)), merr.ErrMemberMalformed)

	// 字段与属性分属不同寻址空间，允许同名。
	require.NoError(t, node.AppendProp(NewLeaf("X", "float64", 3.0)))
	assert.ErrorIs(t, node.AppendProp(NewLeaf("X", "float64", 4.0)), merr.ErrMemberMalformed)
}

func TestValidate(t *testing.T) {
	valid := NewComposite("", "Cube")
	require.NoError(t, valid.AppendField(NewLeaf("Name", "string", "Cube")))
	assert.NoError(t, valid.Validate())

	missingType := &Member{Name: "Name", Value: "Cube"}
	assert.ErrorIs(t, missingType.Validate(), merr.ErrMemberMalformed)

	both := &Member{
		TypeName: "Cube",
		Value:    1,
		Fields:   []*Member{{Name: "X", TypeName: "float64"}},
	}
	assert.ErrorIs(t, both.Validate(), merr.ErrMemberMalformed)

	dup := &Member{
		TypeName: "Cube",
		Fields: []*Member{
			{Name: "X", TypeName: "float64"},
			{Name: "X", TypeName: "float64"},
		},
	}
	assert.ErrorIs(t, dup.Validate(), merr.ErrMemberMalformed)

	var nilMember *Member
	assert.ErrorIs(t, nilMember.Validate(), merr.ErrMemberMalformed)
}

func TestValidateDiff(t *testing.T) {
	// diff 允许省略 typeName，按名字寻址目标成员。
	diff := &Member{
		Fields: []*Member{
			{
				Name: "Transform",
				Fields: []*Member{
					{Name: "Y", Value: 10.0},
				},
			},
		},
	}
	assert.ErrorIs(t, diff.Validate(), merr.ErrMemberMalformed)
	assert.NoError(t, diff.ValidateDiff())

	// 其余结构不变量依旧生效。
	dup := &Member{
		Fields: []*Member{
			{Name: "X", Value: 1.0},
			{Name: "X", Value: 2.0},
		},
	}
	assert.ErrorIs(t, dup.ValidateDiff(), merr.ErrMemberMalformed)
}

func TestNodeCount(t *testing.T) {
	var nilMember *Member
	assert.Equal(t, 0, nilMember.NodeCount())

	node := NewComposite("", "Cube")
	require.NoError(t, node.AppendField(NewLeaf("Name", "string", "Cube")))
	require.NoError(t, node.AppendProp(NewLeaf("Scale", "float64", 1.0)))
	assert.Equal(t, 3, node.NodeCount())
}

func TestJSONRoundTrip(t *testing.T) {
	node := NewComposite("", "Vector3")
	require.NoError(t, node.AppendField(NewLeaf("X", "float64", 1.5)))
	require.NoError(t, node.AppendField(NewLeaf("Y", "float64", -2.0)))

	data, err := node.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "Vector3", decoded.TypeName)
	require.NotNil(t, decoded.Field("X"))
	assert.Equal(t, 1.5, decoded.Field("X").Value)

	// FromJSON 会拒绝结构非法的输入。
	_, err = FromJSON([]byte(`{"value":1}`))
	assert.ErrorIs(t, err, merr.ErrMemberMalformed)

	_, err = FromJSON([]byte(`{invalid`))
	assert.ErrorIs(t, err, merr.ErrMemberMalformed)
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "a", JoinPath("", "a"))
	assert.Equal(t, "a.b", JoinPath("a", "b"))
	assert.Equal(t, "a[0]", JoinPath("a", "[0]"))
	assert.Equal(t, "[3]", IndexName(3))

	idx, ok := ParseIndexName("[12]")
	assert.True(t, ok)
	assert.Equal(t, 12, idx)

	_, ok = ParseIndexName("foo")
	assert.False(t, ok)
}
