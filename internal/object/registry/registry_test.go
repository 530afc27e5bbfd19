package registry

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

type vector3 struct {
	X, Y, Z float64
}

type transform struct {
	Position vector3
	Rotation vector3
	scale    float64
}

func (t *transform) Scale() float64     { return t.scale }
func (t *transform) SetScale(s float64) { t.scale = s }

// Generation 只有 getter，是只读属性。
func (t *transform) Generation() int { return 1 }

type material struct {
	Shader string
}

func (m *material) RefKind() {}

type named interface {
	Name() string
}

type labeled struct {
	text string
}

func (l *labeled) Name() string { return l.text }

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry()

	d1, err := r.Register(vector3{}, WithName("Vector3"))
	require.NoError(t, err)
	assert.Equal(t, "Vector3", d1.Name)

	// 同一类型重复注册幂等。
	d2, err := r.Register(vector3{}, WithName("Vector3"))
	require.NoError(t, err)
	assert.Same(t, d1, d2)

	// 指针样本与值样本归一到同一描述表。
	d3, err := r.Register(&vector3{}, WithName("Vector3"))
	require.NoError(t, err)
	assert.Same(t, d1, d3)
}

func TestRegisterDuplicateName(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register(vector3{}, WithName("Thing"))
	require.NoError(t, err)

	// 同名但不同类型：拒绝。
	_, err = r.Register(transform{}, WithName("Thing"))
	assert.ErrorIs(t, err, merr.ErrTypeDuplicate)
}

func TestResolveExactMatch(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(vector3{}, WithName("Vector3"))
	require.NoError(t, err)

	d, err := r.Resolve("Vector3")
	require.NoError(t, err)
	assert.Equal(t, "Vector3", d.Name)

	// 大小写敏感、精确匹配。
	_, err = r.Resolve("vector3")
	assert.ErrorIs(t, err, merr.ErrTypeNotFound)
	_, err = r.Resolve("Vector")
	assert.ErrorIs(t, err, merr.ErrTypeNotFound)
}

func TestResolveNoNegativeCache(t *testing.T) {
	r := NewRegistry()

	// 解析失败不缓存：之后注册成功即可解析。
	_, err := r.Resolve("Late")
	require.ErrorIs(t, err, merr.ErrTypeNotFound)

	_, err = r.Register(vector3{}, WithName("Late"))
	require.NoError(t, err)

	_, err = r.Resolve("Late")
	assert.NoError(t, err)
}

func TestResolveTypeLazy(t *testing.T) {
	r := NewRegistry()
	before := r.Size()

	// 未注册的类型按需构建并缓存。
	d, err := r.ResolveType(reflect.TypeOf(transform{}))
	require.NoError(t, err)
	assert.Equal(t, r.Size(), before+1)

	d2, err := r.ResolveType(reflect.TypeOf(&transform{}))
	require.NoError(t, err)
	assert.Same(t, d, d2)

	// 惰性构建使用默认名，默认名也可解析。
	d3, err := r.Resolve(reflect.TypeOf(transform{}).String())
	require.NoError(t, err)
	assert.Same(t, d, d3)
}

func TestDescriptorFieldsAndProps(t *testing.T) {
	r := NewRegistry()
	d, err := r.ResolveType(reflect.TypeOf(transform{}))
	require.NoError(t, err)

	// 导出字段按声明顺序；未导出字段跳过。
	require.Len(t, d.Fields, 2)
	assert.Equal(t, "Position", d.Fields[0].Name)
	assert.Equal(t, "Rotation", d.Fields[1].Name)
	_, ok := d.FieldByName("scale")
	assert.False(t, ok)

	// getter/setter 对成为可写属性，仅 getter 的是只读属性。
	scale, ok := d.PropByName("Scale")
	require.True(t, ok)
	assert.True(t, scale.CanRead)
	assert.True(t, scale.CanWrite)

	gen, ok := d.PropByName("Generation")
	require.True(t, ok)
	assert.True(t, gen.CanRead)
	assert.False(t, gen.CanWrite)
}

func TestPropReadWrite(t *testing.T) {
	r := NewRegistry()
	d, err := r.ResolveType(reflect.TypeOf(transform{}))
	require.NoError(t, err)

	obj := &transform{}
	v := reflect.ValueOf(obj).Elem()

	scale, _ := d.PropByName("Scale")
	require.NoError(t, scale.WriteProp(v, reflect.ValueOf(2.5)))
	got, err := scale.ReadProp(v)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.Interface())

	gen, _ := d.PropByName("Generation")
	assert.ErrorIs(t, gen.WriteProp(v, reflect.ValueOf(2)), merr.ErrMemberReadOnly)
}

func TestRefKindDetection(t *testing.T) {
	r := NewRegistry()

	// Referable 标记接口自动识别。
	d, err := r.ResolveType(reflect.TypeOf(&material{}))
	require.NoError(t, err)
	assert.True(t, d.RefKind)
	assert.False(t, d.Constructible())

	// AsRef 选项显式标记。
	d2, err := r.Register(vector3{}, WithName("RefVector"), AsRef())
	require.NoError(t, err)
	assert.True(t, d2.RefKind)
}

func TestIsAssignable(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(labeled{}, WithName("Labeled"))
	require.NoError(t, err)
	_, err = r.Register(vector3{}, WithName("Vector3"))
	require.NoError(t, err)

	ifaceType := reflect.TypeOf((*named)(nil)).Elem()
	d, err := r.ResolveType(ifaceType)
	require.NoError(t, err)
	// 接口类型不可构造。
	assert.False(t, d.Constructible())
	_, err = r.NewOf(d)
	assert.ErrorIs(t, err, merr.ErrCannotConstruct)

	assert.True(t, r.IsAssignable("Vector3", "Vector3"))
	assert.False(t, r.IsAssignable("Vector3", "Labeled"))
	assert.False(t, r.IsAssignable("Vector3", "NoSuchType"))

	// 指针方法集满足接口。
	assert.True(t, isAssignableType(reflect.TypeOf(labeled{}), ifaceType))
	assert.False(t, isAssignableType(reflect.TypeOf(vector3{}), ifaceType))
}

func TestNewInstance(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(vector3{}, WithName("Vector3"))
	require.NoError(t, err)

	v, err := r.New("Vector3")
	require.NoError(t, err)
	assert.Equal(t, reflect.Pointer, v.Kind())
	assert.IsType(t, &vector3{}, v.Interface())

	_, err = r.New("NoSuchType")
	assert.ErrorIs(t, err, merr.ErrTypeNotFound)

	// 引用类不可默认构造。
	d, err := r.ResolveType(reflect.TypeOf(&material{}))
	require.NoError(t, err)
	_, err = r.NewOf(d)
	assert.ErrorIs(t, err, merr.ErrCannotConstruct)
}

func TestBuiltinScalars(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"bool", "string", "int64", "uint8", "float64"} {
		d, err := r.Resolve(name)
		require.NoError(t, err, name)
		assert.True(t, d.IsScalar(), name)
	}
}

func TestUnsupportedKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.ResolveType(reflect.TypeOf(map[string]int{}))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	_, err = r.ResolveType(reflect.TypeOf(make(chan int)))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestSequenceDescriptor(t *testing.T) {
	r := NewRegistry()
	d, err := r.ResolveType(reflect.TypeOf([]vector3{}))
	require.NoError(t, err)
	assert.True(t, d.IsSequence())
	assert.Equal(t, reflect.TypeOf(vector3{}), d.ElemType)
	assert.True(t, d.Constructible())

	arr, err := r.ResolveType(reflect.TypeOf([4]float64{}))
	require.NoError(t, err)
	assert.True(t, arr.IsSequence())
	// 数组长度固定，不支持默认构造后追加，仍可原位回写。
	assert.False(t, arr.Constructible())
}
