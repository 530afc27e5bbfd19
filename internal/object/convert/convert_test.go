package convert

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

func fromPortable(t *testing.T, portable any, target any) (reflect.Value, error) {
	t.Helper()
	return FromPortable(portable, reflect.TypeOf(target))
}

func TestToPortable(t *testing.T) {
	v, err := ToPortable(reflect.ValueOf(int32(7)))
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)

	v, err = ToPortable(reflect.ValueOf("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, err = ToPortable(reflect.ValueOf(struct{}{}))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
}

func TestFromPortableExactKinds(t *testing.T) {
	v, err := fromPortable(t, true, false)
	require.NoError(t, err)
	assert.Equal(t, true, v.Interface())

	v, err = fromPortable(t, "cube", "")
	require.NoError(t, err)
	assert.Equal(t, "cube", v.Interface())

	v, err = fromPortable(t, int64(300), int16(0))
	require.NoError(t, err)
	assert.Equal(t, int16(300), v.Interface())

	v, err = fromPortable(t, int64(42), uint8(0))
	require.NoError(t, err)
	assert.Equal(t, uint8(42), v.Interface())

	v, err = fromPortable(t, 1.5, float32(0))
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), v.Interface())
}

func TestFromPortableNoCrossKindCoercion(t *testing.T) {
	// 布尔不写数值槽位。
	_, err := fromPortable(t, true, int64(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)

	// 数字不写布尔槽位。
	_, err = fromPortable(t, int64(1), false)
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)

	// 字符串不写数值槽位，数值不写字符串槽位。
	_, err = fromPortable(t, "1", int32(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
	_, err = fromPortable(t, int64(1), "")
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)

	// nil 不写任何槽位。
	_, err = fromPortable(t, nil, int64(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
}

func TestFromPortableNoTruncation(t *testing.T) {
	// 小数写整数槽位：不截断。
	_, err := fromPortable(t, 1.5, int64(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)

	// 整值浮点写整数槽位：接受（JSON 传输可能把整数编成浮点）。
	v, err := fromPortable(t, float64(7), int32(0))
	require.NoError(t, err)
	assert.Equal(t, int32(7), v.Interface())

	// NaN/Inf 不是整数。
	_, err = fromPortable(t, math.NaN(), int64(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
	_, err = fromPortable(t, math.Inf(1), int64(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
}

func TestFromPortableNoWrapNoSaturate(t *testing.T) {
	// 超出目标宽度：不回绕、不饱和。
	_, err := fromPortable(t, int64(300), int8(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)

	_, err = fromPortable(t, int64(70000), uint16(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)

	// 负数不写无符号槽位。
	_, err = fromPortable(t, int64(-1), uint32(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)

	// uint64 高位值不写有符号槽位。
	_, err = fromPortable(t, uint64(math.MaxUint64), int64(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)

	// float64 超出 float32 范围。
	_, err = fromPortable(t, math.MaxFloat64, float32(0))
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
}

func TestFromPortableWidening(t *testing.T) {
	// 整数写浮点槽位是显式加宽，允许。
	v, err := fromPortable(t, int64(7), float64(0))
	require.NoError(t, err)
	assert.Equal(t, float64(7), v.Interface())

	v, err = fromPortable(t, uint64(9), float32(0))
	require.NoError(t, err)
	assert.Equal(t, float32(9), v.Interface())
}

func TestAsHandle(t *testing.T) {
	h, err := AsHandle(int64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), h)

	// JSON 解码侧可能把句柄编成整值浮点。
	h, err = AsHandle(float64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), h)

	_, err = AsHandle(42.5)
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
	_, err = AsHandle("42")
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
	_, err = AsHandle(nil)
	assert.ErrorIs(t, err, merr.ErrTypeMismatch)
}
