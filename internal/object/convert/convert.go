// Package convert 实现可移植编码与 Go 原生值之间的类型安全转换。
//
// 数值转换是严格的：不回绕、不饱和、不跨种类强转。布尔写整数槽位、
// 字符串写结构槽位、超出目标宽度的数值，一律报 ErrTypeMismatch，
// 由调用方补上出错路径。
package convert

import (
	"fmt"
	"math"
	"reflect"

	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// ToPortable 将标量原生值转为可移植编码中的叶子值。
// 非标量种类返回 ErrTypeMismatch，复合与序列由序列化器展开。
func ToPortable(v reflect.Value) (any, error) {
	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v.Interface(), nil
	default:
		return nil, merr.WrapErrTypeMismatch(v.Type().String(), "scalar")
	}
}

// FromPortable 将可移植编码的叶子值转为目标类型的原生值。
//
// JSON 传输后整数以 int64 到达（internal/json 开启 UseInt64），
// 进程内构造的树可能携带任意原生数值类型，两者都被接受。
func FromPortable(portable any, target reflect.Type) (reflect.Value, error) {
	if portable == nil {
		return reflect.Value{}, merr.WrapErrTypeMismatch("null", target.String())
	}

	out := reflect.New(target).Elem()

	switch target.Kind() {
	case reflect.Bool:
		b, ok := portable.(bool)
		if !ok {
			return reflect.Value{}, mismatch(portable, target)
		}
		out.SetBool(b)

	case reflect.String:
		s, ok := portable.(string)
		if !ok {
			return reflect.Value{}, mismatch(portable, target)
		}
		out.SetString(s)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := asInt64(portable, target)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(i) {
			return reflect.Value{}, outOfRange(portable, target)
		}
		out.SetInt(i)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := asUint64(portable, target)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowUint(u) {
			return reflect.Value{}, outOfRange(portable, target)
		}
		out.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := asFloat64(portable, target)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, outOfRange(portable, target)
		}
		out.SetFloat(f)

	default:
		return reflect.Value{}, mismatch(portable, target)
	}

	return out, nil
}

// asInt64 从可移植值中取出有符号整数。
// 浮点来源必须是整数值（JSON 传输可能把整数编成浮点），
// 小数部分非零视为不兼容而不是截断。
func asInt64(portable any, target reflect.Type) (int64, error) {
	v := reflect.ValueOf(portable)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, outOfRange(portable, target)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
			return 0, mismatch(portable, target)
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, outOfRange(portable, target)
		}
		return int64(f), nil
	default:
		return 0, mismatch(portable, target)
	}
}

// asUint64 从可移植值中取出无符号整数，负值视为越界。
func asUint64(portable any, target reflect.Type) (uint64, error) {
	v := reflect.ValueOf(portable)
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if i < 0 {
			return 0, outOfRange(portable, target)
		}
		return uint64(i), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
			return 0, mismatch(portable, target)
		}
		if f < 0 || f >= math.MaxUint64 {
			return 0, outOfRange(portable, target)
		}
		return uint64(f), nil
	default:
		return 0, mismatch(portable, target)
	}
}

// asFloat64 从可移植值中取出浮点数；整数来源属于显式加宽，允许。
func asFloat64(portable any, target reflect.Type) (float64, error) {
	v := reflect.ValueOf(portable)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	default:
		return 0, mismatch(portable, target)
	}
}

// AsHandle 从可移植值中取出引用句柄的原始整数。
// 句柄在 JSON 中是整数，传输后可能以 int64 或整值浮点到达。
func AsHandle(portable any) (int64, error) {
	if portable == nil {
		return 0, merr.WrapErrTypeMismatch("null", "reference handle")
	}
	v := reflect.ValueOf(portable)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.Trunc(f) != f || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, merr.WrapErrTypeMismatch(portableName(portable), "reference handle")
		}
		return int64(f), nil
	default:
		return 0, merr.WrapErrTypeMismatch(portableName(portable), "reference handle")
	}
}

func mismatch(portable any, target reflect.Type) error {
	return merr.WrapErrTypeMismatch(portableName(portable), target.String())
}

func outOfRange(portable any, target reflect.Type) error {
	return merr.WrapErrTypeMismatch(portableName(portable), target.String(),
		fmt.Sprintf("value %v out of range", portable))
}

func portableName(portable any) string {
	if portable == nil {
		return "null"
	}
	return reflect.TypeOf(portable).String()
}
