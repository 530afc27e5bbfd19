package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameTypeName  = "typeName"
	FieldNamePath      = "path"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldTypeName 返回一个包含类型名的 zap 字段。
func FieldTypeName(typeName string) zap.Field {
	return zap.String(FieldNameTypeName, typeName)
}

// FieldPath 返回一个包含成员路径的 zap 字段。
func FieldPath(path string) zap.Field {
	return zap.String(FieldNamePath, path)
}
