package member

import (
	"fmt"
	"strconv"
	"strings"
)

// 路径工具：错误报告使用 "a.b[2].c" 形式的成员路径定位失败节点。

// JoinPath 将子节点名拼接到父路径上。
// 位置标记（"[i]"）直接追加，不加分隔点。
func JoinPath(parent, name string) string {
	if name == "" {
		return parent
	}
	if strings.HasPrefix(name, "[") {
		return parent + name
	}
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// displayPath 返回用于错误信息的路径，空路径显示为根标记。
func displayPath(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

// IndexName 返回数组元素使用的位置标记，如 "[3]"。
func IndexName(i int) string {
	return fmt.Sprintf("[%d]", i)
}

// ParseIndexName 解析位置标记。
// 返回 false 表示 name 不是合法的位置标记。
func ParseIndexName(name string) (int, bool) {
	if len(name) < 3 || name[0] != '[' || name[len(name)-1] != ']' {
		return 0, false
	}
	idx, err := strconv.Atoi(name[1 : len(name)-1])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
