package json

import (
	stdjson "encoding/json"
	"io"

	"github.com/bytedance/sonic"
)

// RawMessage 为原样透传、延迟解码的 JSON 片段。
type RawMessage = stdjson.RawMessage

// 统一的 JSON 编解码入口，基于 bytedance/sonic 实现。
//
// 项目内所有 JSON 操作都应通过本包进行，避免 encoding/json 与 sonic
// 行为差异散落在各处。
var (
	config = sonic.Config{
		CompactMarshaler: true,
		CopyString:       true,
		UseInt64:         true,
	}.Froze()
)

// Marshal 将对象编码为 JSON 字节序列。
func Marshal(v any) ([]byte, error) {
	return config.Marshal(v)
}

// MarshalIndent 将对象编码为带缩进的 JSON 字节序列，便于日志与调试输出。
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return config.MarshalIndent(v, prefix, indent)
}

// Unmarshal 将 JSON 字节序列解码到目标对象。
//
// 注意：config 开启了 UseInt64，整数会优先解码为 int64 而不是 float64，
// 这对数值严格转换（禁止静默截断）是必要的。
func Unmarshal(data []byte, v any) error {
	return config.Unmarshal(data, v)
}

// NewDecoder 创建一个流式 JSON 解码器。
func NewDecoder(r io.Reader) sonic.Decoder {
	return config.NewDecoder(r)
}

// NewEncoder 创建一个流式 JSON 编码器。
func NewEncoder(w io.Writer) sonic.Encoder {
	return config.NewEncoder(w)
}
