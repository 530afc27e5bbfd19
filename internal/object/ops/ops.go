// Package ops 定义远端调用方与引擎之间的操作信封。
//
// 每个操作由操作码标识，请求/响应载荷为 JSON 编码的带标签变体。
// 调度方对操作码做穷尽匹配，未知操作码统一返回 OpUnsupported。
package ops

import (
	"fmt"

	"github.com/lk2023060901/object-garden-go/internal/json"
	"github.com/lk2023060901/object-garden-go/internal/object/member"
	"github.com/lk2023060901/object-garden-go/internal/object/populate"
	"github.com/lk2023060901/object-garden-go/internal/object/refs"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Kind 为操作码。
type Kind uint32

const (
	// OpSerialize 将句柄指向的活实体序列化为 Member 树。
	OpSerialize Kind = 1
	// OpPopulate 将 diff 树应用到句柄指向的活实体上。
	OpPopulate Kind = 2
	// OpResolveType 按类型名解析类型摘要。
	OpResolveType Kind = 3
	// OpLookupRef 校验引用句柄是否仍指向活实体。
	OpLookupRef Kind = 4
	// OpReleaseRef 释放引用句柄，此后该句柄视为陈旧。
	OpReleaseRef Kind = 5
)

// String 返回操作码的可读名字。
func (k Kind) String() string {
	switch k {
	case OpSerialize:
		return "serialize"
	case OpPopulate:
		return "populate"
	case OpResolveType:
		return "resolve_type"
	case OpLookupRef:
		return "lookup_ref"
	case OpReleaseRef:
		return "release_ref"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(k))
	}
}

// Request 为一次操作请求的外层信封。
type Request struct {
	// Op 为操作码，决定 Payload 的具体形状。
	Op Kind `json:"op"`
	// ID 为调用方自定的关联标识，原样回显在响应中。
	ID string `json:"id,omitempty"`
	// Payload 为操作专属的请求载荷。
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response 为一次操作响应的外层信封。
type Response struct {
	Op Kind   `json:"op"`
	ID string `json:"id,omitempty"`
	// Status 汇总操作结果；Code 为 0 表示成功。
	Status merr.Status `json:"status"`
	// Payload 为操作专属的响应载荷，失败时为空。
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SerializeRequest 为 OpSerialize 的请求载荷。
type SerializeRequest struct {
	// Handle 指向已登记的目标实体。
	Handle refs.Handle `json:"handle"`
	// MaxDepth 限定遍历深度；0 表示只返回顶层占位，
	// 缺省（字段省略）时使用引擎默认深度。
	MaxDepth *int `json:"maxDepth,omitempty"`
	// IncludeProps 控制是否包含访问器成员。
	IncludeProps bool `json:"includeProps"`
}

// SerializeResponse 为 OpSerialize 的响应载荷。
type SerializeResponse struct {
	Member *member.Member `json:"member"`
}

// PopulateRequest 为 OpPopulate 的请求载荷。
type PopulateRequest struct {
	Handle refs.Handle    `json:"handle"`
	Diff   *member.Member `json:"diff"`
}

// PopulateResponse 为 OpPopulate 的响应载荷。
// 部分成功时 Result.Success 为 false，但目标实体已被修改。
type PopulateResponse struct {
	Result *populate.MutationResult `json:"result"`
}

// ResolveTypeRequest 为 OpResolveType 的请求载荷。
type ResolveTypeRequest struct {
	TypeName string `json:"typeName"`
}

// MemberInfo 描述类型的一个可序列化成员。
type MemberInfo struct {
	Name     string `json:"name"`
	TypeName string `json:"typeName"`
}

// PropInfo 描述类型的一个访问器成员及其读写能力。
type PropInfo struct {
	Name     string `json:"name"`
	TypeName string `json:"typeName"`
	CanRead  bool   `json:"canRead"`
	CanWrite bool   `json:"canWrite"`
}

// ResolveTypeResponse 为 OpResolveType 的响应载荷：类型的结构摘要。
type ResolveTypeResponse struct {
	TypeName string       `json:"typeName"`
	RefKind  bool         `json:"refKind"`
	Scalar   bool         `json:"scalar"`
	Sequence bool         `json:"sequence"`
	Fields   []MemberInfo `json:"fields,omitempty"`
	Props    []PropInfo   `json:"props,omitempty"`
}

// LookupRefRequest 为 OpLookupRef 的请求载荷。
type LookupRefRequest struct {
	Handle refs.Handle `json:"handle"`
}

// LookupRefResponse 为 OpLookupRef 的响应载荷。
type LookupRefResponse struct {
	TypeName string `json:"typeName"`
}

// ReleaseRefRequest 为 OpReleaseRef 的请求载荷。
type ReleaseRefRequest struct {
	Handle refs.Handle `json:"handle"`
}

// ReleaseRefResponse 为 OpReleaseRef 的响应载荷。
type ReleaseRefResponse struct {
	Released bool `json:"released"`
}

// DecodePayload 将请求载荷解码到操作专属的结构上。
func (r *Request) DecodePayload(into any) error {
	if len(r.Payload) == 0 {
		return merr.WrapErrParameterInvalidMsg("op %s requires a payload", r.Op)
	}
	if err := json.Unmarshal(r.Payload, into); err != nil {
		return merr.WrapErrParameterInvalidMsg("malformed %s payload: %v", r.Op, err)
	}
	return nil
}

// NewResponse 构造一个成功响应，payload 为 nil 时信封不携带载荷。
func NewResponse(req *Request, payload any) (*Response, error) {
	resp := &Response{
		Op:     req.Op,
		ID:     req.ID,
		Status: merr.Success(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, merr.WrapErrEngineInternal(err.Error())
		}
		resp.Payload = data
	}
	return resp, nil
}

// NewErrorResponse 构造一个失败响应，错误被折叠为 Status。
func NewErrorResponse(req *Request, err error) *Response {
	return &Response{
		Op:     req.Op,
		ID:     req.ID,
		Status: merr.StatusOf(err),
	}
}
