package populate

import (
	"fmt"

	"github.com/lk2023060901/object-garden-go/pkg/metrics"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Failure 记录一个 diff 节点的应用失败：失败节点的路径与原因。
type Failure struct {
	// Path 为失败节点在目标对象中的成员路径，如 "transform.position[1]"。
	Path string `json:"path"`
	// Reason 为人类可读的失败原因。
	Reason string `json:"reason"`
	// Code 为 merr 错误码，供远端调用方程序化判断。
	Code int32 `json:"code"`
}

// MutationResult 是一次 Populate 调用的聚合结果。
//
// Success 为 true 仅当所有节点都应用成功；部分成功时已应用的节点
// 不会回滚，调用方必须把部分成功视为“目标已被修改”。
type MutationResult struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	Failures []Failure `json:"failures,omitempty"`

	applied int
}

func newResult() *MutationResult {
	return &MutationResult{}
}

// Applied 返回成功应用的节点数。
func (r *MutationResult) Applied() int {
	return r.applied
}

func (r *MutationResult) markApplied() {
	r.applied++
}

func (r *MutationResult) addFailure(path string, err error) {
	if path == "" {
		path = "(root)"
	}
	r.Failures = append(r.Failures, Failure{
		Path:   path,
		Reason: err.Error(),
		Code:   merr.Code(err),
	})
	metrics.PopulateFailures.WithLabelValues(reasonLabel(err)).Inc()
}

func reasonLabel(err error) string {
	switch {
	case merr.ErrTypeNotFound.Is(err):
		return "type_not_found"
	case merr.ErrTypeMismatch.Is(err):
		return "type_mismatch"
	case merr.ErrMemberUnknown.Is(err):
		return "unknown_member"
	case merr.ErrMemberReadOnly.Is(err):
		return "member_read_only"
	case merr.ErrCannotConstruct.Is(err):
		return "cannot_construct"
	case merr.ErrIndexOutOfRange.Is(err):
		return "index_out_of_range"
	case merr.ErrReferenceNotFound.Is(err):
		return "reference_not_found"
	default:
		return "other"
	}
}

func (r *MutationResult) finalize() {
	r.Success = len(r.Failures) == 0
	if r.Success {
		r.Message = fmt.Sprintf("applied %d node(s)", r.applied)
		return
	}
	r.Message = fmt.Sprintf("applied %d node(s), %d failed", r.applied, len(r.Failures))
}
