package bridge

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/lk2023060901/object-garden-go/internal/json"
	"github.com/lk2023060901/object-garden-go/internal/object/ops"
	"github.com/lk2023060901/object-garden-go/pkg/metrics"
	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// Handle 调度一条操作请求。
//
// 对操作码做穷尽匹配，未知操作码返回 OpUnsupported。除 Populate 的
// 节点级失败（折叠进响应载荷）外，所有错误都折叠为响应 Status，
// Handle 本身不返回 error。
func (e *Engine) Handle(ctx context.Context, req *ops.Request) *ops.Response {
	if req == nil {
		return ops.NewErrorResponse(&ops.Request{},
			merr.WrapErrParameterInvalidMsg("nil request"))
	}
	if err := e.checkReady(); err != nil {
		return e.fail(req, err)
	}

	var (
		resp *ops.Response
		err  error
	)
	switch req.Op {
	case ops.OpSerialize:
		resp, err = e.handleSerialize(ctx, req)
	case ops.OpPopulate:
		resp, err = e.handlePopulate(ctx, req)
	case ops.OpResolveType:
		resp, err = e.handleResolveType(req)
	case ops.OpLookupRef:
		resp, err = e.handleLookupRef(req)
	case ops.OpReleaseRef:
		resp, err = e.handleReleaseRef(req)
	default:
		err = merr.WrapErrOpUnsupported(req.Op)
	}

	if err != nil {
		return e.fail(req, err)
	}
	metrics.OpDispatchTotal.WithLabelValues(req.Op.String(), metrics.StatusSuccess).Inc()
	return resp
}

// HandleJSON 调度一条 JSON 编码的请求，返回 JSON 编码的响应。
// 供按行交换 JSON 的远端调用方使用。
func (e *Engine) HandleJSON(ctx context.Context, data []byte) []byte {
	var req ops.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return e.mustEncode(e.fail(&req,
			merr.WrapErrParameterInvalidMsg("malformed request envelope: %v", err)))
	}
	return e.mustEncode(e.Handle(ctx, &req))
}

func (e *Engine) fail(req *ops.Request, err error) *ops.Response {
	metrics.OpDispatchTotal.WithLabelValues(req.Op.String(), metrics.StatusFail).Inc()
	e.logger.Warn("op dispatch failed",
		zap.Stringer("op", req.Op),
		zap.String("id", req.ID),
		zap.Error(err))
	return ops.NewErrorResponse(req, err)
}

func (e *Engine) mustEncode(resp *ops.Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// 响应信封只含可编码字段，走到这里说明引擎自身出了问题。
		e.logger.Error("encode response failed", zap.Error(err))
		data, _ = json.Marshal(ops.NewErrorResponse(
			&ops.Request{Op: resp.Op, ID: resp.ID},
			merr.WrapErrEngineInternal(err.Error())))
	}
	return data
}

func (e *Engine) handleSerialize(ctx context.Context, req *ops.Request) (*ops.Response, error) {
	var body ops.SerializeRequest
	if err := req.DecodePayload(&body); err != nil {
		return nil, err
	}
	entity, err := e.res.Lookup(body.Handle)
	if err != nil {
		return nil, err
	}
	// 载荷未携带 maxDepth 时退回引擎默认深度；显式 0 原样生效。
	maxDepth := -1
	if body.MaxDepth != nil {
		maxDepth = *body.MaxDepth
	}
	m, err := e.Serialize(ctx, entity, maxDepth, body.IncludeProps)
	if err != nil {
		return nil, err
	}
	return ops.NewResponse(req, &ops.SerializeResponse{Member: m})
}

func (e *Engine) handlePopulate(ctx context.Context, req *ops.Request) (*ops.Response, error) {
	var body ops.PopulateRequest
	if err := req.DecodePayload(&body); err != nil {
		return nil, err
	}
	target, err := e.res.Lookup(body.Handle)
	if err != nil {
		return nil, err
	}
	result, err := e.Populate(ctx, target, body.Diff)
	if err != nil {
		return nil, err
	}
	return ops.NewResponse(req, &ops.PopulateResponse{Result: result})
}

func (e *Engine) handleResolveType(req *ops.Request) (*ops.Response, error) {
	var body ops.ResolveTypeRequest
	if err := req.DecodePayload(&body); err != nil {
		return nil, err
	}
	desc, err := e.reg.Resolve(body.TypeName)
	if err != nil {
		return nil, err
	}

	summary := &ops.ResolveTypeResponse{
		TypeName: desc.Name,
		RefKind:  desc.RefKind,
		Scalar:   desc.IsScalar(),
		Sequence: desc.IsSequence(),
	}
	for i := range desc.Fields {
		fd := &desc.Fields[i]
		summary.Fields = append(summary.Fields, ops.MemberInfo{
			Name:     fd.Name,
			TypeName: fd.TypeName,
		})
	}
	for i := range desc.Props {
		pd := &desc.Props[i]
		summary.Props = append(summary.Props, ops.PropInfo{
			Name:     pd.Name,
			TypeName: pd.TypeName,
			CanRead:  pd.CanRead,
			CanWrite: pd.CanWrite,
		})
	}
	return ops.NewResponse(req, summary)
}

func (e *Engine) handleLookupRef(req *ops.Request) (*ops.Response, error) {
	var body ops.LookupRefRequest
	if err := req.DecodePayload(&body); err != nil {
		return nil, err
	}
	entity, err := e.res.Lookup(body.Handle)
	if err != nil {
		return nil, err
	}
	return ops.NewResponse(req, &ops.LookupRefResponse{
		TypeName: e.reg.TypeNameOf(reflect.TypeOf(entity)),
	})
}

func (e *Engine) handleReleaseRef(req *ops.Request) (*ops.Response, error) {
	var body ops.ReleaseRefRequest
	if err := req.DecodePayload(&body); err != nil {
		return nil, err
	}
	e.res.Release(body.Handle)
	return ops.NewResponse(req, &ops.ReleaseRefResponse{Released: true})
}
