package bridge

import (
	"context"
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/object-garden-go/internal/json"
	"github.com/lk2023060901/object-garden-go/internal/object/member"
	"github.com/lk2023060901/object-garden-go/internal/object/ops"
	"github.com/lk2023060901/object-garden-go/internal/object/registry"
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

type material struct {
	Shader string
}

func (m *material) RefKind() {}

type gameObject struct {
	Name      string
	Active    bool
	Transform transform
	Material  *material
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(DefaultConfig())
	t.Cleanup(e.Close)
	_, err := e.RegisterType(gameObject{}, registry.WithName("GameObject"))
	require.NoError(t, err)
	_, err = e.RegisterType(&material{}, registry.WithName("Material"))
	require.NoError(t, err)
	return e
}

func newCube() *gameObject {
	return &gameObject{
		Name:   "Cube",
		Active: true,
		Transform: transform{
			Position: vector3{X: 1, Y: 2, Z: 3},
			scale:    1.0,
		},
		Material: &material{Shader: "Standard"},
	}
}

func TestCubeScenario(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	cube := newCube()

	// 序列化出完整的自描述树。
	tree, err := e.Serialize(ctx, cube, 8, true)
	require.NoError(t, err)
	assert.Equal(t, "GameObject", tree.TypeName)
	assert.Equal(t, 2.0, tree.Field("Transform").Field("Position").Field("Y").Value)

	// 应用最小 diff：只动 position.y 与缩放。
	diff := &member.Member{
		Fields: []*member.Member{
			{
				Name: "Transform",
				Fields: []*member.Member{
					{Name: "Position", Fields: []*member.Member{
						{Name: "Y", Value: 10.0},
					}},
				},
				Props: []*member.Member{
					{Name: "Scale", Value: 2.0},
				},
			},
		},
	}
	result, err := e.Populate(ctx, cube, diff)
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, 10.0, cube.Transform.Position.Y)
	assert.Equal(t, 2.0, cube.Transform.Scale())
	// diff 未提及的成员保持不动。
	assert.Equal(t, 1.0, cube.Transform.Position.X)
	assert.Equal(t, "Cube", cube.Name)
	assert.Equal(t, "Standard", cube.Material.Shader)

	// 引用类实体未被复制：树里只有句柄。
	mat := tree.Field("Material")
	require.NotNil(t, mat)
	assert.True(t, mat.IsLeaf())
}

func TestRoundTripIdentity(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	src := newCube()
	dst := &gameObject{}
	require.NoError(t, e.CloneInto(ctx, src, dst))

	assert.Equal(t, src.Name, dst.Name)
	assert.Equal(t, src.Active, dst.Active)
	assert.Equal(t, src.Transform.Position, dst.Transform.Position)
	assert.Equal(t, src.Transform.Scale(), dst.Transform.Scale())
	// 引用类成员指向同一实体，不是副本。
	assert.Same(t, src.Material, dst.Material)
}

func TestSerializeManyOrdered(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	entities := make([]any, 8)
	for i := range entities {
		entities[i] = &gameObject{Name: fmt.Sprintf("obj-%d", i)}
	}

	results, err := e.SerializeMany(ctx, entities, 8, true)
	require.NoError(t, err)
	require.Len(t, results, len(entities))
	for i, m := range results {
		require.NotNil(t, m)
		assert.Equal(t, fmt.Sprintf("obj-%d", i), m.Field("Name").Value)
	}
}

func TestSerializeManyPartialFailure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	entities := []any{&gameObject{Name: "ok"}, nil, &gameObject{Name: "ok2"}}
	results, err := e.SerializeMany(ctx, entities, 8, true)
	require.Error(t, err)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
}

func TestHandleDispatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	cube := newCube()
	h, err := e.Identify(cube)
	require.NoError(t, err)

	// serialize
	payload, _ := json.Marshal(&ops.SerializeRequest{Handle: h, MaxDepth: lo.ToPtr(8), IncludeProps: true})
	resp := e.Handle(ctx, &ops.Request{Op: ops.OpSerialize, ID: "r1", Payload: payload})
	require.True(t, merr.Ok(resp.Status), resp.Status.Msg)
	assert.Equal(t, "r1", resp.ID)

	var sr ops.SerializeResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &sr))
	assert.Equal(t, "GameObject", sr.Member.TypeName)

	// populate
	diff := &member.Member{Fields: []*member.Member{{Name: "Name", Value: "Sphere"}}}
	payload, _ = json.Marshal(&ops.PopulateRequest{Handle: h, Diff: diff})
	resp = e.Handle(ctx, &ops.Request{Op: ops.OpPopulate, Payload: payload})
	require.True(t, merr.Ok(resp.Status), resp.Status.Msg)
	assert.Equal(t, "Sphere", cube.Name)

	// resolve_type
	payload, _ = json.Marshal(&ops.ResolveTypeRequest{TypeName: "GameObject"})
	resp = e.Handle(ctx, &ops.Request{Op: ops.OpResolveType, Payload: payload})
	require.True(t, merr.Ok(resp.Status), resp.Status.Msg)
	var tr ops.ResolveTypeResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &tr))
	assert.Equal(t, "GameObject", tr.TypeName)
	assert.Len(t, tr.Fields, 4)

	// lookup_ref / release_ref
	payload, _ = json.Marshal(&ops.LookupRefRequest{Handle: h})
	resp = e.Handle(ctx, &ops.Request{Op: ops.OpLookupRef, Payload: payload})
	require.True(t, merr.Ok(resp.Status))

	payload, _ = json.Marshal(&ops.ReleaseRefRequest{Handle: h})
	resp = e.Handle(ctx, &ops.Request{Op: ops.OpReleaseRef, Payload: payload})
	require.True(t, merr.Ok(resp.Status))

	// 释放后再寻址：ReferenceNotFound 折叠进 Status。
	payload, _ = json.Marshal(&ops.LookupRefRequest{Handle: h})
	resp = e.Handle(ctx, &ops.Request{Op: ops.OpLookupRef, Payload: payload})
	assert.Equal(t, merr.Code(merr.ErrReferenceNotFound), resp.Status.Code)
}

func TestHandleSerializeDepth(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	cube := newCube()
	h, err := e.Identify(cube)
	require.NoError(t, err)

	// 显式 maxDepth=0：只返回顶层占位，不展开成员。
	payload, _ := json.Marshal(&ops.SerializeRequest{Handle: h, MaxDepth: lo.ToPtr(0), IncludeProps: true})
	resp := e.Handle(ctx, &ops.Request{Op: ops.OpSerialize, Payload: payload})
	require.True(t, merr.Ok(resp.Status), resp.Status.Msg)

	var sr ops.SerializeResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &sr))
	assert.Equal(t, "GameObject", sr.Member.TypeName)
	assert.True(t, sr.Member.IsLeaf())

	// 省略 maxDepth：使用引擎默认深度，树被完整展开。
	payload, _ = json.Marshal(&ops.SerializeRequest{Handle: h, IncludeProps: true})
	resp = e.Handle(ctx, &ops.Request{Op: ops.OpSerialize, Payload: payload})
	require.True(t, merr.Ok(resp.Status), resp.Status.Msg)

	require.NoError(t, json.Unmarshal(resp.Payload, &sr))
	assert.Len(t, sr.Member.Fields, 4)
	assert.Equal(t, "Cube", sr.Member.Field("Name").Value)
}

func TestHandleUnsupportedOp(t *testing.T) {
	e := newTestEngine(t)

	resp := e.Handle(context.Background(), &ops.Request{Op: ops.Kind(99)})
	assert.Equal(t, merr.Code(merr.ErrOpUnsupported), resp.Status.Code)

	resp = e.Handle(context.Background(), nil)
	assert.Equal(t, merr.Code(merr.ErrParameterInvalid), resp.Status.Code)
}

func TestHandleJSON(t *testing.T) {
	e := newTestEngine(t)

	cube := newCube()
	h, err := e.Identify(cube)
	require.NoError(t, err)

	line := []byte(fmt.Sprintf(
		`{"op":1,"id":"x","payload":{"handle":%d,"maxDepth":4,"includeProps":true}}`, h))
	out := e.HandleJSON(context.Background(), line)

	var resp ops.Response
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.True(t, merr.Ok(resp.Status), resp.Status.Msg)
	assert.Equal(t, "x", resp.ID)

	out = e.HandleJSON(context.Background(), []byte("{not json"))
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, merr.Code(merr.ErrParameterInvalid), resp.Status.Code)
}

func TestEngineClosed(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.Close()

	_, err := e.Serialize(context.Background(), newCube(), 4, true)
	assert.ErrorIs(t, err, merr.ErrEngineNotReady)

	resp := e.Handle(context.Background(), &ops.Request{Op: ops.OpSerialize})
	assert.Equal(t, merr.Code(merr.ErrEngineNotReady), resp.Status.Code)
}

func TestRecentOps(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Serialize(ctx, newCube(), 4, true)
	require.NoError(t, err)
	_, err = e.Populate(ctx, newCube(), &member.Member{
		Fields: []*member.Member{{Name: "Name", Value: "x"}},
	})
	require.NoError(t, err)

	records := e.RecentOps()
	require.Len(t, records, 2)
	assert.Equal(t, "serialize", records[0].Op)
	assert.Equal(t, "populate", records[1].Op)
}
