package cdp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formease/pkg/dom"
)

// fakeRuntime 按函数声明返回预置结果，并记录调用
type fakeRuntime struct {
	calls    []*runtime.CallFunctionOnArgs
	replies  map[string]*runtime.CallFunctionOnReply
	props    map[runtime.RemoteObjectID][]runtime.PropertyDescriptor
	callErr  error
	released []string
}

func (f *fakeRuntime) Evaluate(_ context.Context, args *runtime.EvaluateArgs) (*runtime.EvaluateReply, error) {
	id := runtime.RemoteObjectID("doc")
	return &runtime.EvaluateReply{Result: runtime.RemoteObject{Type: "object", ObjectID: &id}}, nil
}

func (f *fakeRuntime) CallFunctionOn(_ context.Context, args *runtime.CallFunctionOnArgs) (*runtime.CallFunctionOnReply, error) {
	f.calls = append(f.calls, args)
	if f.callErr != nil {
		return nil, f.callErr
	}
	if r, ok := f.replies[args.FunctionDeclaration]; ok {
		return r, nil
	}
	return &runtime.CallFunctionOnReply{Result: runtime.RemoteObject{Type: "undefined"}}, nil
}

func (f *fakeRuntime) GetProperties(_ context.Context, args *runtime.GetPropertiesArgs) (*runtime.GetPropertiesReply, error) {
	return &runtime.GetPropertiesReply{Result: f.props[args.ObjectID]}, nil
}

func (f *fakeRuntime) ReleaseObjectGroup(_ context.Context, args *runtime.ReleaseObjectGroupArgs) error {
	f.released = append(f.released, args.ObjectGroup)
	return nil
}

func objectReply(id string) *runtime.CallFunctionOnReply {
	oid := runtime.RemoteObjectID(id)
	return &runtime.CallFunctionOnReply{Result: runtime.RemoteObject{Type: "object", ObjectID: &oid}}
}

func valueReply(raw string) *runtime.CallFunctionOnReply {
	return &runtime.CallFunctionOnReply{Result: runtime.RemoteObject{Type: "object", Value: []byte(raw)}}
}

func prop(name, id string) runtime.PropertyDescriptor {
	oid := runtime.RemoteObjectID(id)
	return runtime.PropertyDescriptor{Name: name, Value: &runtime.RemoteObject{Type: "object", ObjectID: &oid}}
}

func TestDocument_QueryAllOrdersByIndex(t *testing.T) {
	rt := &fakeRuntime{
		replies: map[string]*runtime.CallFunctionOnReply{queryScript: objectReply("arr")},
		props: map[runtime.RemoteObjectID][]runtime.PropertyDescriptor{
			"arr": {prop("1", "el-b"), prop("0", "el-a"), prop("length", "x"), prop("__proto__", "p")},
		},
	}
	d := New(rt, "run-1", nil)

	got, err := d.QueryAll(context.Background(), "input")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, runtime.RemoteObjectID("el-a"), got[0].(*Element).id)
	assert.Equal(t, runtime.RemoteObjectID("el-b"), got[1].(*Element).id)

	require.Len(t, rt.calls, 1)
	assert.Equal(t, runtime.RemoteObjectID("doc"), *rt.calls[0].ObjectID)
	assert.Equal(t, "run-1", *rt.calls[0].ObjectGroup)
	assert.JSONEq(t, `"input"`, string(rt.calls[0].Arguments[0].Value))

	require.NoError(t, d.Release(context.Background()))
	assert.Equal(t, []string{"run-1"}, rt.released)
}

func TestDocument_NullResultsAreNil(t *testing.T) {
	null := "null"
	rt := &fakeRuntime{replies: map[string]*runtime.CallFunctionOnReply{
		byIDScript: {Result: runtime.RemoteObject{Type: "object", Subtype: &null}},
	}}
	d := New(rt, "", nil)

	el, err := d.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, el)

	parent, err := (&Element{doc: d, id: "x"}).Parent(context.Background())
	require.NoError(t, err)
	assert.Nil(t, parent)
}

func TestElement_SnapshotConversion(t *testing.T) {
	rt := &fakeRuntime{replies: map[string]*runtime.CallFunctionOnReply{
		snapshotScript: valueReply(`{
			"tag": "INPUT", "attrs": {"Type": "email", "name": "mail"}, "value": "x",
			"disabled": false, "readOnly": true, "required": true, "checked": false,
			"contentEditable": false, "connected": true, "inLayout": true,
			"display": "block", "visibility": "visible", "opacity": 0.5, "width": 200, "height": 30
		}`),
	}}
	el := &Element{doc: New(rt, "g", nil), id: "e"}

	s, err := el.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "input", s.Tag)
	assert.Equal(t, "email", s.Attr("type"))
	assert.True(t, s.ReadOnly)
	assert.True(t, s.Required)
	assert.Equal(t, 0.5, s.Style.Opacity)
	assert.True(t, dom.Visible(s))
	assert.True(t, *rt.calls[0].ReturnByValue)
}

func TestElement_StaleReferenceIsDetached(t *testing.T) {
	rt := &fakeRuntime{callErr: errors.New("cdp.Runtime: CallFunctionOn: rpc error: Could not find object with given id (code = -32000)")}
	el := &Element{doc: New(rt, "g", nil), id: "gone"}

	s, err := el.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Connected)

	err = el.Click(context.Background())
	assert.ErrorIs(t, err, dom.ErrDetached)
}

func TestElement_ScriptExceptions(t *testing.T) {
	desc := "Error: " + detachedMarker
	rt := &fakeRuntime{replies: map[string]*runtime.CallFunctionOnReply{
		focusScript: {ExceptionDetails: &runtime.ExceptionDetails{Text: "Uncaught", Exception: &runtime.RemoteObject{Description: &desc}}},
		clickScript: {ExceptionDetails: &runtime.ExceptionDetails{Text: "Uncaught TypeError", LineNumber: 1, ColumnNumber: 4}},
	}}
	el := &Element{doc: New(rt, "g", nil), id: "e"}

	assert.ErrorIs(t, el.Focus(context.Background()), dom.ErrDetached)

	err := el.Click(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "TypeError"))
}

func TestElement_ValueArgumentsAreJSON(t *testing.T) {
	rt := &fakeRuntime{replies: map[string]*runtime.CallFunctionOnReply{
		optionsScript: valueReply(`[{"value":"us","text":"United States","selected":true},{"value":"fr","text":"France"}]`),
	}}
	el := &Element{doc: New(rt, "g", nil), id: "e"}
	ctx := context.Background()

	require.NoError(t, el.SetValue(ctx, "a \"quoted\"\nline"))
	assert.JSONEq(t, `"a \"quoted\"\nline"`, string(rt.calls[0].Arguments[0].Value))

	require.NoError(t, el.SelectOption(ctx, 2))
	assert.Equal(t, "2", string(rt.calls[1].Arguments[0].Value))

	opts, err := el.Options(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dom.Option{
		{Value: "us", Text: "United States", Selected: true},
		{Value: "fr", Text: "France"},
	}, opts)
}

func TestToSnapshot_DefaultsOpacity(t *testing.T) {
	s, err := ToSnapshot([]byte(`{"tag":"div","width":1,"height":1,"inLayout":true}`))
	require.NoError(t, err)
	assert.Equal(t, float64(1), s.Style.Opacity)

	_, err = ToSnapshot([]byte(`{`))
	assert.Error(t, err)
}
