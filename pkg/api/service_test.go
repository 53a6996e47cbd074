package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formease/internal/adapter/htmldoc"
	"formease/internal/config"
	"formease/pkg/dom"
	"formease/pkg/model"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return ctx.Err()
}

type memStore struct {
	mappings map[string]model.AliasMapping
	anim     *int
	err      error
}

func (m *memStore) LoadMappings(context.Context) (map[string]model.AliasMapping, error) {
	return m.mappings, m.err
}

func (m *memStore) Settings(_ context.Context, d model.Settings) (model.Settings, error) {
	if m.anim != nil {
		d.AnimationDurationMS = *m.anim
	}
	return d, nil
}

func newService(opts ...Option) *Service {
	opts = append([]Option{WithClock(&fakeClock{now: time.Unix(1700000000, 0)})}, opts...)
	return NewService(config.DefaultFill(), nil, opts...)
}

const signup = `<html><body>
	<label for="em">Email</label><input type="email" id="em">
	<label for="nm">Full name</label><input type="text" id="nm">
	<label for="handle">Contact handle</label><input type="text" id="handle">
</body></html>`

func TestService_FillSuccess(t *testing.T) {
	doc := htmldoc.MustParseString(signup)
	s := newService()

	resp := s.Fill(context.Background(), doc, "tab-1", model.RunRequest{
		Data: map[string]string{"email": "ada@example.com", "fullName": "Ada Lovelace"},
	})
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, model.CategoryNone, resp.Category)
	_, err := uuid.Parse(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, resp.RunID, resp.Result.RunID)
	assert.Equal(t, 3, resp.Result.Detected)
	assert.Equal(t, 2, resp.Result.Filled)

	v, _ := doc.Find("#em").Attr("value")
	assert.Equal(t, "ada@example.com", v)
	v, _ = doc.Find("#nm").Attr("value")
	assert.Equal(t, "Ada Lovelace", v)
	assert.Empty(t, s.Runs())
}

func TestService_RequestAliasesOverrideStored(t *testing.T) {
	store := &memStore{mappings: map[string]model.AliasMapping{
		"email": model.NewAliasMapping(0, "nothing like it"),
	}}
	data := map[string]string{"email": "ada@example.com"}

	doc := htmldoc.MustParseString(`<label for="handle">Contact handle</label><input type="text" id="handle">`)
	resp := newService(WithStore(store)).Fill(context.Background(), doc, "t", model.RunRequest{Data: data})
	assert.False(t, resp.Success)
	assert.Equal(t, model.CategoryNoMatches, resp.Category)

	resp = newService(WithStore(store)).Fill(context.Background(), doc, "t", model.RunRequest{
		Data:    data,
		Aliases: map[string][]string{"email": {"Contact Handle"}},
	})
	require.True(t, resp.Success, resp.Message)
	require.Len(t, resp.Result.Fields, 1)
	assert.Equal(t, 100, resp.Result.Fields[0].Confidence)
}

func TestService_InvalidRequests(t *testing.T) {
	s := newService()

	resp := s.Fill(context.Background(), htmldoc.MustParseString(signup), "t", model.RunRequest{})
	assert.Equal(t, model.CategoryInvalidRequest, resp.Category)
	assert.NotNil(t, resp.Result)

	resp = s.Fill(context.Background(), nil, "t", model.RunRequest{Data: map[string]string{"a": "b"}})
	assert.Equal(t, model.CategoryInvalidRequest, resp.Category)

}

func TestService_InternalFailuresAreNotInvalidRequests(t *testing.T) {
	data := model.RunRequest{Data: map[string]string{"email": "a@b.com"}}

	failing := newService(WithStore(&memStore{err: errors.New("disk gone")}))
	resp := failing.Fill(context.Background(), htmldoc.MustParseString(signup), "t", data)
	assert.False(t, resp.Success)
	assert.Equal(t, model.CategoryRunFailed, resp.Category)
	assert.Contains(t, resp.Message, "disk gone")

	resp = newService().Fill(context.Background(), brokenDoc{}, "t", data)
	assert.False(t, resp.Success)
	assert.Equal(t, model.CategoryDetectionFailed, resp.Category)
	assert.Contains(t, resp.Message, "target closed")
	require.NotNil(t, resp.Result)
}

// brokenDoc 查询总是失败的文档
type brokenDoc struct{}

func (brokenDoc) QueryAll(context.Context, string) ([]dom.Element, error) {
	return nil, errors.New("target closed")
}

func (brokenDoc) GetByID(context.Context, string) (dom.Element, error) {
	return nil, errors.New("target closed")
}

func TestService_RunInProgress(t *testing.T) {
	s := newService()
	release, err := s.runs.Acquire("tab-1", "other")
	require.NoError(t, err)
	defer release()

	resp := s.Fill(context.Background(), htmldoc.MustParseString(signup), "tab-1", model.RunRequest{
		Data: map[string]string{"email": "a@b.com"},
	})
	assert.False(t, resp.Success)
	assert.Equal(t, model.CategoryRunInProgress, resp.Category)

	resp = s.Fill(context.Background(), htmldoc.MustParseString(signup), "tab-2", model.RunRequest{
		Data: map[string]string{"email": "a@b.com"},
	})
	assert.True(t, resp.Success)
}

func TestService_NoFillableFields(t *testing.T) {
	resp := newService().Fill(context.Background(), htmldoc.MustParseString(`<p>static</p>`), "t", model.RunRequest{
		Data: map[string]string{"email": "a@b.com"},
	})
	assert.Equal(t, model.CategoryNoFields, resp.Category)
	assert.Equal(t, 0, resp.Result.Detected)
}

func TestService_DetectUsesCache(t *testing.T) {
	s := newService()
	doc := htmldoc.MustParseString(signup)

	first, err := s.Detect(context.Background(), doc, "t")
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := s.Detect(context.Background(), doc, "t")
	require.NoError(t, err)
	assert.Same(t, first[0], second[0])

	s.Invalidate("t")
	third, err := s.Detect(context.Background(), doc, "t")
	require.NoError(t, err)
	assert.NotSame(t, first[0], third[0])

	other, err := s.Detect(context.Background(), htmldoc.MustParseString(signup), "t")
	require.NoError(t, err)
	assert.NotSame(t, third[0], other[0])
}

func TestService_SettingsPrecedence(t *testing.T) {
	anim := 250
	s := newService(WithStore(&memStore{anim: &anim}))
	log := s.log

	assert.Equal(t, 250, s.settings(context.Background(), log, nil).AnimationDurationMS)
	assert.Equal(t, 0, s.settings(context.Background(), log, &model.Settings{AnimationDurationMS: 0}).AnimationDurationMS)
	assert.Equal(t, config.DefaultFill().AnimationMS, newService().settings(context.Background(), log, nil).AnimationDurationMS)
}
