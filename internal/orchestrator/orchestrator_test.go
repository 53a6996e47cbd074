package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formease/internal/adapter/htmldoc"
	"formease/internal/catalog"
	"formease/internal/fill"
	"formease/internal/match"
	"formease/pkg/model"
)

// fakeClock 只在 Sleep 时推进
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

func newClock() *fakeClock { return &fakeClock{now: time.Unix(1700000000, 0)} }

func build(t *testing.T, body string, cfg Config) (*htmldoc.Document, *Orchestrator) {
	t.Helper()
	doc := htmldoc.MustParseString("<html><body>" + body + "</body></html>")
	clock := newClock()
	if cfg.Clock == nil {
		cfg.Clock = clock
	}
	cat := catalog.New(doc, catalog.Config{Now: cfg.Clock.Now})
	disp := fill.New(doc, fill.Config{Now: cfg.Clock.Now, Sleep: cfg.Clock.Sleep})
	return doc, New(cat, match.New(nil), disp, cfg)
}

func TestRun_SingleEmailField(t *testing.T) {
	doc, o := build(t, `<input type="text" name="email">`, Config{})

	res, err := o.Run(context.Background(), map[string]string{"email": "a@b.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Detected)
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, 0, res.Skipped)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Fields, 1)
	assert.Equal(t, "email", res.Fields[0].DataKey)
	assert.Equal(t, 100, res.Fields[0].Confidence)

	v, _ := doc.Find(`input[name="email"]`).Attr("value")
	assert.Equal(t, "a@b.com", v)
	assert.False(t, doc.Find(`input[name="email"]`).HasClass(fill.MarkerClass))
}

func TestRun_TruncationWarning(t *testing.T) {
	doc, o := build(t, `<input type="text" name="zipCode" maxlength="5">`, Config{})

	res, err := o.Run(context.Background(), map[string]string{"zipCode": "123456789012"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filled)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "truncated to 5")

	v, _ := doc.Find(`input[name="zipCode"]`).Attr("value")
	assert.Equal(t, "12345", v)
}

func TestRun_NoFillableFields(t *testing.T) {
	_, o := build(t, `<p>nothing here</p><input type="text" name="email" style="display:none">`, Config{})

	res, err := o.Run(context.Background(), map[string]string{"email": "a@b.com"}, nil)
	require.ErrorIs(t, err, ErrNoFields)
	assert.Equal(t, model.CategoryNoFields, Category(err))
	assert.Equal(t, 0, res.Detected)
	assert.Equal(t, 0, res.Filled)
}

func TestRun_NoMatchingFields(t *testing.T) {
	_, o := build(t, `<input type="text" name="comments">`, Config{})

	res, err := o.Run(context.Background(), map[string]string{"email": "a@b.com"}, nil)
	require.ErrorIs(t, err, ErrNoMatches)
	assert.Equal(t, model.CategoryNoMatches, Category(err))
	assert.Equal(t, 1, res.Detected)
}

func TestRun_NumberOutOfRangeIsSkip(t *testing.T) {
	doc, o := build(t, `<label for="age">Age</label><input type="number" id="age" min="0" max="10">`, Config{})

	res, err := o.Run(context.Background(), map[string]string{"age": "15"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Filled)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Errors)

	_, has := doc.Find("#age").Attr("value")
	assert.False(t, has)
}

func TestRun_GlobalTimeoutStopsEarly(t *testing.T) {
	f := &stubFiller{}
	clock := newClock()
	o := New(stubDetector(10), stubMatcher{}, f, Config{
		RunTimeout:      350 * time.Millisecond,
		InterFieldDelay: 100 * time.Millisecond,
		Clock:           clock,
	})

	res, err := o.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Detected)
	assert.Equal(t, 4, f.calls)
	assert.Equal(t, 4, res.Filled)
	assert.Equal(t, 0, res.Skipped)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "6 fields not attempted")
	assert.True(t, f.settled)
}

func TestRun_TimeoutBeforeFirstField(t *testing.T) {
	clock := newClock()
	f := &stubFiller{}
	d := detectorFunc(func(ctx context.Context, _ bool) ([]*model.FieldDescriptor, error) {
		clock.now = clock.now.Add(time.Second)
		return fields(3), nil
	})
	o := New(d, stubMatcher{}, f, Config{RunTimeout: 500 * time.Millisecond, Clock: clock})

	res, err := o.Run(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, model.CategoryTimeout, Category(err))
	assert.Equal(t, 0, f.calls)
	assert.Equal(t, 0, res.Filled)
	assert.Equal(t, int64(1000), res.DurationMS)
}

func TestRun_PerFieldTimeoutRecordsError(t *testing.T) {
	f := &stubFiller{block: map[string]bool{"f1": true}}
	o := New(stubDetector(3), stubMatcher{}, f, Config{
		FieldTimeout: 20 * time.Millisecond,
		Clock:        newClock(),
	})

	res, err := o.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, 2, res.Filled)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "f1", res.Errors[0].FieldIdentifier)
	assert.Contains(t, res.Errors[0].Message, "timed out")
}

func TestRun_FillErrorDoesNotAbort(t *testing.T) {
	f := &stubFiller{fail: map[string]error{"f0": errors.New("boom")}}
	o := New(stubDetector(2), stubMatcher{}, f, Config{Clock: newClock()})

	res, err := o.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "f0", res.Errors[0].FieldIdentifier)
	assert.Contains(t, res.Errors[0].Message, "boom")
}

func TestRun_DetectError(t *testing.T) {
	d := detectorFunc(func(context.Context, bool) ([]*model.FieldDescriptor, error) {
		return nil, errors.New("target closed")
	})
	o := New(d, stubMatcher{}, &stubFiller{}, Config{Clock: newClock()})

	_, err := o.Run(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target closed")
	assert.ErrorIs(t, err, ErrDetection)
	assert.Equal(t, model.CategoryDetectionFailed, Category(err))
}

func TestCategory(t *testing.T) {
	assert.Equal(t, model.CategoryNone, Category(nil))
	assert.Equal(t, model.CategoryTimeout, Category(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, model.CategoryNoFields, Category(fmt.Errorf("wrap: %w", ErrNoFields)))
	assert.Equal(t, model.CategoryTimeout, Category(fmt.Errorf("%w: %w", ErrDetection, context.DeadlineExceeded)))
	assert.Equal(t, model.CategoryRunFailed, Category(errors.New("adapter gone")))
}

type detectorFunc func(ctx context.Context, force bool) ([]*model.FieldDescriptor, error)

func (f detectorFunc) Detect(ctx context.Context, force bool) ([]*model.FieldDescriptor, error) {
	return f(ctx, force)
}

func fields(n int) []*model.FieldDescriptor {
	out := make([]*model.FieldDescriptor, n)
	for i := range out {
		out[i] = &model.FieldDescriptor{ID: fmt.Sprintf("f%d", i), Kind: model.KindText}
	}
	return out
}

func stubDetector(n int) Detector {
	return detectorFunc(func(context.Context, bool) ([]*model.FieldDescriptor, error) {
		return fields(n), nil
	})
}

// stubMatcher 每个字段一个候选
type stubMatcher struct{}

func (stubMatcher) Match(fs []*model.FieldDescriptor, _ map[string]string, _ map[string]model.AliasMapping) []model.MatchCandidate {
	out := make([]model.MatchCandidate, len(fs))
	for i, f := range fs {
		out[i] = model.MatchCandidate{Field: f, DataKey: "k", Value: "v", Confidence: 80}
	}
	return out
}

type stubFiller struct {
	calls   int
	settled bool
	block   map[string]bool
	fail    map[string]error
}

func (s *stubFiller) Fill(ctx context.Context, c model.MatchCandidate) (fill.Outcome, error) {
	s.calls++
	if s.block[c.Field.ID] {
		<-ctx.Done()
		return fill.Outcome{}, &fill.FillError{Field: c.Field.ID, Kind: c.Field.Kind, Err: ctx.Err()}
	}
	if err := s.fail[c.Field.ID]; err != nil {
		return fill.Outcome{}, err
	}
	return fill.Outcome{Applied: true}, nil
}

func (s *stubFiller) Settle(context.Context) { s.settled = true }
