package cdp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const targetList = `[
	{"id": "P1", "type": "page", "title": "Signup", "url": "https://example.com/signup", "webSocketDebuggerUrl": "ws://127.0.0.1:1/devtools/page/P1"},
	{"id": "W1", "type": "service_worker", "title": "sw", "url": "https://example.com/sw.js", "webSocketDebuggerUrl": "ws://127.0.0.1:1/devtools/page/W1"},
	{"id": "P2", "type": "page", "title": "Survey", "url": "https://example.com/survey", "webSocketDebuggerUrl": "ws://127.0.0.1:1/devtools/page/P2"}
]`

func devtoolsServer(t *testing.T) *httptest.Server {
	t.Helper()
	h := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(targetList))
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/list", h)
	mux.HandleFunc("/json", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_ListTargetsOnlyPages(t *testing.T) {
	m := New(devtoolsServer(t).URL, nil)

	got, err := m.ListTargets(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "P1", got[0].ID)
	assert.Equal(t, "Signup", got[0].Title)
	assert.Equal(t, "page", got[0].Type)
	assert.Equal(t, "P2", got[1].ID)
}

func TestManager_AttachUnknownTarget(t *testing.T) {
	m := New(devtoolsServer(t).URL, nil)

	_, err := m.Attach(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestManager_DetachUnknownIsNoop(t *testing.T) {
	m := New("http://127.0.0.1:1", nil)
	assert.NoError(t, m.Detach("missing"))
	assert.NoError(t, m.Close())
}
