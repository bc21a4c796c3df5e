package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/tull/internal/capture"
	"github.com/ternarybob/tull/internal/logger"
	"github.com/ternarybob/tull/internal/store"
)

func setup(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()
	home := t.TempDir()
	st := store.New(filepath.Join(home, "data"), filepath.Join(home, "meta"))
	require.NoError(t, st.EnsureDirectories())

	srv, err := NewServer(st, logger.GetLogger())
	require.NoError(t, err)
	return st, srv.Handler()
}

func writeSession(t *testing.T, st *store.Store, id string, lines ...string) {
	t.Helper()
	w, err := st.OpenForAppend(id)
	require.NoError(t, err)
	for _, line := range lines {
		require.NoError(t, w.AppendLine(line))
	}
	require.NoError(t, w.Close())
}

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func decodeData(t *testing.T, body string) []string {
	t.Helper()
	var payload DataResponse
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	return payload.Data
}

func TestAPIList(t *testing.T) {
	st, h := setup(t)

	resp, body := get(t, h, "/tull/api")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"data":[]}`, body)

	writeSession(t, st, "one", "a")
	writeSession(t, st, "two", "b")

	_, body = get(t, h, "/tull/api")
	assert.ElementsMatch(t, []string{"one", "two"}, decodeData(t, body))
}

func TestAPISession(t *testing.T) {
	st, h := setup(t)
	writeSession(t, st, "s1", "a", "b")

	resp, body := get(t, h, "/tull/api/s1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":["a","b"]}`, body)
}

func TestAPISession_NotFound(t *testing.T) {
	_, h := setup(t)

	resp, body := get(t, h, "/tull/api/missing")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":[]}`, body)
}

func TestAPISession_TraversalIsNotFound(t *testing.T) {
	_, h := setup(t)

	resp, body := get(t, h, "/tull/api/..")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":[]}`, body)
}

func TestRawList_NoSeparator(t *testing.T) {
	st, h := setup(t)
	writeSession(t, st, "abc", "x")
	writeSession(t, st, "def", "y")

	resp, body := get(t, h, "/tull/raw")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body == "abcdef" || body == "defabc", "got %q", body)
}

func TestRawSession(t *testing.T) {
	st, h := setup(t)
	writeSession(t, st, "s1", "a", "b")

	resp, body := get(t, h, "/tull/raw/s1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "a\nb", body)
}

func TestRawSession_NotFound(t *testing.T) {
	_, h := setup(t)

	resp, body := get(t, h, "/tull/raw/missing")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", body)
}

func TestWebList(t *testing.T) {
	st, h := setup(t)
	writeSession(t, st, "s1", "a")

	resp, body := get(t, h, "/tull/web")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `href='/tull/web/s1'`)
	assert.Contains(t, body, ">s1</a>")
}

func TestWebSession(t *testing.T) {
	st, h := setup(t)
	writeSession(t, st, "s1", "hello", "<b>world</b>")

	resp, body := get(t, h, "/tull/web/s1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "window.location.reload()")
	assert.Contains(t, body, "5000")
	assert.Contains(t, body, "<span>hello</span><br /><span>&lt;b&gt;world&lt;/b&gt;</span>")
	assert.NotContains(t, body, "long gone")
}

func TestWebSession_NotFoundIs200(t *testing.T) {
	_, h := setup(t)

	resp, body := get(t, h, "/tull/web/missing")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Whatever you are looking for, is long gone!")
	assert.NotContains(t, body, "reload")
}

func TestOnlyGetRoutes(t *testing.T) {
	_, h := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/tull/api", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	resp, _ := get(t, h, "/tull")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReadsDoNotMutateStore(t *testing.T) {
	st, h := setup(t)
	writeSession(t, st, "s1", "a")

	for _, path := range []string{"/tull/web", "/tull/web/s1", "/tull/web/new", "/tull/api", "/tull/api/s1", "/tull/api/new", "/tull/raw", "/tull/raw/s1", "/tull/raw/new"} {
		get(t, h, path)
	}

	ids, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestCaptureThenServe(t *testing.T) {
	st, h := setup(t)

	res, err := capture.Run(context.Background(), capture.Options{
		Store: st,
		In:    strings.NewReader("hello\nworld\n"),
	})
	require.NoError(t, err)

	ids, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{res.ID}, ids)

	_, body := get(t, h, "/tull/api")
	assert.JSONEq(t, `{"data":["`+res.ID+`"]}`, body)

	_, body = get(t, h, "/tull/api/"+res.ID)
	assert.JSONEq(t, `{"data":["hello","world"]}`, body)

	_, body = get(t, h, "/tull/raw")
	assert.Equal(t, res.ID, body)

	_, body = get(t, h, "/tull/raw/"+res.ID)
	assert.Equal(t, "hello\nworld", body)
}

func TestReaderSeesGrowingSession(t *testing.T) {
	st, h := setup(t)

	w, err := st.OpenForAppend("live")
	require.NoError(t, err)
	defer w.Close()

	_, body := get(t, h, "/tull/api/live")
	assert.JSONEq(t, `{"data":[]}`, body)

	require.NoError(t, w.AppendLine("first"))
	_, body = get(t, h, "/tull/api/live")
	assert.JSONEq(t, `{"data":["first"]}`, body)

	require.NoError(t, w.AppendLine("second"))
	_, body = get(t, h, "/tull/raw/live")
	assert.Equal(t, "first\nsecond", body)
}

func TestCaptureSingleBlankLine(t *testing.T) {
	st, h := setup(t)

	res, err := capture.Run(context.Background(), capture.Options{
		Store: st,
		In:    strings.NewReader("\n"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Lines)
	require.False(t, res.Discarded)

	_, body := get(t, h, "/tull/api/"+res.ID)
	assert.JSONEq(t, `{"data":[""]}`, body)

	_, body = get(t, h, "/tull/raw/"+res.ID)
	assert.Equal(t, "", body)

	resp, body := get(t, h, "/tull/web/"+res.ID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<span></span>")
}
