package board

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCacheControl = map[string]string{
	"index.html": "no-cache",
	"assets/*":   "public, max-age=31536000, immutable",
}

func newTestStaticHandler(t *testing.T) http.Handler {
	fsys := fstest.MapFS{
		"index.html":    {Data: []byte("<html>board</html>")},
		"assets/app.js": {Data: []byte("console.log('board')")},
	}
	staticFS, err := NewStaticFS(fsys, "index.html", testCacheControl)
	require.NoError(t, err)
	return staticFS.EtagMiddleware()(http.FileServer(staticFS))
}

func serveStatic(h http.Handler, path, ifNoneMatch string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewStaticFS_MissingFallback(t *testing.T) {
	_, err := NewStaticFS(fstest.MapFS{"app.js": {Data: []byte("x")}}, "index.html", nil)
	assert.Error(t, err)
}

func TestStaticFS(t *testing.T) {
	h := newTestStaticHandler(t)

	t.Run("asset with cache control", func(t *testing.T) {
		rec := serveStatic(h, "/assets/app.js", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))
		assert.Regexp(t, `^"[0-9a-f]{40}"$`, rec.Header().Get("Etag"))
		body, _ := io.ReadAll(rec.Body)
		assert.Equal(t, "console.log('board')", string(body))
	})

	t.Run("matching etag is not modified", func(t *testing.T) {
		etag := serveStatic(h, "/assets/app.js", "").Header().Get("Etag")
		rec := serveStatic(h, "/assets/app.js", etag)
		assert.Equal(t, http.StatusNotModified, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("stale etag is served", func(t *testing.T) {
		rec := serveStatic(h, "/assets/app.js", `"stale"`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown path falls back to index.html", func(t *testing.T) {
		rec := serveStatic(h, "/board/some/route", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<html>board</html>")
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
		assert.Equal(t, serveStatic(h, "/", "").Header().Get("Etag"), rec.Header().Get("Etag"))
	})
}

func TestExpandCacheControl(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":        {Data: []byte("i")},
		"assets/app.js":     {Data: []byte("a")},
		"assets/deep/x.css": {Data: []byte("x")},
	}
	expanded, err := expandCacheControl(fsys, testCacheControl)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"index.html":    "no-cache",
		"assets/app.js": "public, max-age=31536000, immutable",
	}, expanded)
}
