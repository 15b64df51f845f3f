package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func testAssets() fstest.MapFS {
	return fstest.MapFS{
		"dist/index.html":    {Data: []byte("<html>chat</html>")},
		"dist/assets/app.js": {Data: []byte("console.log(1)")},
	}
}

func get(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSPAHandlerServesIndex(t *testing.T) {
	h := newSPAHandler(testAssets(), "dist")

	for _, target := range []string{"/", "/index.html", "/sessions/abc", "/../../etc/passwd"} {
		rec := get(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "<html>chat</html>", rec.Body.String(), target)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"), target)
	}
}

func TestSPAHandlerServesAssets(t *testing.T) {
	h := newSPAHandler(testAssets(), "dist")

	rec := get(t, h, http.MethodGet, "/assets/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age")
}

func TestSPAHandlerDirectoryFallsBackToIndex(t *testing.T) {
	h := newSPAHandler(testAssets(), "dist")

	rec := get(t, h, http.MethodGet, "/assets")
	assert.Equal(t, "<html>chat</html>", rec.Body.String())
}

func TestSPAHandlerRejectsWrites(t *testing.T) {
	h := newSPAHandler(testAssets(), "dist")

	rec := get(t, h, http.MethodPost, "/")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEmbeddedIndexPresent(t *testing.T) {
	rec := get(t, SPAHandler(), http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Persona Chat")
}
