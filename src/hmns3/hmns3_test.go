package hmns3

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, srv *httptest.Server, method, path, contentType, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(resBody)
}

func TestServer(t *testing.T) {
	dir := t.TempDir()
	srv := httptest.NewServer(NewServer(dir))
	defer srv.Close()

	res, body := do(t, srv, http.MethodPut, "/media/20043/1.png", "image/png", "png bytes")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, body, "<Code>NoSuchBucket</Code>")

	res, _ = do(t, srv, http.MethodPut, "/media", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.DirExists(t, filepath.Join(dir, "media"))

	res, _ = do(t, srv, http.MethodPut, "/media/20043/1.png", "image/png", "png bytes")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	stored, err := os.ReadFile(filepath.Join(dir, "media", "20043", "1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(stored))

	res, body = do(t, srv, http.MethodGet, "/media/20043/1.png", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/png", res.Header.Get("Content-Type"))
	assert.Equal(t, "png bytes", body)

	res, body = do(t, srv, http.MethodGet, "/media/20043/2.png", "", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, body, "<Code>NoSuchKey</Code>")

	res, _ = do(t, srv, http.MethodDelete, "/media/20043/1.png", "", "")
	assert.Equal(t, http.StatusNotImplemented, res.StatusCode)

	res, _ = do(t, srv, http.MethodGet, "/media/../../etc/passwd", "", "")
	assert.NotEqual(t, http.StatusOK, res.StatusCode)
}

func TestBucketKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/media/20043/1.png?x-id=GetObject", nil)
	bucket, key := bucketKey(r)
	assert.Equal(t, "media", bucket)
	assert.Equal(t, "20043/1.png", key)

	r = httptest.NewRequest(http.MethodPut, "/media", nil)
	bucket, key = bucketKey(r)
	assert.Equal(t, "media", bucket)
	assert.Equal(t, "", key)
}
