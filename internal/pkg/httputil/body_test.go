package httputil

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBody(t *testing.T) {
	t.Run("nil request and nil body", func(t *testing.T) {
		got, err := ReadBody(nil, 100)
		require.NoError(t, err)
		require.Nil(t, got)

		req := httptest.NewRequest("POST", "/x", nil)
		req.Body = nil
		got, err = ReadBody(req, 100)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("reads within limit", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/x", strings.NewReader("hello"))
		got, err := ReadBody(req, 100)
		require.NoError(t, err)
		require.Equal(t, "hello", string(got))
	})

	t.Run("exact limit passes", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/x", strings.NewReader("12345"))
		got, err := ReadBody(req, 5)
		require.NoError(t, err)
		require.Len(t, got, 5)
	})

	t.Run("declared length over limit rejected early", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/x", strings.NewReader(strings.Repeat("a", 64)))
		// httptest 会把 ContentLength 设为 64，读之前就能拒绝
		_, err := ReadBody(req, 10)
		require.Error(t, err)
		require.Contains(t, err.Error(), "exceeds limit")
	})

	t.Run("undeclared length still bounded", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/x", io.NopCloser(strings.NewReader(strings.Repeat("a", 64))))
		req.ContentLength = -1
		_, err := ReadBody(req, 10)
		require.Error(t, err)
		require.Contains(t, err.Error(), "exceeds limit")
	})

	t.Run("zero limit means unlimited", func(t *testing.T) {
		big := strings.Repeat("b", 4096)
		req := httptest.NewRequest("POST", "/x", strings.NewReader(big))
		got, err := ReadBody(req, 0)
		require.NoError(t, err)
		require.Len(t, got, len(big))
	})
}
