package middleware

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveCompressed runs one request through the compression middleware and
// returns the recorder.
func serveCompressed(t *testing.T, cfg CompressionConfig, acceptEncoding string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	mw, err := CompressionMiddleware(cfg)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	mw(handler).ServeHTTP(w, req)

	return w
}

func gunzip(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	gr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	defer gr.Close()

	b, err := io.ReadAll(gr)
	require.NoError(t, err)

	return string(b)
}

func TestCompressionMiddleware(t *testing.T) {
	textHandler := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(body))
		}
	}

	t.Run("config validation", func(t *testing.T) {
		tests := []struct {
			name    string
			config  CompressionConfig
			wantErr error
		}{
			{"level too low", CompressionConfig{Level: -3}, ErrInvalidLevel},
			{"level too high", CompressionConfig{Level: 10}, ErrInvalidLevel},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := CompressionMiddleware(tt.config)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}

		for _, cfg := range []CompressionConfig{
			{},
			{Level: flate.BestSpeed},
			{Level: flate.BestCompression},
			{Level: flate.HuffmanOnly},
			{MinLength: 1024},
		} {
			_, err := CompressionMiddleware(cfg)
			assert.NoError(t, err)
		}
	})

	t.Run("gzip round trip", func(t *testing.T) {
		body := "hello world, this is a response body worth compressing"

		w := serveCompressed(t, CompressionConfig{}, "gzip", textHandler(body))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
		assert.Empty(t, w.Header().Get("Content-Length"))
		assert.Equal(t, body, gunzip(t, w))
	})

	t.Run("deflate round trip", func(t *testing.T) {
		body := "hello world, this is a response body worth compressing"

		w := serveCompressed(t, CompressionConfig{}, "deflate", textHandler(body))

		assert.Equal(t, "deflate", w.Header().Get("Content-Encoding"))

		dr := flate.NewReader(w.Body)
		defer dr.Close()

		b, err := io.ReadAll(dr)
		require.NoError(t, err)
		assert.Equal(t, body, string(b))
	})

	t.Run("prefers gzip when both are accepted", func(t *testing.T) {
		w := serveCompressed(t, CompressionConfig{}, "deflate, gzip", textHandler("data"))

		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	})

	t.Run("quality values steer the choice", func(t *testing.T) {
		w := serveCompressed(t, CompressionConfig{}, "gzip;q=0, deflate", textHandler("data"))

		assert.Equal(t, "deflate", w.Header().Get("Content-Encoding"))
	})

	t.Run("no accept encoding passes through", func(t *testing.T) {
		body := "uncompressed body"

		w := serveCompressed(t, CompressionConfig{}, "", textHandler(body))

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, body, w.Body.String())
	})

	t.Run("body below min length stays uncompressed", func(t *testing.T) {
		w := serveCompressed(t, CompressionConfig{MinLength: 1024}, "gzip", textHandler("tiny"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, "tiny", w.Body.String())
	})

	t.Run("body reaching min length is compressed", func(t *testing.T) {
		body := "0123456789abcdef"

		w := serveCompressed(t, CompressionConfig{MinLength: len(body)}, "gzip", textHandler(body))

		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.Equal(t, body, gunzip(t, w))
	})

	t.Run("existing content encoding is left alone", func(t *testing.T) {
		w := serveCompressed(t, CompressionConfig{}, "gzip", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			w.Write([]byte("pre-encoded"))
		})

		assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
		assert.Equal(t, "pre-encoded", w.Body.String())
	})

	t.Run("incompressible content type passes through", func(t *testing.T) {
		w := serveCompressed(t, CompressionConfig{}, "gzip", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("binary image bytes"))
		})

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, "binary image bytes", w.Body.String())
	})

	t.Run("handler status survives the buffering", func(t *testing.T) {
		w := serveCompressed(t, CompressionConfig{}, "gzip", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte("short and stout"))
		})

		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.Equal(t, "short and stout", gunzip(t, w))
	})

	t.Run("header only response keeps its status", func(t *testing.T) {
		w := serveCompressed(t, CompressionConfig{}, "gzip", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Empty(t, w.Body.Bytes())
	})

	t.Run("flush forces the encoding decision", func(t *testing.T) {
		w := serveCompressed(t, CompressionConfig{MinLength: 1 << 20}, "gzip", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("streamed chunk"))
			w.(http.Flusher).Flush()
		})

		assert.True(t, w.Flushed)
		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		assert.Equal(t, "streamed chunk", gunzip(t, w))
	})
}

func TestNegotiateEncoding(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty header", "", ""},
		{"gzip only", "gzip", "gzip"},
		{"deflate only", "deflate", "deflate"},
		{"gzip preferred on tie", "gzip, deflate", "gzip"},
		{"higher quality wins", "gzip;q=0.5, deflate;q=0.9", "deflate"},
		{"zero quality disables", "gzip;q=0", ""},
		{"wildcard enables both", "*", "gzip"},
		{"wildcard fills the gap", "gzip;q=0, *;q=0.5", "deflate"},
		{"unknown encodings ignored", "br, zstd", ""},
		{"whitespace tolerated", " gzip ; q=0.8 , deflate ", "deflate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, negotiateEncoding(tt.header))
		})
	}
}

func TestEncodingQuality(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantName string
		wantQ    float64
	}{
		{"bare token", "gzip", "gzip", 1.0},
		{"explicit quality", "gzip;q=0.8", "gzip", 0.8},
		{"quality with spaces", "gzip; q=0.5", "gzip", 0.5},
		{"non-q parameter", "gzip;level=5", "gzip", 1.0},
		{"unparseable quality", "gzip;q=high", "gzip", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, q := encodingQuality(tt.in)
			assert.Equal(t, tt.wantName, name)
			assert.InDelta(t, tt.wantQ, q, 1e-9)
		})
	}
}

func TestIncompressible(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/png", true},
		{"IMAGE/JPEG", true},
		{"video/mp4", true},
		{"application/zip", true},
		{"application/gzip", true},
		{"text/html", false},
		{"application/json; charset=utf-8", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, incompressible(tt.contentType), tt.contentType)
	}
}
