package middleware

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	httpd "github.com/tetherto/svc-facs-httpd"
)

// ErrInvalidLevel is returned when CompressionConfig.Level is outside the
// range flate accepts.
var ErrInvalidLevel = errors.New("compression: level outside the flate range")

// CompressionConfig configures the Compression middleware behaviour.
type CompressionConfig struct {
	// Level is the compression level shared by gzip and deflate. Zero
	// means flate.DefaultCompression; otherwise it must be within
	// [flate.HuffmanOnly, flate.BestCompression].
	Level int

	// MinLength is the smallest response body, in bytes, worth
	// compressing. Bodies below it are sent as-is. Zero compresses
	// everything.
	MinLength int
}

// compressor is the writer surface shared by gzip.Writer and flate.Writer.
type compressor interface {
	io.WriteCloser
	Flush() error
	Reset(w io.Writer)
}

// CompressionMiddleware returns a middleware that gzip- or deflate-encodes
// response bodies for clients that advertise support in Accept-Encoding,
// preferring gzip when both carry equal quality. Writers are pooled and
// response bodies are buffered up to MinLength before the encoding decision
// is made.
//
// A response is left unencoded when the client accepts neither encoding,
// when the handler already set Content-Encoding, or when the Content-Type
// is an inherently compressed format (image/*, video/*, audio/*, common
// archive types).
//
// It returns ErrInvalidLevel if Level is outside the flate range.
func CompressionMiddleware(cfg CompressionConfig) (httpd.MiddlewareFunc, error) {
	level := cfg.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, ErrInvalidLevel
	}

	minLength := cfg.MinLength

	gzipPool := &sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(io.Discard, level)
			return w
		},
	}
	deflatePool := &sync.Pool{
		New: func() any {
			w, _ := flate.NewWriter(io.Discard, level)
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
			if encoding == "" {
				next.ServeHTTP(w, r)
				return
			}

			pool := gzipPool
			if encoding == "deflate" {
				pool = deflatePool
			}

			cw := &compressWriter{
				ResponseWriter: w,
				pool:           pool,
				minLength:      minLength,
				encoding:       encoding,
			}
			defer cw.close()

			next.ServeHTTP(cw, r)
		})
	}, nil
}

// negotiateEncoding picks "gzip", "deflate" or "" from an Accept-Encoding
// header value. A wildcard entry stands in for any encoding not listed
// explicitly, and gzip wins ties.
func negotiateEncoding(header string) string {
	gzipQ, deflateQ, wildQ := -1.0, -1.0, -1.0

	for part := range strings.SplitSeq(header, ",") {
		name, q := encodingQuality(strings.TrimSpace(part))

		switch name {
		case "gzip":
			gzipQ = q
		case "deflate":
			deflateQ = q
		case "*":
			wildQ = q
		}
	}

	if gzipQ < 0 && wildQ >= 0 {
		gzipQ = wildQ
	}
	if deflateQ < 0 && wildQ >= 0 {
		deflateQ = wildQ
	}

	switch {
	case gzipQ > 0 && gzipQ >= deflateQ:
		return "gzip"
	case deflateQ > 0:
		return "deflate"
	default:
		return ""
	}
}

// encodingQuality splits one Accept-Encoding element into its name and
// quality value. A missing q parameter means full quality per RFC 9110,
// an unparseable one means zero.
func encodingQuality(s string) (string, float64) {
	name, params, ok := strings.Cut(s, ";")
	name = strings.TrimSpace(name)
	if !ok {
		return name, 1.0
	}

	key, val, found := strings.Cut(strings.TrimSpace(params), "=")
	if !found || strings.TrimSpace(key) != "q" {
		return name, 1.0
	}

	q, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return name, 0
	}

	return name, q
}

// incompressibleTypes lists Content-Type prefixes and exact types that are
// already compressed and gain nothing from a second pass.
var incompressibleTypes = []string{
	"image/",
	"video/",
	"audio/",
	"application/zip",
	"application/gzip",
	"application/x-gzip",
	"application/x-bzip2",
	"application/x-xz",
	"application/zstd",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
}

func incompressible(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))

	for _, prefix := range incompressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}

	return false
}

// compressWriter wraps the response and defers the compress-or-not decision
// until MinLength body bytes have been buffered, so short responses skip
// encoding entirely. Header writes are held back until the decision point.
type compressWriter struct {
	http.ResponseWriter
	pool      *sync.Pool
	minLength int
	encoding  string

	writer      compressor
	buf         []byte
	wroteHeader bool
	decided     bool
	status      int
}

func (cw *compressWriter) WriteHeader(status int) {
	if cw.wroteHeader {
		return
	}

	cw.status = status
	cw.wroteHeader = true

	if cw.decided {
		cw.ResponseWriter.WriteHeader(status)
	}
}

func (cw *compressWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}

	if cw.decided {
		if cw.writer != nil {
			return cw.writer.Write(b)
		}
		return cw.ResponseWriter.Write(b)
	}

	cw.buf = append(cw.buf, b...)
	if len(cw.buf) >= cw.minLength {
		cw.decide()
	}

	return len(b), nil
}

// decide settles the encoding question, writes the held-back header and
// drains the buffer. Handlers that set their own Content-Encoding or emit
// an incompressible Content-Type pass through untouched.
func (cw *compressWriter) decide() {
	cw.decided = true

	h := cw.Header()
	if h.Get("Content-Encoding") != "" || incompressible(h.Get("Content-Type")) {
		cw.ResponseWriter.WriteHeader(cw.status)
		cw.ResponseWriter.Write(cw.buf)
		cw.buf = nil
		return
	}

	h.Set("Content-Encoding", cw.encoding)
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")

	cw.writer = cw.pool.Get().(compressor)
	cw.writer.Reset(cw.ResponseWriter)

	cw.ResponseWriter.WriteHeader(cw.status)
	cw.writer.Write(cw.buf)
	cw.buf = nil
}

// close flushes whatever is still pending once the handler returns. An
// undecided buffer never reached MinLength (Write decides at the
// threshold), so it goes out uncompressed.
func (cw *compressWriter) close() {
	if !cw.decided {
		cw.decided = true

		switch {
		case len(cw.buf) > 0:
			cw.ResponseWriter.WriteHeader(cw.status)
			cw.ResponseWriter.Write(cw.buf)
			cw.buf = nil
		case cw.wroteHeader:
			cw.ResponseWriter.WriteHeader(cw.status)
		}
	}

	if cw.writer != nil {
		cw.writer.Close()
		cw.pool.Put(cw.writer)
		cw.writer = nil
	}
}

// Flush implements http.Flusher. It forces the encoding decision so data
// can reach the client mid-response.
func (cw *compressWriter) Flush() {
	if !cw.decided && len(cw.buf) > 0 {
		cw.decide()
	}

	if cw.writer != nil {
		cw.writer.Flush()
	}

	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the wrapped ResponseWriter.
func (cw *compressWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
