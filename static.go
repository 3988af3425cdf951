package httpd

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"

	"github.com/tetherto/svc-facs-httpd/routetable"
)

// ErrStaticNoFS is returned when Static is called with a nil file system.
var ErrStaticNoFS = errors.New("httpd: static: file system must not be nil")

// ErrStaticNoIndexHTML is returned when the SPA fallback is enabled but the
// file system does not contain an index.html at the root.
var ErrStaticNoIndexHTML = errors.New("httpd: static: index.html is required when SPA fallback is enabled")

// StaticOption configures a Static mount.
type StaticOption func(*staticConfig)

type staticConfig struct {
	directoryListing bool
	spaFallback      bool
}

// WithDirectoryListing allows directory contents to be listed when no
// index.html is present. Disabled by default.
func WithDirectoryListing() StaticOption {
	return func(c *staticConfig) {
		c.directoryListing = true
	}
}

// WithSPAFallback serves the root index.html for any path that does not
// match an existing file. This allows client-side routers to handle all
// routes. Requires index.html at the root of the file system.
func WithSPAFallback() StaticOption {
	return func(c *staticConfig) {
		c.spaFallback = true
	}
}

// Static declares a file server under prefix: it registers the wildcard
// route "<prefix>/*" for GET and HEAD, serving the file system through
// http.FileServerFS with the prefix stripped. A request for
// "/assets/css/site.css" mounted at "/assets" serves "css/site.css".
// Works with os.DirFS, embed.FS, and any fs.FS implementation.
//
//	srv.Static("/assets", os.DirFS("./public"))
//
// The mount root itself is not declared: the wildcard needs at least one
// segment after the prefix, so "/assets" resolves like any other
// unregistered path. Like every declaration, Static fails with
// ErrAlreadyStarted once the server has started.
func (s *Server) Static(prefix string, fsys fs.FS, opts ...StaticOption) error {
	if fsys == nil {
		return fmt.Errorf("httpd: static %q: %w", prefix, ErrStaticNoFS)
	}

	var cfg staticConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.spaFallback {
		if _, err := fs.Stat(fsys, "index.html"); err != nil {
			return fmt.Errorf("httpd: static %q: %w", prefix, ErrStaticNoIndexHTML)
		}
	}

	fileSystem := fsys

	if !cfg.directoryListing {
		fileSystem = hideBareDirs(fileSystem)
	}

	if cfg.spaFallback {
		fileSystem = fallBackToIndex(fileSystem)
	}

	mount := routetable.Normalize(prefix)
	template := mount + "/*"
	strip := mount
	if mount == "/" {
		template = "/*"
		strip = ""
	}

	handler := http.StripPrefix(strip, http.FileServerFS(fileSystem))

	return s.Handle(template, handler, http.MethodGet, http.MethodHead)
}

// openFunc adapts a function to fs.FS.
type openFunc func(name string) (fs.File, error)

func (f openFunc) Open(name string) (fs.File, error) {
	return f(name)
}

// hideBareDirs wraps fsys so that opening a directory without an index.html
// fails with fs.ErrNotExist. http.FileServerFS then responds 404 instead of
// rendering a listing; directories that do hold an index.html still open
// normally and serve it.
func hideBareDirs(fsys fs.FS) fs.FS {
	return openFunc(func(name string) (fs.File, error) {
		f, err := fsys.Open(name)
		if err != nil {
			return nil, err
		}

		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}

		if info.IsDir() {
			if _, err := fs.Stat(fsys, path.Join(name, "index.html")); err != nil {
				_ = f.Close()
				return nil, fs.ErrNotExist
			}
		}

		return f, nil
	})
}

// fallBackToIndex wraps fsys so that paths that do not exist open the root
// index.html instead, letting a client-side router own every route under
// the mount.
func fallBackToIndex(fsys fs.FS) fs.FS {
	return openFunc(func(name string) (fs.File, error) {
		f, err := fsys.Open(name)
		if errors.Is(err, fs.ErrNotExist) {
			return fsys.Open("index.html")
		}
		return f, err
	})
}
