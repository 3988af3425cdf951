package httpd

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// certReloader serves the TLS key pair for the server and, when reloading is
// enabled, watches the certificate and key files and swaps the pair in on
// change. A pair that fails to load is logged and discarded; the previous
// pair stays in service.
type certReloader struct {
	certFile string
	keyFile  string
	logger   *zap.Logger

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	stoppedCh chan struct{}

	closeOnce sync.Once
}

const certReloadDebounce = 100 * time.Millisecond

// newCertReloader loads the initial key pair from certFile and keyFile.
// With reload enabled it also starts a file watcher on the parent
// directories, so renames and symlink swaps (the Kubernetes secret update
// model) are observed as well as in-place writes.
func newCertReloader(certFile, keyFile string, reload bool, logger *zap.Logger) (*certReloader, error) {
	certPath, err := filepath.Abs(certFile)
	if err != nil {
		return nil, fmt.Errorf("httpd: tls: %w", err)
	}

	keyPath, err := filepath.Abs(keyFile)
	if err != nil {
		return nil, fmt.Errorf("httpd: tls: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("httpd: tls: load key pair: %w", err)
	}

	c := &certReloader{
		certFile: certPath,
		keyFile:  keyPath,
		logger:   logger,
		cert:     &cert,
	}

	if !reload {
		return c, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("httpd: tls: watch: %w", err)
	}

	for _, dir := range watchDirs(certPath, keyPath) {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("httpd: tls: watch %q: %w", dir, err)
		}
	}

	c.watcher = watcher
	c.stopCh = make(chan struct{})
	c.stoppedCh = make(chan struct{})

	go c.watch()

	c.logger.Info("watching tls key pair",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return c, nil
}

// watchDirs returns the parent directories of the given files, deduplicated.
// Certificate and key usually share a directory.
func watchDirs(files ...string) []string {
	var dirs []string
	for _, file := range files {
		dir := filepath.Dir(file)
		seen := false
		for _, d := range dirs {
			if d == dir {
				seen = true
				break
			}
		}
		if !seen {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// GetCertificate returns the current key pair. It has the signature of
// tls.Config.GetCertificate, so every TLS handshake picks up the most
// recently loaded pair without restarting the listener.
func (c *certReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cert, nil
}

// Close stops the file watcher. It is a no-op when reloading is disabled
// and safe to call more than once.
func (c *certReloader) Close() {
	c.closeOnce.Do(func() {
		if c.watcher == nil {
			return
		}
		close(c.stopCh)
		<-c.stoppedCh
		c.watcher.Close()
	})
}

// watch is the main watch loop. Events for either file reset a debounce
// timer; the reload runs once the timer fires, so a writer replacing both
// files triggers a single reload.
func (c *certReloader) watch() {
	defer close(c.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-c.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			debounceTimer, debounceCh = c.handleFileEvent(event, debounceTimer, debounceCh)

		case <-debounceCh:
			debounceCh = nil
			c.reload()

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("tls watcher error", zap.Error(err))
		}
	}
}

// handleFileEvent processes a file system event and returns the updated
// debounce timer.
func (c *certReloader) handleFileEvent(
	event fsnotify.Event,
	debounceTimer *time.Timer,
	debounceCh <-chan time.Time,
) (timer *time.Timer, ch <-chan time.Time) {
	name := filepath.Clean(event.Name)
	if name != c.certFile && name != c.keyFile {
		return debounceTimer, debounceCh
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return debounceTimer, debounceCh
	}

	c.logger.Debug("tls file changed",
		zap.String("path", event.Name),
		zap.String("op", event.Op.String()),
	)

	if debounceTimer != nil {
		debounceTimer.Stop()
	}
	debounceTimer = time.NewTimer(certReloadDebounce)
	return debounceTimer, debounceTimer.C
}

// reload attempts to load the key pair from disk and swap it in.
func (c *certReloader) reload() {
	cert, err := tls.LoadX509KeyPair(c.certFile, c.keyFile)
	if err != nil {
		c.logger.Error("failed to reload tls key pair, keeping previous pair",
			zap.Error(err),
		)
		return
	}

	c.mu.Lock()
	c.cert = &cert
	c.mu.Unlock()

	c.logger.Info("tls key pair reloaded",
		zap.String("cert", c.certFile),
	)
}
