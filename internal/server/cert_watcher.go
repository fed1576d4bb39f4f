package server

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"resumeform/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// CertWatcher serves the server certificate and reloads it when the
// certificate or key file changes on disk.
type CertWatcher struct {
	mu sync.RWMutex

	certFile string
	keyFile  string
	cert     *tls.Certificate

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan chan struct{}
	running  bool

	reloads      int
	failures     int
	lastReload   time.Time
	lastErrorMsg string

	logger *errors.Logger
}

// NewCertWatcher loads the key pair once; Start begins watching for changes
func NewCertWatcher(certFile, keyFile string, debounceDelay time.Duration, logger *errors.Logger) (*CertWatcher, error) {
	if debounceDelay == 0 {
		debounceDelay = time.Second
	}

	cw := &CertWatcher{
		certFile:      certFile,
		keyFile:       keyFile,
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		logger:        logger,
	}

	if err := cw.reload(); err != nil {
		return nil, err
	}
	return cw, nil
}

// GetCertificate implements tls.Config.GetCertificate
func (cw *CertWatcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.cert, nil
}

// reload reads the key pair and swaps it in; the previous certificate stays on failure
func (cw *CertWatcher) reload() error {
	cert, err := tls.LoadX509KeyPair(cw.certFile, cw.keyFile)

	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.lastReload = time.Now()
	if err != nil {
		cw.failures++
		cw.lastErrorMsg = err.Error()
		return fmt.Errorf("failed to load server cert/key from files: %w", err)
	}

	cw.cert = &cert
	cw.reloads++
	cw.lastErrorMsg = ""
	return nil
}

// Start begins watching the directories holding the certificate files
func (cw *CertWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return fmt.Errorf("certificate watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Directories catch atomic writes done by rename.
	dirs := map[string]bool{filepath.Dir(cw.certFile): true, filepath.Dir(cw.keyFile): true}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	cw.fsWatcher = watcher
	cw.running = true
	go cw.watchLoop()

	cw.logger.Info("Certificate file watcher started",
		"cert_file", cw.certFile,
		"key_file", cw.keyFile,
		"debounce_delay", cw.debounceDelay)
	return nil
}

// Stop stops the certificate file watcher
func (cw *CertWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.running {
		return nil
	}

	close(cw.stopChan)
	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.running = false

	if err := cw.fsWatcher.Close(); err != nil {
		cw.logger.LogError(err, "Failed to close file system watcher")
		return err
	}

	cw.logger.Info("Certificate file watcher stopped")
	return nil
}

func (cw *CertWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-cw.fsWatcher.Events:
			if !ok {
				return
			}
			if cw.shouldProcessEvent(event) {
				cw.scheduleReload()
			}

		case err, ok := <-cw.fsWatcher.Errors:
			if !ok {
				return
			}
			cw.logger.LogError(err, "File watcher error")

		case <-cw.stopChan:
			return
		}
	}
}

// shouldProcessEvent reports whether event touches the certificate or key
func (cw *CertWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	name := filepath.Clean(event.Name)
	if name != filepath.Clean(cw.certFile) && name != filepath.Clean(cw.keyFile) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// scheduleReload debounces bursts of events from a single certificate rotation
func (cw *CertWatcher) scheduleReload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}
	cw.debounceTimer = time.AfterFunc(cw.debounceDelay, func() {
		if err := cw.reload(); err != nil {
			cw.logger.LogError(err, "Certificate reload failed, keeping previous certificate")
			return
		}
		cw.logger.Info("Certificate reloaded", "cert_file", cw.certFile)
	})
}

// Status reports reload counters for /health
func (cw *CertWatcher) Status() map[string]any {
	cw.mu.RLock()
	defer cw.mu.RUnlock()

	status := map[string]any{
		"watching":         cw.running,
		"reload_count":     cw.reloads,
		"failure_count":    cw.failures,
		"last_reload_time": cw.lastReload,
	}
	if cw.lastErrorMsg != "" {
		status["last_error"] = cw.lastErrorMsg
	}
	if cw.cert != nil && cw.cert.Leaf != nil {
		status["not_after"] = cw.cert.Leaf.NotAfter
	}
	return status
}
