package server

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// configureTLS attaches a TLS configuration to httpServer when server mode is enabled
func (s *Server) configureTLS(httpServer *http.Server) error {
	if !s.tlsEnabled() {
		return nil
	}

	tlsConfig, err := s.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	httpServer.TLSConfig = tlsConfig

	s.Logger.Info("TLS configured",
		"mode", s.TLSConfig.Mode,
		"min_version", s.TLSConfig.MinVersion,
		"auto_reload", s.TLSConfig.AutoReload)
	return nil
}

// buildTLSConfig creates the TLS configuration
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ClientAuth: tls.NoClientCert,
	}

	if err := s.configureTLSCertificates(tlsConfig); err != nil {
		return nil, err
	}
	s.configureTLSVersion(tlsConfig)

	return tlsConfig, nil
}

// configureTLSCertificates loads the key pair statically or through a reloading watcher
func (s *Server) configureTLSCertificates(tlsConfig *tls.Config) error {
	if s.TLSConfig.CertFile == "" || s.TLSConfig.KeyFile == "" {
		return fmt.Errorf("TLS certificate and key files are required")
	}

	if s.TLSConfig.AutoReload {
		watcher, err := NewCertWatcher(s.TLSConfig.CertFile, s.TLSConfig.KeyFile, time.Second, s.Logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		s.certWatcher = watcher
		tlsConfig.GetCertificate = watcher.GetCertificate
		return nil
	}

	cert, err := tls.LoadX509KeyPair(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load server cert/key from files: %w", err)
	}
	tlsConfig.Certificates = []tls.Certificate{cert}
	return nil
}

// configureTLSVersion sets the minimum TLS version
func (s *Server) configureTLSVersion(tlsConfig *tls.Config) {
	switch s.TLSConfig.MinVersion {
	case "1.3":
		tlsConfig.MinVersion = tls.VersionTLS13
	default:
		tlsConfig.MinVersion = tls.VersionTLS12
	}
}
