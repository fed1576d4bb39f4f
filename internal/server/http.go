// Package server hosts the upload form in the browser and exposes a JSON
// passthrough to the analysis service.
package server

import (
	"sync"
	"time"

	"resumeform/internal/config"
	"resumeform/internal/errors"
	"resumeform/internal/observability"
	"resumeform/internal/uploadform"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthReporter exposes the analysis client's circuit breaker state
type HealthReporter interface {
	Stats() map[string]any
	Healthy() bool
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// TLS Configuration
	TLSConfig   config.TLSConfig
	certWatcher *CertWatcher

	// API Authentication
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Sessions *SessionStore

	// Browser submissions still in flight
	submissions sync.WaitGroup

	client uploadform.AnalysisClient
	health HealthReporter
	om     *observability.ObservabilityManager

	// Logger
	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Version        string
	Server         config.ServerConfig
	MaxRequestSize int64

	Client        uploadform.AnalysisClient
	Health        HealthReporter // optional
	Observability *observability.ObservabilityManager
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(cfg ServerConfig, logger *errors.Logger) *Server {
	if logger == nil {
		logger = errors.Discard()
	}

	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.Server.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	metrics := cfg.Observability.GetMetrics()

	var rateLimiter *RateLimiter
	rateLimit := cfg.Server.RateLimit
	if rateLimit.Enabled {
		rateLimiter = NewRateLimiter(rateLimit.RequestsPerMin, rateLimit.BurstCapacity, logger)
	}

	return &Server{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        cfg.Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      &rateLimit,
		RateLimiter:    rateLimiter,
		Sessions:       NewSessionStore(cfg.Client, cfg.Server.SessionTTL, metrics, logger),
		client:         cfg.Client,
		health:         cfg.Health,
		om:             cfg.Observability,
		Logger:         logger,
	}
}

func (s *Server) tlsEnabled() bool {
	return s.TLSConfig.Mode == "server"
}
