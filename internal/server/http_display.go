package server

import (
	"fmt"
	"io"
	"os"
)

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.writeServerInfo(os.Stdout)
}

func (s *Server) writeServerInfo(w io.Writer) {
	scheme := "http"
	if s.tlsEnabled() {
		scheme = "https"
	}
	fmt.Fprintf(w, "Resume form: %s://%s:%s/\n", scheme, s.Host, s.Port)

	s.displayEndpoints(w)
	s.displayAuthInfo(w)
	s.displayRequestLimitInfo(w)
	s.displayRateLimitInfo(w)
}

// displayEndpoints shows available endpoints
func (s *Server) displayEndpoints(w io.Writer) {
	fmt.Fprintln(w, "Available endpoints:")
	fmt.Fprintln(w, "  GET  /             - Resume upload form")
	fmt.Fprintln(w, "  POST /             - Submit the form")
	fmt.Fprintln(w, "  POST /api/analyze  - Analyze resume, JSON response (requires API key if configured)")
	fmt.Fprintln(w, "  GET  /health       - Health check")
	fmt.Fprintln(w, "  GET  /stats        - Server statistics")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo(w io.Writer) {
	if len(s.APIKeys) > 0 {
		fmt.Fprintf(w, "API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		fmt.Fprintln(w, "Include 'X-API-Key: <your-key>' header in requests to /api/analyze")
	} else {
		fmt.Fprintln(w, "API authentication: DISABLED (no API keys configured)")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo(w io.Writer) {
	if s.MaxRequestSize > 0 {
		fmt.Fprintf(w, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(w, "Request size limit: DISABLED")
		fmt.Fprintln(w, "WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo(w io.Writer) {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Fprintf(w, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Fprintln(w, "  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Fprintln(w, "  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Fprintln(w, "Rate limiting: DISABLED")
	}
}
