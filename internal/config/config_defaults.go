package config

import (
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by viper
const EnvPrefix = "RESUMEFORM"

// DefaultEndpoint is the hosted resume analysis service
const DefaultEndpoint = "https://resume-review-backend.onrender.com/api/upload-resume"

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Analysis service
	v.SetDefault("analysis.endpoint", DefaultEndpoint)
	v.SetDefault("analysis.authToken", "")
	v.SetDefault("analysis.timeout", time.Duration(0))
	v.SetDefault("analysis.maxResponseSize", 1024*1024)

	v.SetDefault("analysis.circuitBreaker.enabled", false)
	v.SetDefault("analysis.circuitBreaker.maxRequests", 3)
	v.SetDefault("analysis.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("analysis.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("analysis.circuitBreaker.minRequests", 3)
	v.SetDefault("analysis.circuitBreaker.failureThreshold", 0.6)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", time.Duration(0)) // the analysis call has no deadline
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.sessionTTL", 30*time.Minute)

	v.SetDefault("server.tls.mode", "disabled") // disabled, server
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.autoReload", false)

	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 10*1024*1024) // 10MB

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.analysisToken", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "resumeform")
	v.SetDefault("observability.serviceVersion", "")  // app version if empty
	v.SetDefault("observability.serviceInstance", "") // derived from hostname if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.prettyPrint", true)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	v.SetDefault("observability.prometheus.enabled", false)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
