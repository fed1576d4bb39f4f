package cli

import (
	"context"
	"time"

	"resumeform/internal/analysis"
	"resumeform/internal/config"
	"resumeform/internal/errors"
	"resumeform/internal/observability"
	"resumeform/internal/uploadform"
)

// analysisStack is the analysis client plus the telemetry wrapped around it
type analysisStack struct {
	client   *analysis.Client
	analyzer uploadform.AnalysisClient
	om       *observability.ObservabilityManager
	logger   *errors.Logger
}

func newAnalysisStack(cfg *config.Config, logger *errors.Logger) (*analysisStack, error) {
	om, err := observability.NewObservabilityManager(cfg.Observability, Version, observability.WithLogger(logger))
	if err != nil {
		return nil, errors.NewInternalError("OBSERVABILITY_INIT_FAILED", "Failed to initialize observability", err)
	}

	client := analysis.NewClient(cfg.Analysis, analysis.WithLogger(logger))

	return &analysisStack{
		client:   client,
		analyzer: om.InstrumentAnalyzer(client),
		om:       om,
		logger:   logger,
	}, nil
}

// Close flushes telemetry
func (s *analysisStack) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.om.Shutdown(ctx); err != nil {
		s.logger.LogError(err, "Failed to shutdown observability")
	}
}
