package observability

import (
	"context"
	"time"

	"resumeform/internal/errors"
	"resumeform/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Analyzer is anything that can score a resume against a job description
type Analyzer interface {
	Analyze(ctx context.Context, file types.SelectedFile, jobDescription string) (*types.AnalysisResult, error)
}

type instrumentedAnalyzer struct {
	next Analyzer
	om   *ObservabilityManager
}

// InstrumentAnalyzer wraps next with a span and duration/error metrics
func (om *ObservabilityManager) InstrumentAnalyzer(next Analyzer) Analyzer {
	if om == nil || !om.config.Enabled {
		return next
	}
	return &instrumentedAnalyzer{next: next, om: om}
}

func (a *instrumentedAnalyzer) Analyze(ctx context.Context, file types.SelectedFile, jobDescription string) (*types.AnalysisResult, error) {
	ctx, span := a.om.Tracer("resumeform.analysis").Start(ctx, "analysis.submit")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("resume.size_bytes", file.Size),
		attribute.String("resume.content_type", file.ContentType),
		attribute.Int("job_description.length", len(jobDescription)),
	)

	start := time.Now()
	result, err := a.next.Analyze(ctx, file, jobDescription)
	duration := time.Since(start).Seconds()

	m := a.om.GetMetrics()
	attrs := []attribute.KeyValue{attribute.Bool("success", err == nil)}
	if m.AnalysisDuration != nil {
		m.AnalysisDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
	}

	if err != nil {
		code := "UNKNOWN"
		if appErr, ok := errors.AsAppError(err); ok {
			code = appErr.Code
		}
		if m.AnalysisErrors != nil {
			m.AnalysisErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		return nil, err
	}

	if result != nil && result.ATSScore != nil {
		span.SetAttributes(
			attribute.Float64("ats.score", result.ATSScore.Score),
			attribute.Int("ats.breakdown_entries", len(result.Entries())),
		)
	}
	return result, nil
}
