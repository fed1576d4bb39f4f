package common

import (
	"context"
	"io"

	"resumeform/internal/errors"
	"resumeform/internal/observability"
	"resumeform/internal/uploadform"
)

// SubmitConfig describes one non-interactive submission
type SubmitConfig struct {
	ResumeFile     string
	JobDescription string
	JobFile        string // read instead of JobDescription when set

	CommandConfig
}

// Runner drives an upload form from command line input
type Runner struct {
	client   uploadform.AnalysisClient
	metrics  *observability.Metrics
	logger   *errors.Logger
	files    *FileProcessor
	output   *OutputHandler
	notifier uploadform.Notifier
	formats  []string
}

// NewRunner creates a runner. Alerts go to alerts, rendered results to stdout.
func NewRunner(client uploadform.AnalysisClient, metrics *observability.Metrics, logger *errors.Logger,
	maxFileSize int64, supportedFormats []string, stdout, alerts io.Writer) *Runner {
	if logger == nil {
		logger = errors.Discard()
	}
	return &Runner{
		client:   client,
		metrics:  metrics,
		logger:   logger,
		files:    NewFileProcessor(logger, maxFileSize),
		output:   NewOutputHandlerWithWriter(logger, stdout),
		notifier: NewTerminalNotifier(alerts),
		formats:  supportedFormats,
	}
}

// Run selects the resume, sets the job description, submits and renders the result.
// Missing input is left to the form so the user sees the same alert as every other surface.
func (r *Runner) Run(ctx context.Context, cfg SubmitConfig) error {
	if err := ValidateOutputFormat(cfg.OutputFormat, r.formats); err != nil {
		return err
	}
	if err := r.files.ValidateOutputFile(cfg.OutputFile); err != nil {
		return err
	}

	form := uploadform.New(r.client,
		uploadform.WithNotifier(r.notifier),
		uploadform.WithLogger(r.logger))

	if cfg.ResumeFile != "" {
		file, err := r.files.ReadResume(cfg.ResumeFile)
		if err != nil {
			return err
		}
		form.SelectFile(file)
	}

	jobDescription := cfg.JobDescription
	if cfg.JobFile != "" {
		text, err := r.files.ReadText(cfg.JobFile)
		if err != nil {
			return err
		}
		jobDescription = text
	}
	form.EditJobDescription(jobDescription)

	err := form.Submit(ctx)
	r.metrics.RecordSubmission(ctx, err, "cli")
	if err != nil {
		return err
	}

	return r.output.HandleOutput(form.State().Result, cfg.CommandConfig)
}
