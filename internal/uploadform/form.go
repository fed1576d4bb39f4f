// Package uploadform holds the resume upload form: the selected file, the job
// description, the submission phase and the last successful analysis.
package uploadform

import (
	"context"
	"strings"
	"sync"

	"resumeform/internal/errors"
	"resumeform/internal/types"
)

// User-facing messages
const (
	ValidationMessage = "Please upload a file and provide a job description before submitting."
	SuccessMessage    = "Resume analyzed successfully!"
	FailureMessage    = "Failed to analyze resume. Please try again."
)

// AnalysisClient submits a resume and job description to the analysis service
type AnalysisClient interface {
	Analyze(ctx context.Context, file types.SelectedFile, jobDescription string) (*types.AnalysisResult, error)
}

// Phase is the submission phase of the form
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// State is the complete form state. Result is independent of Phase.
type State struct {
	Phase          Phase
	File           *types.SelectedFile
	JobDescription string
	Result         *types.AnalysisResult
}

// StateListener observes every state transition
type StateListener func(State)

// Form is safe for concurrent use; at most one submission is in flight.
type Form struct {
	mu       sync.Mutex
	state    State
	client   AnalysisClient
	notifier Notifier
	listener StateListener
	logger   *errors.Logger
}

// Option configures a Form
type Option func(*Form)

// WithNotifier sets where alerts go
func WithNotifier(n Notifier) Option {
	return func(f *Form) { f.notifier = n }
}

// WithStateListener registers a listener for state transitions
func WithStateListener(l StateListener) Option {
	return func(f *Form) { f.listener = l }
}

// WithLogger sets the logger used for diagnostics
func WithLogger(l *errors.Logger) Option {
	return func(f *Form) { f.logger = l }
}

// New creates an idle, empty form
func New(client AnalysisClient, opts ...Option) *Form {
	f := &Form{client: client}
	for _, opt := range opts {
		opt(f)
	}
	if f.notifier == nil {
		f.notifier = DiscardNotifier{}
	}
	if f.logger == nil {
		f.logger = errors.Discard()
	}
	return f
}

// SelectFile replaces the selected file with the first of files.
// An empty selection leaves the current file in place.
func (f *Form) SelectFile(files ...types.SelectedFile) {
	if len(files) == 0 {
		return
	}
	file := files[0]

	f.mu.Lock()
	f.state.File = &file
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	f.logger.Debug("Resume selected",
		"file_name", file.Name,
		"file_size", file.Size,
		"content_type", file.ContentType,
		"ignored_files", len(files)-1)
	f.emit(snapshot)
}

// EditJobDescription stores text verbatim
func (f *Form) EditJobDescription(text string) {
	f.mu.Lock()
	f.state.JobDescription = text
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	f.emit(snapshot)
}

// Submit validates the form and, when valid, sends it to the analysis client.
// It returns a validation AppError without any network call when the file is
// missing or the job description is blank, and a submission AppError when the
// call fails. The form is back to PhaseIdle whenever Submit returns.
func (f *Form) Submit(ctx context.Context) error {
	file, jobDescription, err := f.begin()
	if err != nil {
		return err
	}
	return f.run(ctx, file, jobDescription)
}

// Start is Submit for callers that render while the call is in flight.
// Validation runs before Start returns, so a validation error comes back at
// once and the form is already PhaseSubmitting on success. The channel yields
// the submission outcome once the call settles.
func (f *Form) Start(ctx context.Context) (<-chan error, error) {
	file, jobDescription, err := f.begin()
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- f.run(ctx, file, jobDescription)
	}()
	return done, nil
}

// begin checks the preconditions and moves the form to PhaseSubmitting
func (f *Form) begin() (types.SelectedFile, string, error) {
	f.mu.Lock()
	if f.state.Phase == PhaseSubmitting {
		f.mu.Unlock()
		return types.SelectedFile{}, "", errors.NewValidationError(errors.ErrCodeSubmissionInProgress,
			"A submission is already in progress", nil)
	}
	if f.state.File == nil || strings.TrimSpace(f.state.JobDescription) == "" {
		hasFile := f.state.File != nil
		f.mu.Unlock()

		f.notifier.Notify(Notice{Level: NoticeError, Message: ValidationMessage})
		return types.SelectedFile{}, "", errors.NewValidationError(errors.ErrCodeMissingInput, ValidationMessage, nil).
			WithContext("has_file", hasFile)
	}

	file := *f.state.File
	jobDescription := f.state.JobDescription
	f.state.Phase = PhaseSubmitting
	snapshot := f.snapshotLocked()
	f.mu.Unlock()
	f.emit(snapshot)

	return file, jobDescription, nil
}

// run performs the call for a form already in PhaseSubmitting
func (f *Form) run(ctx context.Context, file types.SelectedFile, jobDescription string) error {
	defer func() {
		f.mu.Lock()
		f.state.Phase = PhaseIdle
		snapshot := f.snapshotLocked()
		f.mu.Unlock()
		f.emit(snapshot)
	}()

	f.logger.Info("Submitting resume for analysis",
		"file_name", file.Name,
		"file_size", file.Size,
		"job_chars", len(jobDescription))

	result, err := f.client.Analyze(ctx, file, jobDescription)
	if err == nil && result == nil {
		err = errors.NewInternalError(errors.ErrCodeInvalidResponse, "analysis client returned no result", nil)
	}
	if err != nil {
		f.logger.LogError(err, "Error uploading resume", "file_name", file.Name)
		f.notifier.Notify(Notice{Level: NoticeError, Message: FailureMessage})
		return errors.NewSubmissionError(errors.ErrCodeSubmissionFailed, FailureMessage, err)
	}

	f.mu.Lock()
	f.state.Result = result
	snapshot := f.snapshotLocked()
	f.mu.Unlock()
	f.emit(snapshot)

	f.logger.Info("Resume analyzed", "ats_score", result.DisplayScore())
	f.notifier.Notify(Notice{Level: NoticeSuccess, Message: SuccessMessage})
	return nil
}

// State returns a copy of the current state
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// View renders the current state
func (f *Form) View() View {
	return Render(f.State())
}

func (f *Form) snapshotLocked() State {
	s := f.state
	if s.File != nil {
		file := *s.File
		s.File = &file
	}
	return s
}

func (f *Form) emit(s State) {
	if f.listener != nil {
		f.listener(s)
	}
}
