package common

import (
	"fmt"
	"io"

	"resumeform/internal/errors"
	"resumeform/internal/formatters"
	"resumeform/internal/types"
)

// CommandConfig is where and how a command writes its result
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
}

// OutputHandler renders an analysis result and writes it to a file or the terminal
type OutputHandler struct {
	files    *FileProcessor
	registry *formatters.FormatterRegistry
	logger   *errors.Logger
	stdout   io.Writer
}

// NewOutputHandlerWithWriter creates an output handler printing to w when no file is given
func NewOutputHandlerWithWriter(logger *errors.Logger, w io.Writer) *OutputHandler {
	if logger == nil {
		logger = errors.Discard()
	}
	return &OutputHandler{
		files:    NewFileProcessor(logger, 0),
		registry: formatters.GlobalRegistry,
		logger:   logger,
		stdout:   w,
	}
}

// HandleOutput renders result in config.OutputFormat. A result without an ATS
// score is an internal error; the form never stores one.
func (oh *OutputHandler) HandleOutput(result *types.AnalysisResult, config CommandConfig) error {
	if result == nil || result.ATSScore == nil {
		return errors.NewInternalError("NO_RESULT", "No analysis result to output", nil)
	}

	output, err := oh.registry.Format(result, config.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to format output as %s", config.OutputFormat), err)
	}

	if config.OutputFile == "" {
		_, err = io.WriteString(oh.stdout, output)
		return err
	}

	if err := oh.files.WriteFile(config.OutputFile, output); err != nil {
		return err
	}
	oh.logger.Info("Analysis result written",
		"file", config.OutputFile,
		"format", config.OutputFormat,
		"ats_score", result.DisplayScore())
	return nil
}
