package cli

import (
	"resumeform/internal/common"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <resume-file>",
	Short: "Submit a resume and job description for ATS analysis",
	Long: `Upload a resume (PDF, DOC or DOCX) together with a job description to the
analysis service and print the ATS score breakdown.

The job description is given inline with --job-description or read from a
file with --job-file. Both the resume and a non-blank job description are
required; the request is not sent otherwise.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		// Apply default format if not specified
		if analyzeConfig.OutputFormat == "" {
			analyzeConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return nil
	},
	RunE: runAnalyze,
}

var analyzeConfig common.SubmitConfig

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeConfig.JobDescription, "job-description", "j", "", "Job description text")
	analyzeCmd.Flags().StringVar(&analyzeConfig.JobFile, "job-file", "", "Read the job description from a file")
	analyzeCmd.Flags().StringVarP(&analyzeConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	analyzeCmd.MarkFlagsMutuallyExclusive("job-description", "job-file")

	// Add completion for format flag
	_ = analyzeCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	stack, err := newAnalysisStack(cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	runner := common.NewRunner(stack.analyzer, stack.om.GetMetrics(), logger,
		cfg.App.MaxFileSize, cfg.App.SupportedFormats, cmd.OutOrStdout(), cmd.ErrOrStderr())

	submit := analyzeConfig
	submit.ResumeFile = args[0]

	logger.Info("Starting resume analysis",
		"resume", submit.ResumeFile,
		"job_file", submit.JobFile,
		"output_format", submit.OutputFormat)

	if err := runner.Run(cmd.Context(), submit); err != nil {
		return err
	}

	logger.Info("Resume analysis completed successfully")
	return nil
}
