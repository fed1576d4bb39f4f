package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"resumeform/internal/common"
	"resumeform/internal/observability"
	"resumeform/internal/uploadform"
	"resumeform/internal/utils"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

// Menu entries of the interactive form
const (
	menuSelectFile = "Select resume file"
	menuEditJob    = "Edit job description"
	menuQuit       = "Quit"
)

var errQuit = stderrors.New("quit")

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Fill in and submit the resume form from the terminal",
	Long: `Open a menu-driven version of the upload form: pick a resume file, edit
the job description and submit. The current form is printed after every step,
and alerts wait for Enter before the menu comes back.

At the job description prompt, "@path" loads the text from a file.`,
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

func runInteractive(cmd *cobra.Command, args []string) error {
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

	session := newInteractiveSession(stack.analyzer, terminalPrompter{}, cmd.OutOrStdout(),
		common.NewFileProcessor(logger, cfg.App.MaxFileSize), stack.om.GetMetrics(),
		uploadform.WithLogger(logger))
	return session.Run(cmd.Context())
}

// prompter is the terminal interaction used by the interactive form
type prompter interface {
	Choose(label string, items []string) (int, error)
	Ask(label, initial string, validate func(string) error) (string, error)
	Acknowledge(message string) error
}

type interactiveSession struct {
	form    *uploadform.Form
	files   *common.FileProcessor
	prompt  prompter
	out     io.Writer
	metrics *observability.Metrics
}

func newInteractiveSession(client uploadform.AnalysisClient, p prompter, out io.Writer,
	files *common.FileProcessor, metrics *observability.Metrics, opts ...uploadform.Option) *interactiveSession {
	s := &interactiveSession{files: files, prompt: p, out: out, metrics: metrics}

	opts = append(opts,
		uploadform.WithNotifier(&blockingNotifier{
			inner:  common.NewTerminalNotifier(out),
			prompt: p,
		}),
		uploadform.WithStateListener(s.onStateChange),
	)
	s.form = uploadform.New(client, opts...)
	return s
}

// Run shows the menu until the user quits or interrupts
func (s *interactiveSession) Run(ctx context.Context) error {
	for {
		view := s.form.View()
		renderView(s.out, view)

		submitItem := view.SubmitLabel
		if !view.CanSubmit {
			submitItem += " (select a resume first)"
		}

		choice, err := s.prompt.Choose("What would you like to do?",
			[]string{menuSelectFile, menuEditJob, submitItem, menuQuit})
		if err != nil {
			return quitOrError(err)
		}

		switch choice {
		case 0:
			err = s.selectFile()
		case 1:
			err = s.editJobDescription(view.JobDescription)
		case 2:
			if !view.CanSubmit {
				fmt.Fprintln(s.out, color.YellowString("Select a resume before analyzing."))
				continue
			}
			submitErr := s.form.Submit(ctx)
			s.metrics.RecordSubmission(ctx, submitErr, "interactive")
		default:
			return nil
		}

		if err != nil {
			return quitOrError(err)
		}
	}
}

func (s *interactiveSession) selectFile() error {
	path, err := s.prompt.Ask("Resume file path", "", func(in string) error {
		return utils.ValidateInputFile(utils.ExpandPath(in))
	})
	if err != nil {
		return err
	}

	file, err := s.files.ReadResume(utils.ExpandPath(path))
	if err != nil {
		fmt.Fprintln(s.out, color.RedString("Cannot use %s: %v", path, err))
		return nil
	}
	if !utils.IsAcceptedResume(file.Name) {
		fmt.Fprintln(s.out, color.YellowString("%s is not a PDF or Word document; it will be sent as is.", file.Name))
	}

	s.form.SelectFile(file)
	return nil
}

func (s *interactiveSession) editJobDescription(current string) error {
	text, err := s.prompt.Ask("Job description (@file to load)", current, nil)
	if err != nil {
		return err
	}

	if path, ok := strings.CutPrefix(strings.TrimSpace(text), "@"); ok {
		path = utils.ExpandPath(path)
		loaded, err := s.files.ReadText(path)
		if err != nil {
			fmt.Fprintln(s.out, color.RedString("Cannot read %s: %v", path, err))
			return nil
		}
		text = loaded
	}

	s.form.EditJobDescription(text)
	return nil
}

func (s *interactiveSession) onStateChange(state uploadform.State) {
	if state.Phase != uploadform.PhaseSubmitting {
		return
	}
	view := uploadform.Render(state)
	fmt.Fprintf(s.out, "%s\n%s\n", color.CyanString("[%s]", view.SubmitLabel), uploadform.LoadingMessage)
}

// renderView prints the form the way the browser shows it
func renderView(w io.Writer, v uploadform.View) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("Upload Your Resume"))

	if v.HasFile {
		fmt.Fprintf(w, "  Resume: %s (%s)\n", v.FileName, v.FileSummary)
	} else {
		fmt.Fprintf(w, "  Resume: none selected (%s)\n", uploadform.FormatsHint)
	}

	if strings.TrimSpace(v.JobDescription) == "" {
		fmt.Fprintln(w, "  Job description: (empty)")
	} else {
		fmt.Fprintf(w, "  Job description: %d characters\n", len([]rune(v.JobDescription)))
	}

	if v.Result == nil {
		return
	}

	scoreColor := color.New(color.Bold)
	if score, err := strconv.ParseFloat(v.Result.Score, 64); err == nil {
		scoreColor = common.ScoreColor(score)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", scoreColor.Sprintf("ATS Score: %s", v.Result.Score))
	for _, item := range v.Result.Items {
		fmt.Fprintf(w, "    - %s: %s\n", item.Label, item.Value)
	}
}

// blockingNotifier prints an alert and waits for the user to dismiss it
type blockingNotifier struct {
	inner  uploadform.Notifier
	prompt prompter
}

func (n *blockingNotifier) Notify(notice uploadform.Notice) {
	n.inner.Notify(notice)
	_ = n.prompt.Acknowledge("Press Enter to continue")
}

func quitOrError(err error) error {
	if stderrors.Is(err, errQuit) {
		return nil
	}
	return err
}

// terminalPrompter implements prompter with promptui
type terminalPrompter struct{}

func (terminalPrompter) Choose(label string, items []string) (int, error) {
	sel := promptui.Select{
		Label: label,
		Items: items,
		Size:  len(items),
	}
	idx, _, err := sel.Run()
	return idx, mapPromptErr(err)
}

func (terminalPrompter) Ask(label, initial string, validate func(string) error) (string, error) {
	p := promptui.Prompt{
		Label:     label,
		Default:   initial,
		AllowEdit: true,
	}
	if validate != nil {
		p.Validate = validate
	}
	value, err := p.Run()
	return value, mapPromptErr(err)
}

func (terminalPrompter) Acknowledge(message string) error {
	p := promptui.Prompt{Label: message}
	_, err := p.Run()
	return mapPromptErr(err)
}

func mapPromptErr(err error) error {
	if stderrors.Is(err, promptui.ErrInterrupt) || stderrors.Is(err, promptui.ErrEOF) || stderrors.Is(err, promptui.ErrAbort) {
		return errQuit
	}
	return err
}
