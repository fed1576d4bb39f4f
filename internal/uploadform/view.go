package uploadform

import "resumeform/internal/types"

// Labels and hints rendered by every surface
const (
	SubmitLabel     = "Analyze Resume"
	BusyLabel       = "Uploading..."
	LoadingMessage  = "Please wait, analyzing your resume..."
	AcceptedFormats = ".pdf,.doc,.docx"
	FormatsHint     = "Supported formats: PDF"
)

// View is what a surface should display for a given State
type View struct {
	HasFile        bool
	FileName       string
	FileSummary    string
	JobDescription string

	CanSubmit   bool
	Busy        bool
	SubmitLabel string
	ShowLoader  bool

	Result *ResultView
}

// ResultView is the rendered analysis result
type ResultView struct {
	Score string
	Items []ResultItem
}

// ResultItem is one breakdown line, e.g. "keyword Match: 90"
type ResultItem struct {
	Label string
	Value string
}

// Render maps a State to its View. The submit control is enabled only with a
// file and while idle; job description blankness is checked at submit time.
func Render(s State) View {
	v := View{
		JobDescription: s.JobDescription,
		Busy:           s.Phase == PhaseSubmitting,
	}

	if s.File != nil {
		v.HasFile = true
		v.FileName = s.File.Name
		v.FileSummary = s.File.Summary()
	}

	v.CanSubmit = v.HasFile && !v.Busy
	v.ShowLoader = v.Busy
	if v.Busy {
		v.SubmitLabel = BusyLabel
	} else {
		v.SubmitLabel = SubmitLabel
	}

	if s.Result != nil && s.Result.ATSScore != nil {
		v.Result = renderResult(s.Result)
	}

	return v
}

func renderResult(r *types.AnalysisResult) *ResultView {
	entries := r.Entries()
	rv := &ResultView{
		Score: r.DisplayScore(),
		Items: make([]ResultItem, 0, len(entries)),
	}
	for _, entry := range entries {
		rv.Items = append(rv.Items, ResultItem{
			Label: entry.Label(),
			Value: entry.Value.String(),
		})
	}
	return rv
}
