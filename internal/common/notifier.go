package common

import (
	"fmt"
	"io"

	"resumeform/internal/uploadform"

	"github.com/fatih/color"
)

// TerminalNotifier prints form alerts as colored lines
type TerminalNotifier struct {
	w io.Writer
}

// NewTerminalNotifier creates a notifier writing to w
func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{w: w}
}

func (n *TerminalNotifier) Notify(notice uploadform.Notice) {
	switch notice.Level {
	case uploadform.NoticeSuccess:
		fmt.Fprintln(n.w, color.GreenString("✔ %s", notice.Message))
	default:
		fmt.Fprintln(n.w, color.RedString("✖ %s", notice.Message))
	}
}

// ScoreColor picks a color for an ATS score: green from 75, yellow from 50, red below
func ScoreColor(score float64) *color.Color {
	switch {
	case score >= 75:
		return color.New(color.FgGreen, color.Bold)
	case score >= 50:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
