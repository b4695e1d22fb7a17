package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"riskScope/internal/model"
)

// ConsoleSink prints alerts to a terminal with severity coloring. Stats
// snapshots are skipped; the console is for a human watching alerts scroll by.
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink builds a console sink writing to stdout.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{w: os.Stdout}
}

func severityColor(s model.Severity) *color.Color {
	switch s {
	case model.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case model.SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func (s *ConsoleSink) PublishAlert(_ context.Context, alert model.Alert) error {
	ts := time.Now().Format("15:04:05")
	label := severityColor(alert.Severity).Sprintf("[%s]", alert.Severity)
	if alert.Source != nil {
		_, err := fmt.Fprintf(s.w, "%s %s %s %s (tx %s)\n",
			ts, label, alert.Type, alert.Message, alert.Source.TxHash.Hex())
		return err
	}
	_, err := fmt.Fprintf(s.w, "%s %s %s %s\n", ts, label, alert.Type, alert.Message)
	return err
}

func (s *ConsoleSink) PublishStats(_ context.Context, _ string, _ interface{}) error {
	return nil
}

func (s *ConsoleSink) Close() error { return nil }
