package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	statusLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	statusValue = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
)

// StatusLineSink writes the status text to w whenever it changes.
type StatusLineSink struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

// NewStatusLineSink returns a sink writing to w.
func NewStatusLineSink(w io.Writer) *StatusLineSink {
	return &StatusLineSink{w: w}
}

func (s *StatusLineSink) Submit(_ context.Context, f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Status == s.last {
		return nil
	}
	s.last = f.Status
	_, err := fmt.Fprintf(s.w, "%s %s\n", statusLabel.Render("speed"), statusValue.Render(f.Status))
	return err
}
