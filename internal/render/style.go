package render

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"plugup/internal/domain"
	"plugup/internal/selector"
)

const noteWidth = 80

var (
	successColor = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#50FA7B"}
	warningColor = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#F1FA8C"}
)

// Styles renders status words for one output stream.
type Styles struct {
	done    lipgloss.Style
	ready   lipgloss.Style
	skipped lipgloss.Style
	ok      lipgloss.Style
}

// NewStyles builds styles for w. Colour is dropped when color is false or
// NO_COLOR is set.
func NewStyles(w io.Writer, color bool) Styles {
	r := lipgloss.NewRenderer(w)
	if !color || os.Getenv("NO_COLOR") != "" {
		r.SetColorProfile(termenv.Ascii)
	}
	return newStyles(r)
}

func newStyles(r *lipgloss.Renderer) Styles {
	success := r.NewStyle().Bold(true).Foreground(successColor)
	return Styles{
		done:    success,
		ready:   success,
		skipped: r.NewStyle().Foreground(warningColor),
		ok:      success,
	}
}

func (s Styles) Done() string    { return s.done.Render("DONE") }
func (s Styles) Ready() string   { return s.ready.Render("READY") }
func (s Styles) Skipped() string { return s.skipped.Render("SKIPPED") }
func (s Styles) OK() string      { return s.ok.Render("OK") }

// Progress prints one line per candidate while a batch is prepared.
type Progress struct {
	w      io.Writer
	styles Styles
}

var _ selector.Progress = (*Progress)(nil)

// NewProgress creates a Progress writing to w.
func NewProgress(w io.Writer, styles Styles) *Progress {
	return &Progress{w: w, styles: styles}
}

func (p *Progress) Preparing(c domain.UpdateCandidate) {
	_, _ = fmt.Fprintf(p.w, "Preparing %s (%s)...", c.Component, c.Version)
}

func (p *Progress) Ready(domain.UpdateCandidate, domain.RemoteInstallable) {
	_, _ = fmt.Fprintln(p.w, p.styles.Ready())
}

func (p *Progress) Skipped(domain.UpdateCandidate) {
	_, _ = fmt.Fprintf(p.w, "%s (cannot update remotely)\n", p.styles.Skipped())
}

// WriteNote writes a closing message word-wrapped to noteWidth columns.
func WriteNote(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, wordwrap.String(msg, noteWidth))
}
