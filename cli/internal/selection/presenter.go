package selection

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"aicommit/cli/internal/commitmsg"
)

// Presenter renders the selection dialogue. Styling degrades to plain text
// when w is not a terminal.
type Presenter struct {
	w       io.Writer
	heading lipgloss.Style
	index   lipgloss.Style
	subject lipgloss.Style
	warn    lipgloss.Style
	ok      lipgloss.Style
	prompt  lipgloss.Style
}

// NewPresenter returns a Presenter writing to w.
func NewPresenter(w io.Writer) *Presenter {
	r := lipgloss.NewRenderer(w)
	return &Presenter{
		w:       w,
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		index:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		subject: r.NewStyle().Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("9")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("10")),
		prompt:  r.NewStyle().Foreground(lipgloss.Color("14")),
	}
}

func (p *Presenter) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// StagedFiles lists the files that will be described.
func (p *Presenter) StagedFiles(files []string) {
	p.printf("\n%s\n\n", p.heading.Render("Staged Files:"))
	for _, f := range files {
		p.printf("  - %s\n", f)
	}
}

// NothingStaged explains why nothing happens.
func (p *Presenter) NothingStaged() {
	p.printf("%s\n", p.warn.Render("No staged changes found. Please stage changes using `git add`."))
}

// Generating announces the first batch.
func (p *Presenter) Generating() {
	p.printf("\n%s\n", p.heading.Render("Generating commit messages..."))
}

// Regenerating announces a replacement batch.
func (p *Presenter) Regenerating() {
	p.printf("\n%s\n", p.heading.Render("Regenerating commit messages..."))
}

// RegenerateFailed reports a failed regeneration; the previous batch stays on offer.
func (p *Presenter) RegenerateFailed(err error) {
	p.printf("%s\n", p.warn.Render("Could not regenerate: "+err.Error()+". Keeping the previous messages."))
}

// Batch shows every candidate, numbered, plus a note for failed slots.
func (p *Presenter) Batch(b commitmsg.Batch) {
	p.printf("\n%s\n", p.heading.Render("Generated Commit Messages:"))
	for _, c := range b.Candidates {
		subject, body, _ := strings.Cut(c.Text, "\n")
		p.printf("\n%s %s\n", p.index.Render(fmt.Sprintf("%d.", c.Index)), p.subject.Render(subject))
		if body != "" {
			p.printf("%s\n", body)
		}
	}
	if n := len(b.Failures); n > 0 {
		p.printf("\n%s\n", p.warn.Render(fmt.Sprintf("Note: %d of %d messages could not be generated.", n, b.Requested)))
	}
}

// ChoicePrompt asks for an index, regenerate or cancel.
func (p *Presenter) ChoicePrompt(n int) {
	p.printf("\n%s", p.prompt.Render(fmt.Sprintf("Choose a commit message (1-%d) [r] regenerate / [c] cancel:", n)))
	p.printf(" ")
}

// Invalid reports unusable input.
func (p *Presenter) Invalid(n int) {
	p.printf("%s\n", p.warn.Render(fmt.Sprintf("Invalid option. Please choose between 1-%d, r, or c.", n)))
}

// Selected echoes the chosen candidate.
func (p *Presenter) Selected(c commitmsg.Candidate) {
	p.printf("\n%s\n\n%q\n", p.ok.Render("Selected:"), c.Text)
}

// ConfirmPrompt asks for the final go-ahead.
func (p *Presenter) ConfirmPrompt() {
	p.printf("\n%s", p.prompt.Render("Proceed with this commit? (y/n):"))
	p.printf(" ")
}

// Declined reports a rejected confirmation.
func (p *Presenter) Declined() {
	p.printf("%s\n", p.warn.Render("Not committed. Pick another message, regenerate, or cancel."))
}

// Committed reports success.
func (p *Presenter) Committed() {
	p.printf("%s\n", p.ok.Render("Commit created!"))
}

// Cancelled reports a cancelled session.
func (p *Presenter) Cancelled() {
	p.printf("%s\n", p.warn.Render("Commit canceled."))
}
