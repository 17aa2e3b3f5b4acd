package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/codescout-dev/codescout/internal/index"
)

const timeRound = 10 * time.Millisecond

// phaseLabels maps pipeline phases to user-facing labels. Phases with
// no label are not rendered.
var phaseLabels = map[index.Phase]string{
	index.PhaseScanning:  "Scanning files",
	index.PhaseHashing:   "Hashing files",
	index.PhaseParsing:   "Parsing files",
	index.PhaseEmbedding: "Generating embeddings",
	index.PhaseStoring:   "Storing chunks",
	index.PhaseCleaning:  "Cleaning removed files",
}

// progressPrinter renders pipeline progress as plain text, one line
// per phase, rewriting the line in place as counters advance.
type progressPrinter struct {
	out      io.Writer
	phase    index.Phase
	lineOpen bool
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

func (p *progressPrinter) Update(prog index.Progress) {
	label, ok := phaseLabels[prog.Phase]
	if !ok {
		return
	}
	if prog.Phase != p.phase {
		p.endLine()
		p.phase = prog.Phase
	}
	if prog.Total > 0 {
		_, _ = fmt.Fprintf(p.out, "\r%s... %d/%d", label, prog.Current, prog.Total)
	} else {
		_, _ = fmt.Fprintf(p.out, "\r%s...", label)
	}
	p.lineOpen = true
}

// Finish terminates any in-progress line.
func (p *progressPrinter) Finish() {
	p.endLine()
}

func (p *progressPrinter) endLine() {
	if p.lineOpen {
		_, _ = fmt.Fprintln(p.out)
		p.lineOpen = false
	}
}
