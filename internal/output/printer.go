package output

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/tdh8316/rbxsniper/internal/sniper"
)

// Printer renders flushed run snapshots as a live console feed.
type Printer struct {
	noColor bool
	verbose bool

	mu      sync.Mutex
	logger  *log.Logger
	seen    uint64
	lastPct int
}

func NewPrinter(stdout io.Writer, noColor, verbose bool) *Printer {
	return &Printer{
		noColor: noColor,
		verbose: verbose,
		logger:  log.New(stdout, "", 0),
		lastPct: -1,
	}
}

// Observe is a sniper.Observer. It prints only lines it has not printed yet.
func (p *Printer) Observe(snap sniper.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.LogSeq < p.seen {
		// A new run started.
		p.seen = 0
		p.lastPct = -1
	}
	for _, line := range snap.NewLogs(p.seen) {
		if !p.verbose && isTakenLine(line) {
			continue
		}
		p.logger.Print(p.colorize(line))
	}
	p.seen = snap.LogSeq

	if pct := int(snap.Progress); snap.IsRunning && pct != p.lastPct {
		p.lastPct = pct
		p.printProgress(snap, pct)
	}
}

func (p *Printer) printProgress(snap sniper.Snapshot, pct int) {
	msg := fmt.Sprintf("Progress %d%% (%d/%d found, %d attempts)", pct, snap.Found, snap.Target, snap.Attempts)
	if p.noColor {
		p.logger.Printf("[%s] %s", "i", msg)
		return
	}
	p.logger.Printf("[%s] %s", color.HiBlueString("i"), msg)
}

// Summary prints the frozen end state.
func (p *Printer) Summary(snap sniper.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	valid := ValidUsernames(snap.Results)
	header := fmt.Sprintf("\n%d valid username(s) in %d attempts (%s)", len(valid), snap.Attempts, snap.Phase)
	if p.noColor {
		p.logger.Print(header)
	} else {
		p.logger.Print(color.HiWhiteString(header))
	}
	for _, name := range valid {
		if p.noColor {
			p.logger.Printf("[%s] %s", "+", name)
		} else {
			p.logger.Printf("[%s] %s", color.HiGreenString("+"), name)
		}
	}
}

// Notice prints a one-off informational line outside of a run.
func (p *Printer) Notice(ok bool, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	switch {
	case p.noColor && ok:
		p.logger.Printf("[%s] %s", "!", msg)
	case p.noColor:
		p.logger.Printf("[%s] %s", "-", msg)
	case ok:
		p.logger.Printf("[%s] %s", color.HiBlueString("!"), msg)
	default:
		p.logger.Printf("[%s] %s", color.HiRedString("-"), color.HiYellowString(msg))
	}
}

func (p *Printer) colorize(line string) string {
	if p.noColor {
		return line
	}
	switch {
	case strings.Contains(line, "] ✓ "):
		return color.HiGreenString(line)
	case strings.Contains(line, "] ✗ "):
		return color.HiRedString(line)
	default:
		return line
	}
}

func isTakenLine(line string) bool {
	return strings.Contains(line, " : Taken (Code ")
}

// Raw prints text unmodified.
func (p *Printer) Raw(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Print(text)
}
