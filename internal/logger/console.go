// Package logger provides the leveled console logger used by every threadscan
// command. Lines are prefixed with [HH:MM:SS] timestamps and a level tag;
// level tags are colorized when writing to a terminal.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/corey/threadscan/internal/ports"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Levels lists the accepted level names, most verbose first.
var Levels = []string{"trace", "debug", "info", "warn", "error"}

// ConsoleLogger writes timestamped, leveled lines to a writer. It is safe for
// concurrent use. A nil writer discards everything.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger writing to writer at logLevel.
// Empty or unknown levels mean "info". Color is enabled when writer is a
// terminal os.Stdout or os.Stderr and NO_COLOR is unset.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    NormalizeLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// Discard returns a logger that writes nothing.
func Discard() *ConsoleLogger {
	return NewConsoleLogger(nil, "error")
}

// isTerminal reports whether w is a standard stream attached to a TTY.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || (f != os.Stdout && f != os.Stderr) {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	normalized := strings.ToLower(strings.TrimSpace(level))
	for _, l := range Levels {
		if l == normalized {
			return true
		}
	}
	return false
}

// NormalizeLevel lowercases level and falls back to "info".
func NormalizeLevel(level string) string {
	if !ValidLevel(level) {
		return "info"
	}
	return strings.ToLower(strings.TrimSpace(level))
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// Tracef logs at TRACE.
func (cl *ConsoleLogger) Tracef(format string, args ...any) {
	cl.logWithLevel("TRACE", fmt.Sprintf(format, args...))
}

// Debugf logs at DEBUG.
func (cl *ConsoleLogger) Debugf(format string, args ...any) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs at INFO.
func (cl *ConsoleLogger) Infof(format string, args ...any) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs at WARN.
func (cl *ConsoleLogger) Warnf(format string, args ...any) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// Errorf logs at ERROR.
func (cl *ConsoleLogger) Errorf(format string, args ...any) {
	cl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	tag := level
	if cl.colorOutput {
		tag = levelColor(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), tag, message)
}

func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

// LogScanComplete logs the end-of-run summary at INFO.
// Format: "[HH:MM:SS] Search completed! <n> of <m> files matched (<dur>). Results saved in <path>"
func (cl *ConsoleLogger) LogScanComplete(run *ports.RunSummary) {
	if cl.writer == nil || run == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	matched := fmt.Sprintf("%d of %d files matched", run.FilesMatched, run.FilesScanned)
	if cl.colorOutput {
		matched = color.New(color.FgGreen, color.Bold).Sprint(matched)
	}
	msg := fmt.Sprintf("Search completed! %s (%s).", matched, formatDuration(run.Duration()))
	if run.FilesFailed > 0 {
		failed := fmt.Sprintf("%d unreadable", run.FilesFailed)
		if cl.colorOutput {
			failed = color.New(color.FgYellow).Sprint(failed)
		}
		msg += " " + failed + "."
	}
	if run.ReportPath != "" {
		msg += " Results saved in " + run.ReportPath
	}
	tag := "INFO"
	if cl.colorOutput {
		tag = levelColor(tag).Sprint(tag)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), tag, msg)
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration renders d as "850ms", "3.2s" or "2m5s".
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
