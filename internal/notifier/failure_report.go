package notifier

import (
	"fmt"
	"os"
	"strings"

	"skwatch/internal/datastore"
)

const (
	reportDiagnosticLimit = 10
	reportRunLimit        = 5
	reportLogTailBytes    = 2000
)

func openScreenshot(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open screenshot: %w", err)
	}
	return file, nil
}

// BuildFailureReport assembles the "report" command output: auth session
// state, last run summary, recent failing pairs and the log tail.
func BuildFailureReport(store *datastore.DB, logFile string) (string, error) {
	var b strings.Builder
	b.WriteString("🩺 **Failure report**\n")

	authState := "unknown"
	if state, ok, err := store.SettingsGet("auth_state"); err == nil && ok {
		authState = state
	}
	authExp := "not set"
	if exp, ok, err := store.SettingsGet("auth_exp"); err == nil && ok {
		authExp = exp
	}
	fmt.Fprintf(&b, "Auth: %s (valid until %s)\n", authState, authExp)

	if runs, err := store.RecentRuns(reportRunLimit); err == nil && len(runs) > 0 {
		b.WriteString("\nRecent runs:\n```\n")
		for _, run := range runs {
			finished := "running"
			if run.FinishedAt != nil {
				finished = run.FinishedAt.UTC().Format("02.01 15:04")
			}
			fmt.Fprintf(&b, "%s %s ok=%d errors=%d findings=%d\n",
				finished, run.Scope, run.OK, run.Errors, run.Findings)
		}
		b.WriteString("```\n")
	}

	diags, err := store.RecentErrorDiagnostics(reportDiagnosticLimit)
	if err != nil {
		return "", fmt.Errorf("failed to load error diagnostics: %w", err)
	}
	if len(diags) > 0 {
		b.WriteString("\nRecent failures:\n```\n")
		for _, diag := range diags {
			fmt.Fprintf(&b, "%s %s/%s %s %s\n",
				diag.RecordedAt.UTC().Format("02.01 15:04"),
				diag.CategoryKey, diag.CityKey, diag.Status, diag.Comment)
		}
		b.WriteString("```\n")
	} else {
		b.WriteString("\nNo recent failures recorded.\n")
	}

	if tail := logTail(logFile, reportLogTailBytes); tail != "" {
		b.WriteString("\nLog tail:\n```\n")
		b.WriteString(tail)
		b.WriteString("\n```")
	}
	return b.String(), nil
}

// logTail returns up to maxBytes of the end of the log file, trimmed to whole
// lines. Missing or unreadable files yield an empty tail.
func logTail(path string, maxBytes int64) string {
	if path == "" {
		return ""
	}
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return ""
	}
	offset := info.Size() - maxBytes
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := file.ReadAt(buf, offset); err != nil {
		return ""
	}
	tail := string(buf)
	if offset > 0 {
		if idx := strings.IndexByte(tail, '\n'); idx >= 0 {
			tail = tail[idx+1:]
		}
	}
	return strings.TrimSpace(tail)
}
