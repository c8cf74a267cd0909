package notifier

import (
	"fmt"
	"strings"
	"time"

	"skwatch/internal/datastore"
	"skwatch/internal/models"
)

// displayDate renders an ISO date the way the portal shows it (dd.mm.yyyy).
// Values that are not ISO dates pass through unchanged.
func displayDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02.01.2006")
}

// FormatFinding renders one appointment-slot finding for the operator channel.
func FormatFinding(f models.Finding) string {
	var b strings.Builder
	b.WriteString("🎯 **Appointment slot found**\n")
	fmt.Fprintf(&b, "Category: %s\n", f.CategoryTitle)
	fmt.Fprintf(&b, "City: %s\n", f.CityTitle)
	fmt.Fprintf(&b, "Date: %s\n", displayDate(f.FoundValue))
	fmt.Fprintf(&b, "Seen at: %s UTC", f.FoundAt.UTC().Format("02.01.2006 15:04"))
	return b.String()
}

// FormatStatus renders the overview shown for the "status" command.
func FormatStatus(counts datastore.WatchCounts, lastRun *models.Run, authState, nextInterval string) string {
	var b strings.Builder
	b.WriteString("📊 **Watcher status**\n```\n")
	fmt.Fprintf(&b, "Auth state:  %s\n", authState)
	fmt.Fprintf(&b, "Interval:    %s\n", nextInterval)
	fmt.Fprintf(&b, "Watches:     %d enabled / %d total, %d in error\n",
		counts.Enabled, counts.Total, counts.Errors)
	if lastRun != nil {
		finished := "running"
		if lastRun.FinishedAt != nil {
			finished = lastRun.FinishedAt.UTC().Format("02.01.2006 15:04 UTC")
		}
		fmt.Fprintf(&b, "Last run:    %s (%s)\n", finished, lastRun.Scope)
		fmt.Fprintf(&b, "             ok=%d errors=%d findings=%d\n",
			lastRun.OK, lastRun.Errors, lastRun.Findings)
	} else {
		b.WriteString("Last run:    none yet\n")
	}
	b.WriteString("```")
	return b.String()
}

// FormatCategoryResult renders the completion notice of a single-category check.
func FormatCategoryResult(categoryKey string, findings, errors int) string {
	switch {
	case errors > 0:
		return fmt.Sprintf("⚠️ Check of `%s` finished with %d error(s).", categoryKey, errors)
	case findings > 0:
		return fmt.Sprintf("✅ Check of `%s` finished, %d new finding(s).", categoryKey, findings)
	default:
		return fmt.Sprintf("✅ Check of `%s` finished, nothing new.", categoryKey)
	}
}
