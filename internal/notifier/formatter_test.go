package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"skwatch/internal/datastore"
	"skwatch/internal/models"
)

func TestFormatFinding_RendersPortalDateFormat(t *testing.T) {
	finding := models.Finding{
		FoundValue:    "2025-03-14",
		FoundAt:       time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC),
		CategoryTitle: "Permanent residence 5 years",
		CityTitle:     "Košice",
	}

	text := FormatFinding(finding)
	assert.Contains(t, text, "Permanent residence 5 years")
	assert.Contains(t, text, "Košice")
	assert.Contains(t, text, "14.03.2025")
	assert.Contains(t, text, "10.03.2025 08:30")
}

func TestDisplayDate_PassesThroughNonISO(t *testing.T) {
	assert.Equal(t, "14.03.2025", displayDate("2025-03-14"))
	assert.Equal(t, "not-a-date", displayDate("not-a-date"))
}

func TestFormatStatus(t *testing.T) {
	finished := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	run := &models.Run{Scope: "full", OK: 4, Errors: 1, Findings: 2, FinishedAt: &finished}
	counts := datastore.WatchCounts{Total: 65, Enabled: 60, Errors: 3}

	text := FormatStatus(counts, run, "OK", "10m")
	assert.Contains(t, text, "OK")
	assert.Contains(t, text, "60 enabled / 65 total")
	assert.Contains(t, text, "ok=4 errors=1 findings=2")

	text = FormatStatus(counts, nil, "NEED_AUTH", "default")
	assert.Contains(t, text, "none yet")
}

func TestFormatCategoryResult(t *testing.T) {
	assert.Contains(t, FormatCategoryResult("TRVALY_5Y", 0, 2), "2 error(s)")
	assert.Contains(t, FormatCategoryResult("TRVALY_5Y", 3, 0), "3 new finding(s)")
	assert.Contains(t, FormatCategoryResult("TRVALY_5Y", 0, 0), "nothing new")
}
