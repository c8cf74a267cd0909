package portal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"skwatch/internal/models"
)

// Schedule rows render as labels shaped "OCP <city>" or
// "OCP <city> – <dd.mm.yyyy>" when a slot is offered.
var rowPattern = regexp.MustCompile(`^OCP\s+(.+?)(?:\s*[–—-]\s*(\d{1,2}\.\d{1,2}\.\d{4}))?$`)

// ParseScheduleRows extracts city rows from the schedule page HTML. Rows that
// do not match the expected label shape are skipped; a missing date is a
// valid row (the city currently offers no slot).
func ParseScheduleRows(html string) ([]models.PortalRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule page: %w", err)
	}

	var rows []models.PortalRow
	doc.Find("label").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		match := rowPattern.FindStringSubmatch(text)
		if match == nil {
			return
		}
		row := models.PortalRow{
			Label:   strings.TrimSpace(match[1]),
			RawText: text,
		}
		if match[2] != "" {
			if iso, err := toISODate(match[2]); err == nil {
				row.Date = &iso
			}
		}
		rows = append(rows, row)
	})
	return rows, nil
}

// toISODate converts a portal date "d.m.yyyy" to "yyyy-mm-dd".
func toISODate(raw string) (string, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("unexpected date format: %s", raw)
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", err
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", err
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

var diacriticsRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify normalizes a city label to its stable key form: diacritics
// stripped, lowercased, word separators collapsed to underscores. "Banská
// Bystrica" becomes "banska_bystrica".
func Slugify(label string) string {
	stripped, _, err := transform.String(diacriticsRemover, label)
	if err != nil {
		stripped = label
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
