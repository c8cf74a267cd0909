package differ

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"

	"skwatch/internal/common"
	"skwatch/internal/datastore"
	"skwatch/internal/models"
)

// Detector records content-drift diagnostics. It is independent of the
// finding pipeline: diagnostics track raw anchor text drift (useful when the
// portal silently changes its layout), findings track value changes.
type Detector struct {
	store  *datastore.DB
	logger zerolog.Logger
	dmp    *diffmatchpatch.DiffMatchPatch
}

// NewDetector creates a change detector backed by the datastore.
func NewDetector(store *datastore.DB, logger zerolog.Logger) *Detector {
	return &Detector{
		store:  store,
		logger: logger.With().Str("component", "ChangeDetector").Logger(),
		dmp:    diffmatchpatch.New(),
	}
}

// Observation is one scraped (category, city) outcome to be audited.
type Observation struct {
	CategoryKey string
	CityKey     string
	URL         string
	Status      models.WatchStatus
	HTTPStatus  *int
	AnchorText  string
	Comment     string
	RecordedAt  time.Time
}

const anchorTextPrefix = "anchor_raw:"

// Record classifies the observation against the previous diagnostic for the
// same pair (new / changed / same by anchor-text hash) and appends a
// diagnostic row. Store failures are returned; they abort the owning run.
func (d *Detector) Record(obs Observation) error {
	sum := sha1.Sum([]byte(obs.AnchorText))
	anchorHash := hex.EncodeToString(sum[:])

	prev, err := d.store.LastDiagnostic(obs.CategoryKey, obs.CityKey)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to load previous diagnostic: %w", err)
	}

	class := models.DiffNew
	diffLen := len(obs.AnchorText)
	if prev != nil {
		diffLen = len(obs.AnchorText) - prev.ContentLen
		if prev.AnchorHash == anchorHash {
			class = models.DiffSame
		} else {
			class = models.DiffChanged
		}
	}

	comment := obs.Comment
	if class == models.DiffChanged {
		if delta := d.deltaSummary(obs); delta != "" {
			comment = comment + " | " + delta
		}
	}

	diag := models.Diagnostic{
		RecordedAt:  obs.RecordedAt,
		CategoryKey: obs.CategoryKey,
		CityKey:     obs.CityKey,
		URL:         obs.URL,
		Status:      obs.Status,
		HTTPStatus:  obs.HTTPStatus,
		ContentLen:  len(obs.AnchorText),
		AnchorHash:  anchorHash,
		DiffLen:     diffLen,
		DiffAnchor:  class,
		Comment:     comment,
	}
	if err := d.store.RecordDiagnostic(diag); err != nil {
		return err
	}

	// Keep the raw anchor text around so the next change can be summarized.
	anchorKey := anchorTextPrefix + obs.CategoryKey + ":" + obs.CityKey
	if err := d.store.SettingsSet(anchorKey, obs.AnchorText); err != nil {
		d.logger.Warn().Err(err).Str("key", anchorKey).Msg("Failed to store raw anchor text")
	}

	d.logger.Debug().
		Str("category", obs.CategoryKey).
		Str("city", obs.CityKey).
		Str("diff", string(class)).
		Int("diff_len", diffLen).
		Msg("Recorded diagnostic")
	return nil
}

// deltaSummary produces a compact "+ins/-del" character summary between the
// previous and the current anchor text.
func (d *Detector) deltaSummary(obs Observation) string {
	anchorKey := anchorTextPrefix + obs.CategoryKey + ":" + obs.CityKey
	prevText, ok, err := d.store.SettingsGet(anchorKey)
	if err != nil || !ok {
		return ""
	}
	diffs := d.dmp.DiffMain(prevText, obs.AnchorText, false)
	inserted, deleted := 0, 0
	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(diff.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(diff.Text)
		}
	}
	if inserted == 0 && deleted == 0 {
		return ""
	}
	return fmt.Sprintf("+%d/-%d", inserted, deleted)
}
