package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"skwatch/internal/config"
	"skwatch/internal/datastore"
	"skwatch/internal/differ"
	"skwatch/internal/models"
	"skwatch/internal/portal"
)

// scheduleMarker is the heading that proves the schedule table rendered.
// Waiting for it separates "page loaded" from "data loaded".
const scheduleMarker = "Pracoviská"

// AuthManager is the slice of the auth session manager the checker needs.
type AuthManager interface {
	EnsureAuth(ctx context.Context, force bool) models.AuthState
}

// CheckResult summarizes one category check for run accounting.
type CheckResult struct {
	CategoryKey string
	Findings    int
	Errors      int
}

// Checker scrapes one category page and fans the outcome out to watches,
// findings and diagnostics.
type Checker struct {
	cfg      config.SchedulerConfig
	store    *datastore.DB
	portal   models.PortalClient
	auth     AuthManager
	detector *differ.Detector
	logger   zerolog.Logger
}

// NewChecker creates a category checker.
func NewChecker(
	cfg config.SchedulerConfig,
	store *datastore.DB,
	portalClient models.PortalClient,
	auth AuthManager,
	detector *differ.Detector,
	logger zerolog.Logger,
) *Checker {
	return &Checker{
		cfg:      cfg,
		store:    store,
		portal:   portalClient,
		auth:     auth,
		detector: detector,
		logger:   logger.With().Str("component", "CategoryChecker").Logger(),
	}
}

// CheckCategory runs one full check of a category: ensure auth, scrape the
// schedule page, update every watch, record findings and diagnostics.
func (c *Checker) CheckCategory(ctx context.Context, category models.Category) CheckResult {
	now := time.Now().UTC()
	result := CheckResult{CategoryKey: category.Key}

	state := c.auth.EnsureAuth(ctx, false)
	if state != models.AuthOK {
		status := models.WatchStatusForAuthState(state)
		c.failCategory(category, status, string(state), now)
		result.Errors++
		return result
	}

	if category.URL == "" {
		c.failCategory(category, models.StatusError, "category URL not configured", now)
		result.Errors++
		return result
	}

	pageTimeout := time.Duration(c.cfg.CategoryTimeoutSecs) * time.Second
	page, err := c.portal.Open(ctx, category.URL, pageTimeout)
	if err != nil {
		result.Errors++
		if errors.Is(err, models.ErrNavigationTimeout) {
			c.failCategory(category, models.StatusError, "timeout", now)
		} else {
			c.logger.Error().Err(err).Str("category", category.Key).Msg("Category navigation failed")
			c.failCategory(category, models.StatusError, err.Error(), now)
		}
		return result
	}
	defer page.Close()

	markerCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.MarkerTimeoutSecs)*time.Second)
	err = page.WaitText(markerCtx, scheduleMarker)
	cancel()
	if err != nil {
		result.Errors++
		c.failCategory(category, models.StatusError, "timeout", now)
		return result
	}

	html, err := page.HTML()
	if err != nil {
		result.Errors++
		c.failCategory(category, models.StatusError, err.Error(), now)
		return result
	}
	rows, err := portal.ParseScheduleRows(html)
	if err != nil {
		result.Errors++
		c.failCategory(category, models.StatusError, err.Error(), now)
		return result
	}

	bySlug := make(map[string]models.PortalRow, len(rows))
	for _, row := range rows {
		bySlug[portal.Slugify(row.Label)] = row
	}

	watches, err := c.store.WatchesByCategory(category.Key)
	if err != nil {
		c.logger.Error().Err(err).Str("category", category.Key).Msg("Failed to load watches")
		result.Errors++
		return result
	}

	httpStatus := page.HTTPStatus()
	for _, watch := range watches {
		findings, errs := c.applyRow(watch, bySlug, category.URL, httpStatus, now)
		result.Findings += findings
		result.Errors += errs
	}

	if err := c.store.SetCategoryStatus(category.Key, models.StatusOK, nil, now); err != nil {
		c.logger.Error().Err(err).Str("category", category.Key).Msg("Failed to update category status")
	}

	c.logger.Info().
		Str("category", category.Key).
		Int("rows", len(rows)).
		Int("findings", result.Findings).
		Msg("Category check finished")
	return result
}

// applyRow applies one schedule row (or its absence) to a watch.
func (c *Checker) applyRow(
	watch models.Watch,
	bySlug map[string]models.PortalRow,
	url string,
	httpStatus *int,
	now time.Time,
) (findings, errs int) {
	row, present := bySlug[watch.CityKey]
	if !present {
		if err := c.store.UpdateWatchResult(watch.ID, models.StatusNoDate, datastore.WatchResultUpdate{}, now); err != nil {
			c.logger.Error().Err(err).Int64("watch", watch.ID).Msg("Failed to update watch")
			errs++
		}
		c.recordObservation(differ.Observation{
			CategoryKey: watch.CategoryKey,
			CityKey:     watch.CityKey,
			URL:         url,
			Status:      models.StatusNoDate,
			HTTPStatus:  httpStatus,
			Comment:     "row missing",
			RecordedAt:  now,
		})
		return findings, errs
	}

	status := models.StatusNoDate
	comment := "NO_DATE"
	upd := datastore.WatchResultUpdate{}
	if row.Date != nil {
		status = models.StatusOK
		comment = *row.Date
		upd.LastSeenValue = row.Date
		upd.LastSeenAt = &now

		_, created, err := c.store.RecordFinding(watch.ID, *row.Date, now)
		if err != nil {
			c.logger.Error().Err(err).Int64("watch", watch.ID).Msg("Failed to record finding")
			errs++
		} else if created {
			findings++
			c.logger.Info().
				Str("category", watch.CategoryKey).
				Str("city", watch.CityKey).
				Str("date", *row.Date).
				Msg("New appointment date found")
		}
	}

	if err := c.store.UpdateWatchResult(watch.ID, status, upd, now); err != nil {
		c.logger.Error().Err(err).Int64("watch", watch.ID).Msg("Failed to update watch")
		errs++
	}

	c.recordObservation(differ.Observation{
		CategoryKey: watch.CategoryKey,
		CityKey:     watch.CityKey,
		URL:         url,
		Status:      status,
		HTTPStatus:  httpStatus,
		AnchorText:  row.RawText,
		Comment:     comment,
		RecordedAt:  now,
	})
	return findings, errs
}

// failCategory stamps the category and all its watches with a failure and
// records a diagnostic per pair so the audit trail shows the outage.
func (c *Checker) failCategory(category models.Category, status models.WatchStatus, msg string, now time.Time) {
	if err := c.store.SetCategoryStatus(category.Key, status, &msg, now); err != nil {
		c.logger.Error().Err(err).Str("category", category.Key).Msg("Failed to update category status")
	}
	if err := c.store.ResetWatchesForCategory(category.Key, status, msg, now); err != nil {
		c.logger.Error().Err(err).Str("category", category.Key).Msg("Failed to reset watches")
	}

	watches, err := c.store.WatchesByCategory(category.Key)
	if err != nil {
		c.logger.Error().Err(err).Str("category", category.Key).Msg("Failed to load watches for diagnostics")
		return
	}
	for _, watch := range watches {
		c.recordObservation(differ.Observation{
			CategoryKey: watch.CategoryKey,
			CityKey:     watch.CityKey,
			URL:         category.URL,
			Status:      status,
			Comment:     msg,
			RecordedAt:  now,
		})
	}
	c.logger.Warn().Str("category", category.Key).Str("status", string(status)).Str("reason", msg).Msg("Category check failed")
}

func (c *Checker) recordObservation(obs differ.Observation) {
	if err := c.detector.Record(obs); err != nil {
		c.logger.Error().Err(err).
			Str("category", obs.CategoryKey).
			Str("city", obs.CityKey).
			Msg("Failed to record diagnostic")
	}
}
