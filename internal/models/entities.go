package models

import "time"

// Category is one monitored appointment type. Categories are seeded at first
// boot and never deleted; operator toggles and check runs mutate them.
type Category struct {
	ID          int64
	Key         string
	Title       string
	URL         string
	Enabled     bool
	Status      WatchStatus
	LastCheckAt *time.Time
	LastError   *string
}

// City is one monitored location. Seeded once, immutable afterwards.
type City struct {
	ID    int64
	Key   string
	Title string
	Ord   int
}

// Watch is the unit of monitoring: one (Category, City) pair. Exactly one
// watch exists per pair at all times.
type Watch struct {
	ID            int64
	CategoryID    int64
	CityID        int64
	Enabled       bool
	Status        WatchStatus
	LastSeenValue *string
	LastSeenAt    *time.Time
	LastCheckAt   *time.Time
	ErrorMsg      *string

	// Joined columns, populated by the datastore list queries.
	CategoryKey     string
	CategoryTitle   string
	CategoryEnabled bool
	CategoryURL     string
	CityKey         string
	CityTitle       string
	CityOrd         int
}

// Finding is an observed value change for a watch. A finding with a nil
// NotifiedAt is pending delivery.
type Finding struct {
	ID         int64
	WatchID    int64
	FoundValue string
	FoundAt    time.Time
	NotifiedAt *time.Time

	CategoryKey   string
	CategoryTitle string
	CityKey       string
	CityTitle     string
}

// Diagnostic is an append-only audit record of one scrape attempt for one
// (category, city) pair, independent of whether the observed value changed.
type Diagnostic struct {
	ID          int64
	RecordedAt  time.Time
	CategoryKey string
	CityKey     string
	URL         string
	Status      WatchStatus
	HTTPStatus  *int
	ContentLen  int
	AnchorHash  string
	DiffLen     int
	DiffAnchor  DiffClass
	Comment     string
}

// Run is one scheduler execution, full sweep or single category.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	OK         int
	Errors     int
	Findings   int
	Scope      string
}

// Screenshot records a captured portal screenshot on disk.
type Screenshot struct {
	ID          int64
	Name        string
	Path        string
	Description string
	CreatedAt   time.Time
}
