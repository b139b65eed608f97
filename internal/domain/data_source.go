package domain

import (
	"strings"
	"time"
)

// ProviderNasdaq identifies data sources served by Nasdaq Data Link.
const ProviderNasdaq = "nasdaq"

// DataSource is one version row of a market-data provider registration
// (data_source table, PRIMARY KEY (id, valid_from), clustered valid_from DESC).
type DataSource struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Provider    string            `json:"provider"`
	Attributes  map[string]string `json:"attributes"`
	SystemDate  time.Time         `json:"system_date"`
	Deleted     bool              `json:"is_deleted"`
	Validity    Span              `json:"validity"`
}

// Valid returns the version's validity interval.
func (d DataSource) Valid() Span { return d.Validity }

// IsDeleted reports whether this version is a tombstone.
func (d DataSource) IsDeleted() bool { return d.Deleted }

// IsProvider reports whether the source belongs to the given provider
// class, matched case-insensitively on a substring ("Nasdaq Data Link"
// counts as "nasdaq").
func (d DataSource) IsProvider(provider string) bool {
	return strings.Contains(strings.ToLower(d.Provider), strings.ToLower(provider))
}
