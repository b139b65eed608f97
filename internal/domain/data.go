package domain

import "time"

// SeriesScope addresses one time series: all observations an asset has
// from one data source. It is the partition key of the data table.
type SeriesScope struct {
	AssetID      int `json:"asset_id"`
	DataSourceID int `json:"data_source_id"`
}

// SeriesKey is the logical key of one observation: a scope plus the
// business date the observation is about.
type SeriesKey struct {
	SeriesScope
	BusinessDate time.Time `json:"business_date"`
}

// Data is one version row of a daily observation (data table,
// PRIMARY KEY ((asset_id, data_source_id), business_date, system_date),
// clustered business_date DESC, system_date DESC).
type Data struct {
	AssetID      int                `json:"asset_id"`
	DataSourceID int                `json:"data_source_id"`
	BusinessDate time.Time          `json:"business_date"`
	SystemDate   time.Time          `json:"system_date"`
	ValuesDouble map[string]float64 `json:"values_double"`
	ValuesInt    map[string]int64   `json:"values_int"`
	ValuesText   map[string]string  `json:"values_text"`
	Deleted      bool               `json:"is_deleted"`
	Validity     Span               `json:"validity"`
}

// Scope returns the series the row belongs to.
func (d Data) Scope() SeriesScope {
	return SeriesScope{AssetID: d.AssetID, DataSourceID: d.DataSourceID}
}

// Key returns the row's logical key.
func (d Data) Key() SeriesKey {
	return SeriesKey{SeriesScope: d.Scope(), BusinessDate: d.BusinessDate}
}

// Valid returns the version's validity interval.
func (d Data) Valid() Span { return d.Validity }

// IsDeleted reports whether this version is a tombstone.
func (d Data) IsDeleted() bool { return d.Deleted }

// BusinessDay truncates a timestamp to the UTC day it falls on. Business
// dates are day-granular; every comparison and map key goes through this.
func BusinessDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
