package domain

import (
	"strings"
	"time"
)

// SymbolAttribute is the asset attribute that carries the provider-facing
// ticker symbol. Ingestion refuses assets without it.
const SymbolAttribute = "symbol"

// Asset is one version row of a financial asset (corresponds to the asset
// table, PRIMARY KEY (id, valid_from), clustered valid_from DESC).
type Asset struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Attributes  map[string]string `json:"attributes"`
	SystemDate  time.Time         `json:"system_date"`
	Deleted     bool              `json:"is_deleted"`
	Validity    Span              `json:"validity"`
}

// Valid returns the version's validity interval.
func (a Asset) Valid() Span { return a.Validity }

// IsDeleted reports whether this version is a tombstone.
func (a Asset) IsDeleted() bool { return a.Deleted }

// Symbol returns the upper-cased ticker symbol, or "" when absent.
func (a Asset) Symbol() string {
	return strings.ToUpper(a.Attributes[SymbolAttribute])
}
