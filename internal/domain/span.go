package domain

import "time"

// FarFuture marks an open version's valid_to in storage. The schema keeps
// valid_to inside the clustering-adjacent columns and disallows "no value",
// so open versions persist with this sentinel instead of null.
var FarFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// Span is the validity interval [From, To) of one physical version row.
// An open span (the version that is currently the logical truth) has a
// zero To; storage representation concerns stay out of this type.
type Span struct {
	From time.Time `json:"valid_from"`
	To   time.Time `json:"valid_to,omitzero"`
}

// OpenSpan returns a span that starts at from and has no end yet.
func OpenSpan(from time.Time) Span { return Span{From: from} }

// Open reports whether the span has no end yet.
func (s Span) Open() bool { return s.To.IsZero() }

// Covers reports whether the span contains the instant, treating an open
// span as unbounded on the right.
func (s Span) Covers(at time.Time) bool {
	if at.Before(s.From) {
		return false
	}
	return s.Open() || at.Before(s.To)
}

// Close returns a copy of the span ended at the given instant.
func (s Span) Close(at time.Time) Span { return Span{From: s.From, To: at} }

// NormalizeValidTo maps the storage representations of "no end yet" onto
// the open form. Legacy rows were written under three conventions: a null
// valid_to (decoded as the zero time), the far-future sentinel, and in a
// few early rows timestamps past the sentinel; all of them mean open.
func NormalizeValidTo(t time.Time) time.Time {
	if t.IsZero() || !t.Before(FarFuture) {
		return time.Time{}
	}
	return t
}

// StorageValidTo is the inverse of NormalizeValidTo: open spans persist as
// the far-future sentinel.
func (s Span) StorageValidTo() time.Time {
	if s.Open() {
		return FarFuture
	}
	return s.To
}
