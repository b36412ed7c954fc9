package models

// Stage is one step of a board pipeline (e.g. "SONDAGEM", "NEGOCIAÇÃO").
// The set of valid stages is owned by a registry; a Stage value on its own
// carries no ordering.
type Stage string

// String returns the raw stage identifier
func (s Stage) String() string {
	return string(s)
}

// Kind identifies which board an entity lives on
type Kind string

const (
	// KindShow is the Agenda board (show lifecycle)
	KindShow Kind = "shows"

	// KindLead is the CRM board (commercial lead funnel)
	KindLead Kind = "leads"
)

// Valid reports whether k is one of the known board kinds
func (k Kind) Valid() bool {
	return k == KindShow || k == KindLead
}

// String returns the raw kind identifier
func (k Kind) String() string {
	return string(k)
}
