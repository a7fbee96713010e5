package models

import "time"

// EntityType is the closed set of entity kinds the resolver understands.
type EntityType string

const (
	EntityCompany      EntityType = "company"
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityCompany, EntityPerson, EntityOrganization:
		return true
	default:
		return false
	}
}

// Relationship is a directed edge from the owning entity to TargetID.
type Relationship struct {
	TargetID string `json:"target_id"`
	Kind     string `json:"kind"` // "ceo", "subsidiary", "board_member", ...
}

// IdentifierKey addresses an external identifier such as a CIK or ISIN.
type IdentifierKey struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Relation kinds used by relationship inference ("CEO of X").
const (
	RelationCEO         = "ceo"
	RelationCFO         = "cfo"
	RelationFounder     = "founder"
	RelationChairman    = "chairman"
	RelationBoardMember = "board_member"
	RelationSubsidiary  = "subsidiary"
)

// Entity is a canonical identity with every alias that points to it.
type Entity struct {
	ID            string          `json:"id"`
	Type          EntityType      `json:"type"`
	Name          string          `json:"name"`
	Aliases       []string        `json:"aliases,omitempty"`
	Tickers       []string        `json:"tickers,omitempty"`
	Identifiers   []IdentifierKey `json:"identifiers,omitempty"`
	Relationships []Relationship  `json:"relationships,omitempty"`
	Confidence    float64         `json:"confidence"`
	Influence     float64         `json:"influence"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers never share index-owned slices.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Aliases = append([]string(nil), e.Aliases...)
	c.Tickers = append([]string(nil), e.Tickers...)
	c.Identifiers = append([]IdentifierKey(nil), e.Identifiers...)
	c.Relationships = append([]Relationship(nil), e.Relationships...)
	return &c
}

// ResolveContext carries optional hints for fuzzy resolution.
type ResolveContext struct {
	EntityType EntityType
	// Domain is the kind of source the text came from ("financial", "news", ...).
	Domain string
}

// FinancialDomain marks a context coming from a financial-data source.
const FinancialDomain = "financial"
