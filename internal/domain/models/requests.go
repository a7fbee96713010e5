package models

// QuoteRequest is the query of GET /api/quote.
type QuoteRequest struct {
	Symbol string `query:"symbol" validate:"required,max=16"`
}

// CollectRequest is the body of POST /api/collect.
type CollectRequest struct {
	Subjects []string `json:"subjects" validate:"required,min=1,max=100,dive,required"`
}

// ResolveRequest is the query of GET /api/resolve.
type ResolveRequest struct {
	Text       string     `query:"text" validate:"required,max=256"`
	EntityType EntityType `query:"entity_type" validate:"omitempty,oneof=company person organization"`
	Domain     string     `query:"domain"`
}

// OpportunitiesRequest is the query of GET /api/opportunities. Min 0 lists everything.
type OpportunitiesRequest struct {
	Min       float64   `query:"min" validate:"gte=0,lte=1"`
	Direction Direction `query:"direction" validate:"omitempty,oneof=bullish bearish"`
}

// OutcomeRequest reports whether a signal type called a move right.
type OutcomeRequest struct {
	Type    SignalType `json:"type" validate:"required"`
	Correct *bool      `json:"correct" validate:"required"`
}

// RelationshipRequest is the body of POST /api/entities/:id/relationships.
type RelationshipRequest struct {
	TargetID string `json:"target_id" validate:"required"`
	Kind     string `json:"kind" validate:"required"`
}

// RelatedRequest is the query of GET /api/entities/:id/related.
type RelatedRequest struct {
	Kinds string `query:"kinds"`
	Depth int    `query:"depth" default:"2" validate:"gte=1,lte=5"`
}

// MergeRequest folds Drop into Keep.
type MergeRequest struct {
	Keep string `json:"keep" validate:"required"`
	Drop string `json:"drop" validate:"required,nefield=Keep"`
}
