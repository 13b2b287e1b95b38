package domain

import "time"

// Tier is one of the three pricing levels the external form offers per
// rate category.
type Tier string

const (
	TierBudget  Tier = "budget"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

func (t Tier) Valid() bool {
	switch t {
	case TierBudget, TierPremium, TierPro:
		return true
	}
	return false
}

// PricingSelection is the payload the external pricing form submits through
// the webhook: one tier per rate category plus the publication opt-in.
type PricingSelection struct {
	Type             Tier  `json:"type"`
	Testing          Tier  `json:"testing"`
	Messages         Tier  `json:"messages"`
	Commands         Tier  `json:"commands"`
	Versions         Tier  `json:"versions"`
	AllowPublication bool  `json:"allow_publication"`
	TicketID         int64 `json:"ticket_id"`
}

func (s PricingSelection) Valid() bool {
	return s.Type.Valid() && s.Testing.Valid() && s.Messages.Valid() &&
		s.Commands.Valid() && s.Versions.Valid()
}

// PricingRequest is a one-time id/token pair that lets the external form
// attach a selection to a ticket exactly once.
type PricingRequest struct {
	ID               string
	Token            string
	TicketID         int64
	Selections       *PricingSelection
	AllowPublication bool
	ConsumedAt       *time.Time
	CreatedAt        time.Time
}

func (p *PricingRequest) Consumed() bool {
	return p.ConsumedAt != nil
}
