package model

import "time"

// IdentityCandidate is a provisional product identity extracted from one web
// page while resolving a product code. It is never persisted by the engine.
type IdentityCandidate struct {
	Name            string  `json:"name"`
	Brand           string  `json:"brand,omitempty"`
	Category        string  `json:"category,omitempty"`
	SourceURL       string  `json:"source_url"`
	SourceDomain    string  `json:"source_domain"`
	MatchedOnSource bool    `json:"matched_on_source"`
	Score           float64 `json:"score"`
}

// ConfirmedIdentity records a human-confirmed name for a product code.
type ConfirmedIdentity struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
