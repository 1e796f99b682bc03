package domain

import "time"

// PipelineState is the working record of one chat run. It is owned by a
// single request and never shared.
type PipelineState struct {
	Query           Query
	NormalizedQuery string
	Parsed          *ParsedQuery
	Retrieved       []RetrievedDocument
	Reranked        []RetrievedDocument
	FinalResponse   string
	FromCache       bool
}

type ChatResult struct {
	Response          string              `json:"response"`
	Intent            Intent              `json:"intent"`
	FromCache         bool                `json:"from_cache"`
	RetrievedProducts []RetrievedDocument `json:"retrieved_products,omitempty"`
	Confidence        *float64            `json:"confidence,omitempty"`
	SessionID         string              `json:"session_id"`
}

type SessionMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type Session struct {
	UserID   string           `json:"user_id"`
	Messages []SessionMessage `json:"messages"`
}
