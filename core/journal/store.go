// Package journal keeps an append-only record of the bids an agent
// published and of what it did with each price update.
package journal

import (
	"context"
	"time"

	"github.com/kilianp07/evagent/core/model"
)

// Kind distinguishes journal entries.
type Kind string

const (
	KindBid   Kind = "bid"
	KindPrice Kind = "price"
)

// Record is one journal line.
type Record struct {
	Timestamp time.Time          `json:"timestamp"`
	Kind      Kind               `json:"kind"`
	AgentID   string             `json:"agent_id"`
	SessionID string             `json:"session_id"`
	BidNumber int64              `json:"bid_number"`
	Bid       *model.Bid         `json:"bid,omitempty"`
	Price     *model.PriceUpdate `json:"price,omitempty"`
	Outcome   string             `json:"outcome,omitempty"`
	DemandKW  float64            `json:"demand_kw,omitempty"`
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	Kind      Kind
	BidNumber int64
}

// Match reports whether r satisfies q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.BidNumber != 0 && r.BidNumber != q.BidNumber {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
