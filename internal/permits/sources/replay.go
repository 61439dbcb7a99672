package sources

import (
	"context"
	"fmt"
	"time"

	"permit_ingest_backend/internal/permits/domain"
)

// ReplayAdapter serves a previously archived body instead of fetching.
type ReplayAdapter struct {
	def       Definition
	decode    rowDecoder
	body      []byte
	fetchedAt time.Time
}

// NewReplayAdapter builds an adapter for source that returns body on every Fetch.
func NewReplayAdapter(source domain.Source, body []byte, fetchedAt time.Time) (*ReplayAdapter, error) {
	def, ok := Lookup(source)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", source)
	}
	decode, err := decoderFor(def.Format)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source, err)
	}
	return &ReplayAdapter{def: def, decode: decode, body: body, fetchedAt: fetchedAt.UTC()}, nil
}

func (a *ReplayAdapter) Source() domain.Source { return a.def.Source }

func (a *ReplayAdapter) Fetch(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewFetchError(a.def.Source, err)
	}
	return parseBatch(a.def, a.decode, a.body, "", a.fetchedAt)
}
