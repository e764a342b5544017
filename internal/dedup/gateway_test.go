package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mwhitfield/jobhunter/internal/hunt"
	"github.com/mwhitfield/jobhunter/internal/store/memory"
)

func candidate(id string) hunt.Listing {
	return hunt.Listing{
		ListingSummary: hunt.ListingSummary{ListingID: id, Title: "Kitchen Hand"},
		SiteID:         1,
		KeywordID:      1,
	}
}

func TestProcessInsertsAndScores(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore()
	g := NewGateway(ctx, repo, 1, zaptest.NewLogger(t))

	got := g.Process(ctx, candidate("111"), 4, true)
	assert.Equal(t, OutcomeInserted, got)

	listings := repo.Listings()
	require.Len(t, listings, 1)
	assert.Equal(t, 4, listings[0].Score)
	assert.Equal(t, hunt.StatusQueuedDeep, listings[0].Status)
	assert.Equal(t, Stats{Inserted: 1}, g.Stats())
}

func TestProcessSkipsPreloadedDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore()
	_, err := repo.UpsertListing(ctx, candidate("111"))
	require.NoError(t, err)

	g := NewGateway(ctx, repo, 1, zaptest.NewLogger(t))
	got := g.Process(ctx, candidate("111"), 4, false)
	assert.Equal(t, OutcomeSkippedDuplicate, got)
	assert.Equal(t, Stats{SkippedDuplicates: 1}, g.Stats())

	// The duplicate's score must remain untouched.
	assert.Equal(t, 0, repo.Listings()[0].Score)
}

func TestProcessSkipsRepeatsWithinRun(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore()
	g := NewGateway(ctx, repo, 1, zaptest.NewLogger(t))

	assert.Equal(t, OutcomeInserted, g.Process(ctx, candidate("111"), 3, false))
	assert.Equal(t, OutcomeSkippedDuplicate, g.Process(ctx, candidate("111"), 3, false))
	assert.Equal(t, Stats{Inserted: 1, SkippedDuplicates: 1}, g.Stats())
}

func TestProcessDropsMissingID(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(ctx, memory.NewStore(), 1, zaptest.NewLogger(t))

	got := g.Process(ctx, candidate(""), 3, false)
	assert.Equal(t, OutcomeDropped, got)
	assert.Equal(t, Stats{Dropped: 1}, g.Stats())
}
