package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitfield/jobhunter/internal/hunt"
	"github.com/mwhitfield/jobhunter/internal/score"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewStoreWithPool(mock, nil)
	require.NoError(t, err)
	return store, mock
}

func testListing() hunt.Listing {
	return hunt.Listing{
		ListingSummary: hunt.ListingSummary{
			ListingID: "8472913",
			Title:     "Kitchen Hand",
			Company:   "Cafe Uno",
			Location:  "Ringwood VIC",
			URL:       "https://www.seek.com.au/job/8472913",
		},
		SiteID:    1,
		KeywordID: 2,
	}
}

func TestSites(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT site_id, site_name, base_url").
		WillReturnRows(pgxmock.NewRows([]string{
			"site_id", "site_name", "base_url", "result_count_selector",
			"card_selector", "title_selector", "company_selector", "location_selector",
		}).AddRow(int64(1), "Seek", "https://www.seek.com.au", "", "", "", "", ""))

	sites, err := store.Sites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "Seek", sites[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKeywordsFiltersByUser(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM keywords k").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"keyword_id", "keyword", "role_id"}).
			AddRow(int64(1), "Kitchen Hand", int64(3)).
			AddRow(int64(2), "Dishwasher", int64(3)))

	keywords, err := store.Keywords(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, keywords, 2)
	assert.Equal(t, "Kitchen Hand", keywords[0].Text)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCriteriaGroupsItemsAndNormalizes(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	dec := 2.0
	mock.ExpectQuery("FROM criteria c").
		WithArgs(int64(1), int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"criterion_id", "field_name", "tag", "method",
			"increase", "decrease", "min_score", "max_score", "value", "effect",
		}).
			AddRow(int64(10), "job_title", "", "exact", nil, &dec, nil, nil, "manager", "decrease").
			AddRow(int64(10), "job_title", "", "exact", nil, &dec, nil, nil, "senior", "exclude").
			AddRow(int64(11), "", `a[data-automation="jobLocation"]`, "list", nil, nil, nil, nil, "Ringwood", "increase"))

	criteria, err := store.Criteria(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Len(t, criteria, 2)

	assert.Equal(t, score.FieldTitle, criteria[0].Field)
	assert.Equal(t, score.MethodEquals, criteria[0].Method)
	require.NotNil(t, criteria[0].Decrease)
	assert.Equal(t, 2.0, *criteria[0].Decrease)
	require.Len(t, criteria[0].Items, 2)

	// Selector-style tags normalize to a canonical field, list to contains.
	assert.Equal(t, score.FieldLocation, criteria[1].Field)
	assert.Equal(t, score.MethodContains, criteria[1].Method)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeenListingIDs(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT listing_id FROM listings").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"listing_id"}).
			AddRow("111").AddRow("222"))

	seen, err := store.SeenListingIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, seen, 2)
	_, ok := seen["111"]
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertListingInserts(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	l := testListing()

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(l.SiteID, l.ListingID, l.KeywordID, l.Title, l.Company, l.Location, l.URL, hunt.StatusNew).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := store.UpsertListing(context.Background(), l)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertListingConflictIsNoOp(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	l := testListing()

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(l.SiteID, l.ListingID, l.KeywordID, l.Title, l.Company, l.Location, l.URL, hunt.StatusNew).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := store.UpsertListing(context.Background(), l)
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertListingFallsBackToLegacy(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	l := testListing()

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(l.SiteID, l.ListingID, l.KeywordID, l.Title, l.Company, l.Location, l.URL, hunt.StatusNew).
		WillReturnError(assert.AnError)
	mock.ExpectExec("INSERT INTO job_listings").
		WithArgs(l.ListingID, l.KeywordID, l.Title, l.Company, l.Location, l.URL, hunt.StatusNew).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := store.UpsertListing(context.Background(), l)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertListingRequiresID(t *testing.T) {
	t.Parallel()
	store, _ := newMockStore(t)

	l := testListing()
	l.ListingID = ""
	_, err := store.UpsertListing(context.Background(), l)
	require.Error(t, err)
}

func TestUpdateListingScore(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE listings").
		WithArgs(int64(1), "8472913", 4, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateListingScore(context.Background(), 1, "8472913", 4, true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateListingScoreNotFound(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE listings").
		WithArgs(int64(1), "missing", 4, false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateListingScore(context.Background(), 1, "missing", 4, false)
	require.ErrorIs(t, err, hunt.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateListingEnrichment(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	e := hunt.Enrichment{Description: "busy kitchen", PayText: "$32.50 per hour", ClosingDate: "15 March 2026"}
	mock.ExpectExec("UPDATE listings").
		WithArgs(int64(1), "8472913", e.Description, e.PayText, e.ClosingDate, 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateListingEnrichment(context.Background(), 1, "8472913", e, 5)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListingsForEnrichment(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	// Eligibility is decided by the empty description, not the status column.
	mock.ExpectQuery(`FROM listings[\s\S]*description IS NULL OR description = ''`).
		WithArgs(int64(1), int64(2), 4, 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"listing_id", "url", "title", "location", "suitability_score",
		}).AddRow("8472913", "https://www.seek.com.au/job/8472913", "Kitchen Hand", "Ringwood VIC", 4))

	targets, err := store.ListingsForEnrichment(context.Background(), 1, 2, 4, 50)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, 4, targets[0].Score)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketCounts(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM listings").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"low", "mid", "high"}).AddRow(3, 5, 2))

	b, err := store.BucketCounts(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, hunt.Buckets{Low: 3, Mid: 5, High: 2}, b)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRunSummary(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	sum := hunt.RunSummary{
		RunID:             uuid.New(),
		KeywordID:         2,
		SiteID:            1,
		ListingsFound:     12,
		SkippedDuplicates: 4,
		RecordedAt:        time.Unix(1700000000, 0).UTC(),
	}
	mock.ExpectExec("INSERT INTO run_summaries").
		WithArgs(sum.RunID, sum.KeywordID, sum.SiteID, sum.ListingsFound, sum.SkippedDuplicates, sum.RecordedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertRunSummary(context.Background(), sum))
	require.NoError(t, mock.ExpectationsWereMet())
}
