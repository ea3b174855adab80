package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// ListHistoryInput contains parameters for the ListHistory operation.
type ListHistoryInput struct {
	Limit  int // default: config history_page_size, max: 100
	Offset int // default: 0
}

// ListHistoryOutput contains the result of the ListHistory operation.
type ListHistoryOutput struct {
	Items      []summary.Item `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Sort       string         `json:"sort"`
}

// ListHistory retrieves saved summaries, most recent first.
func ListHistory(ctx context.Context, database *sql.DB, cfg *config.Config, input ListHistoryInput) (*ListHistoryOutput, error) {
	defaultLimit := DefaultListLimit
	if cfg != nil && cfg.HistoryPageSize > 0 {
		defaultLimit = cfg.HistoryPageSize
	}
	limit, offset := pageBounds(input.Limit, input.Offset, defaultLimit)

	records, total, err := db.ListSummaries(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	items := make([]summary.Item, 0, len(records))
	for i := range records {
		items = append(items, records[i].ToItem())
	}

	return &ListHistoryOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// FetchSummaryInput contains parameters for the FetchSummary operation.
type FetchSummaryInput struct {
	ID int64 // required
}

// FetchSummary retrieves one saved summary with its full text.
func FetchSummary(ctx context.Context, database *sql.DB, input FetchSummaryInput) (*summary.Summary, error) {
	if input.ID <= 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}
	return db.GetSummary(ctx, database, input.ID)
}

// DeleteSummaryInput contains parameters for the DeleteSummary operation.
type DeleteSummaryInput struct {
	ID int64 // required
}

// DeleteSummaryOutput contains the result of the DeleteSummary operation.
type DeleteSummaryOutput struct {
	Deleted bool  `json:"deleted"`
	ID      int64 `json:"id"`
}

// DeleteSummary removes a saved summary. Deleting a missing summary succeeds
// with Deleted set to false.
func DeleteSummary(ctx context.Context, database *sql.DB, input DeleteSummaryInput) (*DeleteSummaryOutput, error) {
	if input.ID <= 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}

	existed := true
	if _, err := db.GetSummary(ctx, database, input.ID); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		existed = false
	}

	if err := db.DeleteSummary(ctx, database, input.ID); err != nil {
		return nil, err
	}

	return &DeleteSummaryOutput{Deleted: existed, ID: input.ID}, nil
}

// StatsInput contains parameters for the Stats operation.
type StatsInput struct {
	Text string
}

// Stats computes live text statistics for a chat thread without storing anything.
func Stats(input StatsInput) summary.Stats {
	return summary.ComputeStats(input.Text)
}
