package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
)

// SequenceRepo issues ticket identifiers from a persisted counter. It is the
// single authority for both intake paths, so identifiers stay unique even
// under burst load or restarts.
type SequenceRepo struct {
	db *sql.DB
}

// NewSequenceRepo creates a SequenceRepo backed by the given store.
func NewSequenceRepo(store *Store) *SequenceRepo {
	return &SequenceRepo{db: store.DB}
}

var _ outbound.TicketSequence = (*SequenceRepo)(nil)

// NextTicketID atomically increments the counter and returns the formatted
// identifier, e.g. "TK-0042".
func (r *SequenceRepo) NextTicketID(ctx context.Context) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning sequence tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE ticket_sequence SET value = value + 1 WHERE id = 1`); err != nil {
		return "", fmt.Errorf("advancing ticket sequence: %w", err)
	}

	var value int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM ticket_sequence WHERE id = 1`).Scan(&value); err != nil {
		return "", fmt.Errorf("reading ticket sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing ticket sequence: %w", err)
	}
	return model.FormatTicketID(value), nil
}
