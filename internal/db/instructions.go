package db

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/instruction"
)

// instructionWrites serializes every write to the instructions table within
// the process. Combined with immediate transactions and the single-active
// unique index, concurrent callers can never leave two records active.
var instructionWrites sync.Mutex

const instructionColumns = `id, name, content, is_active, is_default, created_at, updated_at`

// ListInstructions returns every instruction. Order is not part of the contract;
// records come back by ID.
func ListInstructions(ctx context.Context, db *sql.DB) ([]instruction.Instruction, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+instructionColumns+` FROM instructions ORDER BY id`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []instruction.Instruction
	for rows.Next() {
		in, err := scanInstruction(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// GetInstruction retrieves an instruction by ID.
func GetInstruction(ctx context.Context, db *sql.DB, id int64) (*instruction.Instruction, error) {
	row := db.QueryRowContext(ctx, `SELECT `+instructionColumns+` FROM instructions WHERE id = ?`, id)
	in, err := scanInstruction(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("instruction", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return in, nil
}

// GetActiveInstruction resolves the effective instruction: the active record,
// else the default record, else the lowest ID.
// Returns NO_INSTRUCTIONS_CONFIGURED if the collection is empty.
func GetActiveInstruction(ctx context.Context, db *sql.DB) (*instruction.Instruction, error) {
	records, err := ListInstructions(ctx, db)
	if err != nil {
		return nil, err
	}
	in, ok := instruction.Resolve(records)
	if !ok {
		return nil, errors.NewNoInstructionsConfigured()
	}
	return &in, nil
}

// InsertInstruction stores a new user instruction. If activate is true, the
// active flag is cleared on every other record in the same transaction.
// User-created records are never default.
func InsertInstruction(ctx context.Context, db *sql.DB, in *instruction.Instruction, activate bool) (int64, error) {
	instructionWrites.Lock()
	defer instructionWrites.Unlock()

	now := time.Now().UnixMilli()
	var id int64

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if activate {
			if err := clearActive(ctx, tx, 0, now); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO instructions (name, content, is_active, is_default, created_at, updated_at)
			VALUES (?, ?, ?, 0, ?, ?)
		`, in.Name, in.Content, boolToInt(activate), now, now)
		if err != nil {
			return errors.NewWriteFailure(err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return errors.NewWriteFailure(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	in.ID = id
	in.IsActive = activate
	in.IsDefault = false
	in.CreatedAt = now
	in.UpdatedAt = now
	return id, nil
}

// UpdateInstruction replaces name, content and active flag of an existing record.
// The default flag is owned by the store and is not changed.
// When the replacement is active, other records are deactivated in the same transaction.
func UpdateInstruction(ctx context.Context, db *sql.DB, in *instruction.Instruction) error {
	instructionWrites.Lock()
	defer instructionWrites.Unlock()

	now := time.Now().UnixMilli()

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if err := ensureInstruction(ctx, tx, in.ID); err != nil {
			return err
		}
		if in.IsActive {
			if err := clearActive(ctx, tx, in.ID, now); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE instructions
			SET name = ?, content = ?, is_active = ?, updated_at = ?
			WHERE id = ?
		`, in.Name, in.Content, boolToInt(in.IsActive), now, in.ID)
		if err != nil {
			return errors.NewWriteFailure(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	in.UpdatedAt = now
	return nil
}

// SetActiveInstruction makes id the only active instruction. The target check,
// the flag clearing and the flag setting commit together or not at all.
func SetActiveInstruction(ctx context.Context, db *sql.DB, id int64) error {
	instructionWrites.Lock()
	defer instructionWrites.Unlock()

	now := time.Now().UnixMilli()

	return withTx(ctx, db, func(tx *sql.Tx) error {
		if err := ensureInstruction(ctx, tx, id); err != nil {
			return err
		}
		if err := clearActive(ctx, tx, id, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE instructions SET is_active = 1, updated_at = ?
			WHERE id = ? AND is_active = 0
		`, now, id)
		if err != nil {
			return errors.NewWriteFailure(err)
		}
		return nil
	})
}

// DeleteInstruction removes a user instruction. The default record is protected;
// deleting a missing ID is not an error.
func DeleteInstruction(ctx context.Context, db *sql.DB, id int64) error {
	instructionWrites.Lock()
	defer instructionWrites.Unlock()

	return withTx(ctx, db, func(tx *sql.Tx) error {
		var isDefault bool
		err := tx.QueryRowContext(ctx, `SELECT is_default FROM instructions WHERE id = ?`, id).Scan(&isDefault)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return errors.NewWriteFailure(err)
		}
		if isDefault {
			return errors.NewProtectedRecord(id)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM instructions WHERE id = ?`, id); err != nil {
			return errors.NewWriteFailure(err)
		}
		return nil
	})
}

// ensureInstruction returns NOT_FOUND if id does not exist.
func ensureInstruction(ctx context.Context, tx *sql.Tx, id int64) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM instructions WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("instruction", id)
	}
	if err != nil {
		return errors.NewWriteFailure(err)
	}
	return nil
}

// clearActive deactivates every active record except keepID (0 keeps none).
func clearActive(ctx context.Context, tx *sql.Tx, keepID int64, now int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE instructions SET is_active = 0, updated_at = ?
		WHERE is_active = 1 AND id != ?
	`, now, keepID)
	if err != nil {
		return errors.NewWriteFailure(err)
	}
	return nil
}

// scanInstruction scans a single row into an Instruction.
func scanInstruction(row rowScanner) (*instruction.Instruction, error) {
	var in instruction.Instruction
	err := row.Scan(&in.ID, &in.Name, &in.Content, &in.IsActive, &in.IsDefault, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
