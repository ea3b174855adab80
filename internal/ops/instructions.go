package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/instruction"
)

// ListInstructionsOutput contains the result of the ListInstructions operation.
type ListInstructionsOutput struct {
	Items []instruction.Instruction `json:"items"`

	// ActiveID is the instruction generation would use right now (0 if none)
	ActiveID int64 `json:"active_id"`
}

// ListInstructions returns every instruction template.
func ListInstructions(ctx context.Context, database *sql.DB) (*ListInstructionsOutput, error) {
	records, err := db.ListInstructions(ctx, database)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []instruction.Instruction{}
	}

	out := &ListInstructionsOutput{Items: records}
	if active, ok := instruction.Resolve(records); ok {
		out.ActiveID = active.ID
	}
	return out, nil
}

// ActiveInstruction returns the effective instruction.
func ActiveInstruction(ctx context.Context, database *sql.DB) (*instruction.Instruction, error) {
	return db.GetActiveInstruction(ctx, database)
}

// SaveInstructionInput contains parameters for the SaveInstruction operation.
type SaveInstructionInput struct {
	ID       int64  // 0 creates a new instruction
	Name     string // required
	Content  string // required
	Activate bool   // make this the active instruction
}

// SaveInstructionOutput contains the result of the SaveInstruction operation.
type SaveInstructionOutput struct {
	Instruction instruction.Instruction `json:"instruction"`
	Created     bool                    `json:"created"`
}

// SaveInstruction creates or edits an instruction template.
// A new template becomes active when Activate is set or when it is the first
// one in the collection. Editing keeps the current active flag unless
// Activate is set.
func SaveInstruction(ctx context.Context, database *sql.DB, input SaveInstructionInput) (*SaveInstructionOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, errors.NewInvalidRequest("content is required")
	}
	if input.ID < 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}

	if input.ID == 0 {
		existing, err := db.ListInstructions(ctx, database)
		if err != nil {
			return nil, err
		}
		in := instruction.Instruction{Name: name, Content: input.Content}
		if _, err := db.InsertInstruction(ctx, database, &in, input.Activate || len(existing) == 0); err != nil {
			return nil, err
		}
		return &SaveInstructionOutput{Instruction: in, Created: true}, nil
	}

	in, err := db.GetInstruction(ctx, database, input.ID)
	if err != nil {
		return nil, err
	}
	in.Name = name
	in.Content = input.Content
	in.IsActive = in.IsActive || input.Activate
	if err := db.UpdateInstruction(ctx, database, in); err != nil {
		return nil, err
	}
	return &SaveInstructionOutput{Instruction: *in}, nil
}

// ActivateInstructionInput contains parameters for the ActivateInstruction operation.
type ActivateInstructionInput struct {
	ID int64 // required
}

// ActivateInstruction makes one instruction the only active one.
func ActivateInstruction(ctx context.Context, database *sql.DB, input ActivateInstructionInput) (*instruction.Instruction, error) {
	if input.ID <= 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}
	if err := db.SetActiveInstruction(ctx, database, input.ID); err != nil {
		return nil, err
	}
	return db.GetInstruction(ctx, database, input.ID)
}

// DeleteInstructionInput contains parameters for the DeleteInstruction operation.
type DeleteInstructionInput struct {
	ID int64 // required
}

// DeleteInstructionOutput contains the result of the DeleteInstruction operation.
type DeleteInstructionOutput struct {
	Deleted bool  `json:"deleted"`
	ID      int64 `json:"id"`
}

// DeleteInstruction removes a user instruction. The built-in default is protected;
// deleting a missing instruction succeeds with Deleted set to false.
func DeleteInstruction(ctx context.Context, database *sql.DB, input DeleteInstructionInput) (*DeleteInstructionOutput, error) {
	if input.ID <= 0 {
		return nil, errors.NewInvalidRequest("id must be a positive integer")
	}

	existed := true
	if _, err := db.GetInstruction(ctx, database, input.ID); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		existed = false
	}

	if err := db.DeleteInstruction(ctx, database, input.ID); err != nil {
		return nil, err
	}
	return &DeleteInstructionOutput{Deleted: existed, ID: input.ID}, nil
}
