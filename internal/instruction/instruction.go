package instruction

// Instruction is a prompt template used to steer summary generation.
type Instruction struct {
	// ID is assigned by the store
	ID int64 `json:"id"`

	// Name is a human-readable label
	Name string `json:"name"`

	// Content is the prompt/protocol text sent ahead of the chat thread
	Content string `json:"content"`

	// IsActive marks the selected template; at most one record has it set
	IsActive bool `json:"is_active"`

	// IsDefault marks the built-in template seeded by the store; it cannot be deleted
	IsDefault bool `json:"is_default"`

	// CreatedAt is the Unix millisecond timestamp when the record was created
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix millisecond timestamp of the last edit or activation change
	UpdatedAt int64 `json:"updated_at"`
}

// Resolve picks the effective instruction from a set of records:
// the active one, else the default one, else the lowest ID.
// Returns false if records is empty.
func Resolve(records []Instruction) (Instruction, bool) {
	if len(records) == 0 {
		return Instruction{}, false
	}

	var def, first *Instruction
	for i := range records {
		r := &records[i]
		if r.IsActive {
			return *r, true
		}
		if r.IsDefault && def == nil {
			def = r
		}
		if first == nil || r.ID < first.ID {
			first = r
		}
	}
	if def != nil {
		return *def, true
	}
	return *first, true
}

// CountActive returns how many records carry the active flag.
func CountActive(records []Instruction) int {
	n := 0
	for _, r := range records {
		if r.IsActive {
			n++
		}
	}
	return n
}
