package summary

// Summary is one generated result plus its source text and metrics.
// Records are immutable once stored; the only mutation is deletion.
type Summary struct {
	// ID is assigned by the store and strictly increases with insertion order
	ID int64 `json:"id"`

	// CreatedAt is the creation time in Unix milliseconds
	CreatedAt int64 `json:"created_at"`

	// Title is derived from the first line of the input (never blank)
	Title string `json:"title"`

	// OriginalText is the chat thread the reports were generated from
	OriginalText string `json:"original_text"`

	// Narrative is the "human story" handover report
	Narrative string `json:"narrative"`

	// Technical is the structured technical manifest
	Technical string `json:"technical"`

	// Stats is the text statistics snapshot taken at save time
	Stats Stats `json:"stats"`
}

// Item is a summary without its large text fields, used for history listings.
type Item struct {
	ID        int64  `json:"id"`
	CreatedAt int64  `json:"created_at"`
	Title     string `json:"title"`
	Preview   string `json:"preview"`
	Stats     Stats  `json:"stats"`
}

// previewChars bounds the narrative excerpt shown in history listings.
const previewChars = 200

// ToItem converts a Summary to an Item, keeping a short narrative preview.
func (s *Summary) ToItem() Item {
	return Item{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Title:     s.Title,
		Preview:   truncateRunes(s.Narrative, previewChars),
		Stats:     s.Stats,
	}
}
