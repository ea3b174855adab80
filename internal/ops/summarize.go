package ops

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/config"
	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/gateway"
	"github.com/hpungsan/recap/internal/instruction"
	"github.com/hpungsan/recap/internal/summary"
)

// SummarizeInput contains parameters for the Summarize operation.
type SummarizeInput struct {
	Text string // required, the chat thread
}

// SummarizeOutput contains the result of the Summarize operation.
// When Saved is false the reports are still valid and SaveError explains
// why they were not recorded in history.
type SummarizeOutput struct {
	RequestID   string          `json:"request_id"`
	Summary     summary.Summary `json:"summary"`
	Instruction string          `json:"instruction"`
	Saved       bool            `json:"saved"`
	SaveError   string          `json:"save_error,omitempty"`
}

// Summarize generates both reports for a chat thread and records the result.
// Generation failures return an error and write nothing. A failed save does not
// discard the generated reports.
func Summarize(ctx context.Context, database *sql.DB, gen gateway.Generator, cfg *config.Config, logger *zap.Logger, input SummarizeInput) (*SummarizeOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.NewInvalidRequest("Please paste some chat history first")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	requestID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	log := logger.With(zap.String("request_id", requestID))

	name, content, err := effectiveInstruction(ctx, database)
	if err != nil {
		return nil, err
	}

	log.Info("generating summary",
		zap.String("instruction", name),
		zap.Int("text_chars", summary.CountChars(input.Text)))

	result, err := gen.Generate(ctx, input.Text, content)
	if err != nil {
		if !errors.IsGenerationFailure(err) {
			err = errors.NewGenerationFailure("generation failed", err)
		}
		log.Warn("generation failed", zap.Error(err))
		return nil, err
	}

	createdAt := now()
	rule := summary.TitleRule{MaxChars: cfg.TitleMaxChars, MinChars: cfg.TitleMinChars}
	s := summary.Summary{
		CreatedAt:    createdAt.UnixMilli(),
		Title:        rule.DeriveTitle(input.Text, createdAt),
		OriginalText: input.Text,
		Narrative:    result.Narrative,
		Technical:    result.Technical,
		Stats:        summary.ComputeStats(input.Text),
	}

	out := &SummarizeOutput{
		RequestID:   requestID,
		Instruction: name,
	}

	if _, err := db.InsertSummary(ctx, database, &s); err != nil {
		log.Error("summary not saved", zap.Error(err))
		out.Summary = s
		out.SaveError = err.Error()
		return out, nil
	}

	log.Info("summary saved", zap.Int64("id", s.ID), zap.String("title", s.Title))
	out.Summary = s
	out.Saved = true
	return out, nil
}

// effectiveInstruction returns the name and content sent with a generation
// request. An empty instruction collection degrades to the built-in template.
func effectiveInstruction(ctx context.Context, database *sql.DB) (string, string, error) {
	in, err := db.GetActiveInstruction(ctx, database)
	if errors.Is(err, errors.ErrNoInstructionsConfigured) {
		tmpl := instruction.Current()
		return tmpl.Name, instruction.FallbackContent(), nil
	}
	if err != nil {
		return "", "", err
	}
	return in.Name, in.Content, nil
}
