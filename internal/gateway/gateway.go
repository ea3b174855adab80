// Package gateway turns chat history plus an instruction into the two
// handover reports by calling an external text-generation service.
package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/hpungsan/recap/internal/errors"
)

// Result is the structured output of one generation call.
type Result struct {
	Narrative string `json:"narrative"`
	Technical string `json:"technical"`
}

// Generator produces the two reports for a chat history.
// Failures are GENERATION_FAILURE or MALFORMED_RESPONSE errors.
type Generator interface {
	Generate(ctx context.Context, text, instruction string) (*Result, error)
}

// Func adapts an ordinary function to the Generator interface.
type Func func(ctx context.Context, text, instruction string) (*Result, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, text, instruction string) (*Result, error) {
	return f(ctx, text, instruction)
}

// BuildPrompt places the instruction ahead of the chat history.
func BuildPrompt(text, instruction string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(instruction))
	b.WriteString("\n\nAnalyze the following chat history and strictly follow the protocol above:\n\nChat History:\n")
	b.WriteString(text)
	return b.String()
}

// ParseResult decodes a raw model response. Code fences are stripped and
// near-JSON output is repaired before giving up. Both fields must be present
// and non-blank.
func ParseResult(raw string) (*Result, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, errors.NewMalformedResponse("empty response")
	}

	var res Result
	if err := json.Unmarshal([]byte(body), &res); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(body)
		if repairErr != nil {
			return nil, errors.NewMalformedResponse("response is not valid JSON")
		}
		res = Result{}
		if err := json.Unmarshal([]byte(repaired), &res); err != nil {
			return nil, errors.NewMalformedResponse("response is not valid JSON")
		}
	}

	switch {
	case strings.TrimSpace(res.Narrative) == "":
		return nil, errors.NewMalformedResponse("response is missing the narrative report")
	case strings.TrimSpace(res.Technical) == "":
		return nil, errors.NewMalformedResponse("response is missing the technical report")
	}
	return &res, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block, if any.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
