// Package extraction turns a phase transcript into structured fields
// via an LLM call, with one bounded repair round-trip when the model's
// YAML does not parse.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"sift/internal/logging"
	"sift/internal/provider"
	"sift/internal/template"
)

const systemPrompt = `You are a precise data extraction engine. You read a transcript and return the requested fields as YAML. Respond with YAML only: no prose, no markdown fences, no commentary.`

// Request is one extraction job.
type Request struct {
	PhaseName  string
	Prompt     string
	Fields     []template.ExtractionField
	Transcript string

	// Context is concatenated extracted data from earlier phases.
	Context string

	MaxTokens int
}

// Extract runs the extraction call and parses the result. A malformed
// response gets exactly one repair round-trip before the error is
// surfaced; extraction is the session's core value, so failures are
// never silently swallowed.
func Extract(ctx context.Context, chat provider.Chat, req Request) (map[string]interface{}, error) {
	if chat == nil || !chat.IsAvailable() {
		return nil, fmt.Errorf("no LLM provider configured: set an API key to extract structured data")
	}
	if len(req.Fields) == 0 {
		return map[string]interface{}{}, nil
	}

	timer := logging.StartTimer(logging.CategoryExtraction, "extract "+req.PhaseName)
	defer timer.Stop()

	prompt := buildPrompt(req)

	raw, err := chat.Chat(ctx, systemPrompt, prompt, req.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("extraction call failed for phase %q: %w", req.PhaseName, err)
	}

	fields, parseErr := parseFields(raw, req.Fields)
	if parseErr == nil {
		return fields, nil
	}

	// One repair round-trip, then give up.
	logging.Extraction("phase %q: malformed extraction output, attempting repair: %v", req.PhaseName, parseErr)
	repaired, err := chat.Chat(ctx, systemPrompt, repairPrompt(raw, parseErr), req.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("extraction repair call failed for phase %q: %w", req.PhaseName, err)
	}

	fields, parseErr = parseFields(repaired, req.Fields)
	if parseErr != nil {
		return nil, fmt.Errorf("extraction output unparsable for phase %q after repair: %w", req.PhaseName, parseErr)
	}
	return fields, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Phase: %s\n", req.PhaseName)
	if req.Prompt != "" {
		fmt.Fprintf(&b, "Phase goal: %s\n", req.Prompt)
	}

	b.WriteString("\nExtract these fields:\n")
	for _, f := range req.Fields {
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.ID, f.Type, f.Prompt)
	}

	b.WriteString("\nField type rules: list -> YAML sequence, map -> YAML mapping, text -> string, boolean -> true/false. Use null when the transcript has no answer.\n")

	if req.Context != "" {
		b.WriteString("\nContext from earlier phases:\n")
		b.WriteString(req.Context)
		b.WriteString("\n")
	}

	b.WriteString("\nTranscript:\n")
	b.WriteString(req.Transcript)
	b.WriteString("\n\nReturn a YAML mapping with exactly the field ids above as keys.")

	return b.String()
}

func repairPrompt(badOutput string, parseErr error) string {
	return fmt.Sprintf(
		"Your previous output was not valid YAML (%v). Fix it and return only the corrected YAML mapping, nothing else.\n\nPrevious output:\n%s",
		parseErr, badOutput)
}

// parseFields parses a model response into a field map, keeping only
// the requested field ids.
func parseFields(raw string, defs []template.ExtractionField) (map[string]interface{}, error) {
	cleaned := provider.StripFences(raw)

	parsed := make(map[string]interface{})
	if err := yaml.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("empty mapping")
	}

	// Hallucinated keys are dropped, requested keys pass through even
	// when null.
	fields := make(map[string]interface{}, len(defs))
	for _, def := range defs {
		if v, ok := parsed[def.ID]; ok {
			fields[def.ID] = v
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("response contains none of the requested fields")
	}
	return fields, nil
}
