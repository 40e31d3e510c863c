package weave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/treggify/mindweaver/internal/llm"
)

// prefilterChunkSize bounds how many candidate titles ride in one screening
// call.
const prefilterChunkSize = 5

// interChunkPause is the fixed pause between screening chunks, on top of the
// rate limiter's own spacing.
const interChunkPause = time.Second

// prefilter screens candidates by title in chunks and returns the survivors
// in order. The stage fails open: a chunk whose response cannot be parsed, or
// whose call errors outright, keeps all of its candidates; a false negative
// here would drop the candidate before validation ever sees it.
func (e *Engine) prefilter(ctx context.Context, sourceTitle string, candidates []Candidate) []Candidate {
	var survivors []Candidate

	for start := 0; start < len(candidates); start += prefilterChunkSize {
		end := start + prefilterChunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]

		verdicts := e.screenChunk(ctx, sourceTitle, chunk)
		for i, keep := range verdicts {
			if keep {
				survivors = append(survivors, chunk[i])
			}
		}

		if end < len(candidates) {
			if err := e.sleep(ctx, interChunkPause); err != nil {
				// Run is being torn down; keep what we have.
				return survivors
			}
		}
	}
	return survivors
}

// screenChunk issues one screening call for a chunk and returns a same-length
// verdict slice. Any failure yields all-true.
func (e *Engine) screenChunk(ctx context.Context, sourceTitle string, chunk []Candidate) []bool {
	failOpen := make([]bool, len(chunk))
	for i := range failOpen {
		failOpen[i] = true
	}

	if err := e.limiter.Await(ctx); err != nil {
		return failOpen
	}

	titles := make([]string, len(chunk))
	summaries := make([]string, len(chunk))
	for i, c := range chunk {
		titles[i] = c.Title()
		summaries[i] = e.freshSummary(c.Path)
	}

	resp, err := e.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prefilterPrompt(sourceTitle, titles, summaries)},
	})
	if err != nil {
		e.logger.Warn("prefilter: call failed, keeping chunk",
			slog.Int("chunk_size", len(chunk)),
			slog.String("error", err.Error()))
		return failOpen
	}

	verdicts, err := parseBoolArray(resp, len(chunk))
	if err != nil {
		e.logger.Warn("prefilter: unparsable response, keeping chunk",
			slog.Int("chunk_size", len(chunk)),
			slog.String("error", err.Error()))
		return failOpen
	}
	return verdicts
}

// freshSummary returns the cached concepts summary for a note when it exists
// and is within the TTL, otherwise empty string.
func (e *Engine) freshSummary(path string) string {
	if e.opts.ConceptsTTL <= 0 {
		return ""
	}
	c, err := e.db.GetConcept(path)
	if err != nil || c == nil {
		return ""
	}
	if time.Since(c.IndexedAt) > e.opts.ConceptsTTL {
		return ""
	}
	return c.Summary
}

// parseBoolArray extracts a boolean array of exactly n elements from raw
// model output. Anything else is an error.
func parseBoolArray(raw string, n int) ([]bool, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no array in response")
	}
	inner := strings.TrimSpace(raw[start+1 : end])

	var parts []string
	if inner != "" {
		parts = strings.Split(inner, ",")
	}
	if len(parts) != n {
		return nil, fmt.Errorf("array length %d, want %d", len(parts), n)
	}

	out := make([]bool, n)
	for i, p := range parts {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "true":
			out[i] = true
		case "false":
			out[i] = false
		default:
			return nil, fmt.Errorf("element %d is not a boolean: %q", i, p)
		}
	}
	return out, nil
}
