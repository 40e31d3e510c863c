package weave

import (
	"context"
	"fmt"
	"strings"

	"github.com/treggify/mindweaver/internal/apperr"
	"github.com/treggify/mindweaver/internal/llm"
	"github.com/treggify/mindweaver/internal/parser"
)

// BuildVocabulary assembles the controlled tag vocabulary: user-declared
// custom tags always, vault-observed tags unless customOnly is set. Every tag
// carries a leading #; comparison stays case-sensitive.
func BuildVocabulary(vaultTags, customTags []string, customOnly bool) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		t := strings.TrimSpace(raw)
		if t == "" {
			return
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range customTags {
		add(t)
	}
	if !customOnly {
		for _, t := range vaultTags {
			add(t)
		}
	}
	return out
}

// WeaveTags asks the model to pick applicable tags from the vocabulary and
// returns them in response order, minus any tag already present on the note.
// Hallucinated tags outside the vocabulary are silently discarded; near-miss
// forms (a missing # for instance) are dropped, not normalized.
// An empty vocabulary is a no-op, not an error: one message, no model call.
func (e *Engine) WeaveTags(ctx context.Context, body string, vocabulary []string, existing map[string]struct{}) ([]string, error) {
	if len(vocabulary) == 0 {
		e.notify.Info("no tags in vocabulary")
		return nil, nil
	}
	if err := e.requireCredential(); err != nil {
		return nil, err
	}
	if err := e.limiter.Await(ctx); err != nil {
		return nil, err
	}

	resp, err := e.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: tagSystemPrompt(vocabulary)},
		{Role: llm.RoleUser, Content: body},
	})
	if err != nil {
		e.notify.Error("tag suggestion failed")
		return nil, fmt.Errorf("weave: tag call: %w", err)
	}

	vocab := make(map[string]struct{}, len(vocabulary))
	for _, t := range vocabulary {
		vocab[t] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(resp, ",") {
		t := strings.TrimSpace(part)
		if t == "" {
			continue
		}
		if _, ok := vocab[t]; !ok {
			continue
		}
		if _, present := existing[t]; present {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// WeaveTagsForNote reads a note, builds the vocabulary from the metadata
// cache plus configured custom tags, and runs tag weaving against it.
func (e *Engine) WeaveTagsForNote(ctx context.Context, path string) ([]string, error) {
	data, err := e.store.Read(path)
	if err != nil {
		e.notify.Error(fmt.Sprintf("note %s could not be read", path))
		return nil, fmt.Errorf("weave: %w: %s", apperr.ErrNotFound, path)
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("weave: parse note: %w", err)
	}

	vaultTags, err := e.db.AllTags()
	if err != nil {
		return nil, fmt.Errorf("weave: load vault tags: %w", err)
	}
	vocabulary := BuildVocabulary(vaultTags, e.opts.CustomTags, e.opts.CustomTagsOnly)
	if len(vocabulary) == 0 {
		e.notify.Info("no tags in vocabulary")
		return nil, nil
	}

	existing := make(map[string]struct{}, len(res.Tags))
	for _, t := range res.Tags {
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		existing[t] = struct{}{}
	}

	tags, err := e.WeaveTags(ctx, res.Body, vocabulary, existing)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		e.notify.Info("no new tags to add")
	}
	return tags, nil
}
