package weave

import (
	"context"
	"fmt"
	"sort"

	"github.com/treggify/mindweaver/internal/apperr"
	"github.com/treggify/mindweaver/internal/llm"
	"github.com/treggify/mindweaver/internal/models"
	"github.com/treggify/mindweaver/internal/parser"
)

// GenerateBacklinks runs the full discovery pipeline for one note and returns
// the formatted links section, or empty string when nothing was found. The
// stages run strictly in sequence: credential gate, candidate set, title
// pre-filter (chunked, fail-open), per-survivor validation (fail-closed),
// dedupe, sort, format.
func (e *Engine) GenerateBacklinks(ctx context.Context, sourcePath string) (string, error) {
	if err := e.requireCredential(); err != nil {
		return "", err
	}

	data, err := e.store.Read(sourcePath)
	if err != nil {
		e.notify.Error(fmt.Sprintf("note %s could not be read", sourcePath))
		return "", fmt.Errorf("weave: %w: %s", apperr.ErrNotFound, sourcePath)
	}
	parsed, err := parser.Parse(data)
	if err != nil {
		e.notify.Error(fmt.Sprintf("note %s could not be parsed", sourcePath))
		return "", fmt.Errorf("weave: parse source: %w", err)
	}
	source := models.Note{Path: sourcePath, Body: parsed.Body}

	metas, err := e.store.List("")
	if err != nil {
		e.notify.Error("vault listing failed")
		return "", fmt.Errorf("weave: list vault: %w", err)
	}
	paths := make([]string, len(metas))
	for i, m := range metas {
		paths[i] = m.Path
	}

	candidates := BuildCandidateSet(paths, sourcePath, e.opts.ExcludedFolders)
	if len(candidates) == 0 {
		e.notify.Info("no connections found")
		return "", nil
	}

	survivors := e.prefilter(ctx, source.Basename(), candidates)

	seen := make(map[models.Link]struct{})
	var links []models.Link
	for i, c := range survivors {
		e.notify.Progress("validating connections", i+1, len(survivors))

		// Read what's there now; a candidate deleted mid-run simply drops out.
		candData, readErr := e.store.Read(c.Path)
		if readErr != nil {
			continue
		}
		candParsed, parseErr := parser.Parse(candData)
		if parseErr != nil {
			continue
		}
		cand := models.Note{Path: c.Path, Body: candParsed.Body}

		if e.validate(ctx, source.Body, cand.Body) {
			l := models.NewLink(cand.Path)
			if _, dup := seen[l]; !dup {
				seen[l] = struct{}{}
				links = append(links, l)
			}
		}
	}

	if len(links) == 0 {
		e.notify.Info("no connections found")
		return "", nil
	}

	sort.Slice(links, func(i, j int) bool { return links[i] < links[j] })
	e.notify.Info(fmt.Sprintf("found %d connections", len(links)))
	return FormatLinks(links, e.opts.Format, e.opts.ShowHeader, e.opts.HeaderLevel, e.opts.HeaderText), nil
}

// Connect runs GenerateBacklinks and, when apply is set and something was
// found, appends the section to the note. An empty result never mutates the
// note.
func (e *Engine) Connect(ctx context.Context, sourcePath string, apply bool) (string, error) {
	section, err := e.GenerateBacklinks(ctx, sourcePath)
	if err != nil || section == "" {
		return section, err
	}
	if !apply {
		return section, nil
	}

	data, err := e.store.Read(sourcePath)
	if err != nil {
		return "", fmt.Errorf("weave: re-read source: %w", err)
	}
	content := string(data)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		content += "\n"
	}
	content += "\n" + section

	if err := e.store.Write(sourcePath, []byte(content)); err != nil {
		return "", fmt.Errorf("weave: write source: %w", err)
	}
	return section, nil
}

// requireCredential aborts before any network call when the selected provider
// family needs an API key and none is configured.
func (e *Engine) requireCredential() error {
	if llm.RequiresCredential(e.profile.Kind) && e.profile.APIKey == "" {
		e.notify.Error(fmt.Sprintf("no API key configured for provider %q", e.profile.Kind))
		return apperr.ErrNoCredential
	}
	return nil
}
