package weave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/treggify/mindweaver/internal/llm"
	"github.com/treggify/mindweaver/internal/parser"
)

// conceptsBatchSize bounds how many notes are summarized per model call.
const conceptsBatchSize = 5

// interBatchDelay is an extra courtesy margin between concept batches, in
// addition to the rate limiter's waits.
const interBatchDelay = 200 * time.Millisecond

// ReindexConcepts refreshes the concepts summary of every vault note. Notes
// are batched; each batch is one model call whose response is split
// positionally on a literal separator, a best-effort split that is not guaranteed
// aligned: if the model emits fewer segments than notes, trailing notes in
// the batch receive an empty summary.
//
// The run-level last-indexed timestamp is only advanced after every batch
// succeeds. A failure mid-run keeps per-note progress (the next reindex
// overwrites per note) and leaves the timestamp untouched.
func (e *Engine) ReindexConcepts(ctx context.Context) error {
	if err := e.requireCredential(); err != nil {
		return err
	}

	metas, err := e.store.List("")
	if err != nil {
		e.notify.Error("vault listing failed")
		return fmt.Errorf("weave: list vault: %w", err)
	}

	type doc struct {
		path  string
		title string
		body  string
	}
	var docs []doc
	for _, m := range metas {
		data, readErr := e.store.Read(m.Path)
		if readErr != nil {
			e.logger.Warn("reindex: read failed", slog.String("path", m.Path), slog.String("error", readErr.Error()))
			continue
		}
		res, parseErr := parser.Parse(data)
		if parseErr != nil {
			e.logger.Warn("reindex: parse failed", slog.String("path", m.Path), slog.String("error", parseErr.Error()))
			continue
		}
		title := res.Title
		if title == "" {
			title = m.Path
		}
		docs = append(docs, doc{path: m.Path, title: title, body: res.Body})
	}

	total := (len(docs) + conceptsBatchSize - 1) / conceptsBatchSize
	for start := 0; start < len(docs); start += conceptsBatchSize {
		end := start + conceptsBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		e.notify.Progress("indexing concepts", start/conceptsBatchSize+1, total)

		if err := e.limiter.Await(ctx); err != nil {
			return fmt.Errorf("weave: reindex interrupted: %w", err)
		}

		titles := make([]string, len(batch))
		bodies := make([]string, len(batch))
		for i, d := range batch {
			titles[i] = d.title
			bodies[i] = d.body
		}

		resp, err := e.completer.Complete(ctx, []llm.Message{
			{Role: llm.RoleUser, Content: conceptsPrompt(titles, bodies)},
		})
		if err != nil {
			e.notify.Error("concept indexing failed")
			return fmt.Errorf("weave: concepts batch: %w", err)
		}

		segments := strings.Split(resp, conceptsSeparator)
		now := time.Now()
		for i, d := range batch {
			summary := ""
			if i < len(segments) {
				summary = strings.TrimSpace(segments[i])
			}
			if putErr := e.db.PutConcept(d.path, summary, now); putErr != nil {
				return fmt.Errorf("weave: store concept: %w", putErr)
			}
		}

		if end < len(docs) {
			if err := e.sleep(ctx, interBatchDelay); err != nil {
				return fmt.Errorf("weave: reindex interrupted: %w", err)
			}
		}
	}

	if err := e.db.SetLastIndexed(time.Now()); err != nil {
		return fmt.Errorf("weave: record last indexed: %w", err)
	}
	e.notify.Info(fmt.Sprintf("indexed concepts for %d notes", len(docs)))
	return nil
}
