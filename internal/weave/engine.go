// Package weave implements the connection-discovery engine: a multi-stage,
// rate-limited pipeline that turns one note plus its vault into a small,
// validated set of links, and the parallel tag-weaving flow.
package weave

import (
	"context"
	"log/slog"
	"time"

	"github.com/treggify/mindweaver/internal/index"
	"github.com/treggify/mindweaver/internal/llm"
	"github.com/treggify/mindweaver/internal/ratelimit"
	"github.com/treggify/mindweaver/internal/storage"
)

// Options controls pipeline behavior. All fields come straight from
// configuration.
type Options struct {
	Strength            string
	Format              string
	ShowHeader          bool
	HeaderLevel         int
	HeaderText          string
	SpecialInstructions string
	ExcludedFolders     []string
	CustomTags          []string
	CustomTagsOnly      bool
	ConceptsTTL         time.Duration
}

// Notifier receives user-facing status messages from a pipeline run. Every
// abort path produces exactly one Error call; raw provider payloads never
// reach it.
type Notifier interface {
	Info(msg string)
	Error(msg string)
	Progress(msg string, current, total int)
}

// Engine runs connection discovery and tag weaving against one vault. All
// model calls go through the shared rate limiter; the pipeline itself is
// strictly sequential.
type Engine struct {
	store     storage.Provider
	db        index.NoteIndex
	completer llm.Completer
	limiter   *ratelimit.Limiter
	profile   llm.Profile
	opts      Options
	logger    *slog.Logger
	notify    Notifier

	// Injectable for tests; covers the fixed courtesy pauses, not the
	// limiter's own waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Engine.
func New(store storage.Provider, db index.NoteIndex, completer llm.Completer, limiter *ratelimit.Limiter, profile llm.Profile, opts Options, logger *slog.Logger) *Engine {
	e := &Engine{
		store:     store,
		db:        db,
		completer: completer,
		limiter:   limiter,
		profile:   profile,
		opts:      opts,
		logger:    logger,
		sleep:     sleepCtx,
	}
	e.notify = &logNotifier{logger: logger}
	return e
}

// SetNotifier replaces the default log-backed notifier.
func (e *Engine) SetNotifier(n Notifier) {
	if n != nil {
		e.notify = n
	}
}

type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Info(msg string) {
	n.logger.Info(msg)
}

func (n *logNotifier) Error(msg string) {
	n.logger.Error(msg)
}

func (n *logNotifier) Progress(msg string, current, total int) {
	n.logger.Info(msg, slog.Int("current", current), slog.Int("total", total))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
