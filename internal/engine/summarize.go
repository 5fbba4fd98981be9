package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lazypower/synapse/internal/llm"
)

// SummarizePending finds the oldest closed session not yet covered by a
// summary, summarizes it, and feeds the same window through ingestion so the
// graph learns from it too. Sessions shorter than minMessages are left in
// place; they stay pending until enough neighboring traffic closes around
// them or they are absorbed into a later, larger window.
//
// Returns true when a summary was written.
func (e *Engine) SummarizePending(ctx context.Context, minMessages int) (bool, error) {
	if e.LLM == nil {
		return false, fmt.Errorf("no LLM configured")
	}

	coversUntil, err := e.DB.LatestCoversUntil()
	if err != nil {
		return false, err
	}

	win, err := e.Sessions.UnsummarizedPreviousSession(time.UnixMilli(coversUntil))
	if err != nil {
		return false, err
	}
	if win == nil {
		return false, nil
	}
	if len(win.Messages) < minMessages {
		e.log.Debugw("session too short to summarize, leaving pending",
			"messages", len(win.Messages), "end", win.End)
		return false, nil
	}

	resp, err := e.LLM.Complete(ctx, llm.SummaryPrompt(formatWindow(win.Messages)))
	if err != nil {
		return false, fmt.Errorf("summarize session: %w", err)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return false, fmt.Errorf("summarize session: empty response")
	}

	if err := e.DB.SaveSummary(content, win.End.UnixMilli()); err != nil {
		return false, err
	}
	e.log.Infow("session summarized",
		"messages", len(win.Messages), "start", win.Start, "end", win.End)

	// Ingestion failures degrade to zero stats internally; the summary is
	// already durable either way.
	if stats, err := e.Ingest(ctx, win.Messages); err != nil {
		e.log.Warnw("post-summary ingestion failed", "err", err)
	} else {
		e.log.Infow("session ingested", "nodes", stats.NodesCreated, "edges", stats.EdgesCreated)
	}
	return true, nil
}
