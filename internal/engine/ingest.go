package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lazypower/synapse/internal/llm"
	"github.com/lazypower/synapse/internal/metrics"
	"github.com/lazypower/synapse/internal/store"
)

const (
	// extractionWindow bounds the extractor's input to the tail of the
	// conversation. The extractor is unreliable; feeding it less helps.
	extractionWindow = 6

	// entityMergeThreshold is the cosine similarity above which (strictly)
	// a candidate entity is considered the same as an existing node.
	entityMergeThreshold = 0.92

	// relationMatchThreshold is the looser bar for resolving relation
	// endpoints. Endpoint labels are short free-text references, not
	// composed label+body, so they match less cleanly.
	relationMatchThreshold = 0.80

	// defaultRelation names edges whose relation label came back empty.
	defaultRelation = "related_to"
)

// IngestStats reports what a single ingestion run wrote to the graph.
type IngestStats struct {
	NodesCreated int `json:"nodes_created"`
	EdgesCreated int `json:"edges_created"`
}

// entityCandidate and relationCandidate mirror the JSON contract given to
// the extraction prompt.
type entityCandidate struct {
	Type     string `json:"type"`
	Label    string `json:"label"`
	Body     string `json:"body"`
	Category string `json:"category"`
}

type relationCandidate struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

type extractionResult struct {
	Entities  []entityCandidate   `json:"entities"`
	Relations []relationCandidate `json:"relations"`
}

// Ingest extracts entities and relations from a conversation window and
// folds them into the graph. Extraction failure of any kind degrades to
// "nothing learned this turn": the returned stats are zero and the error is
// nil. Per-entity and per-relation failures are logged and skipped; one bad
// candidate never aborts the batch.
func (e *Engine) Ingest(ctx context.Context, messages []store.Message) (IngestStats, error) {
	var stats IngestStats

	if e.LLM == nil {
		return stats, fmt.Errorf("no LLM configured")
	}
	if e.Embedder == nil {
		return stats, fmt.Errorf("no embedder configured")
	}
	if len(messages) == 0 {
		return stats, nil
	}

	if len(messages) > extractionWindow {
		messages = messages[len(messages)-extractionWindow:]
	}

	resp, err := e.LLM.Complete(ctx, llm.ExtractionPrompt(formatWindow(messages)))
	if err != nil {
		e.log.Warnw("extraction call failed", "err", err)
		metrics.ExtractionFailures.Inc()
		return stats, nil
	}

	extracted, err := parseExtractionResponse(resp.Content)
	if err != nil {
		e.log.Warnw("extraction response unusable", "err", err)
		metrics.ExtractionFailures.Inc()
		return stats, nil
	}
	if len(extracted.Entities) == 0 {
		return stats, nil
	}

	// resolved maps lowercased labels seen in this batch to node IDs, so
	// relation endpoints resolve deterministically without store lookups.
	resolved := make(map[string]string)

	for _, c := range extracted.Entities {
		c, ok := normalizeEntity(c)
		if !ok {
			e.log.Debugw("skipping entity without type/label", "label", c.Label, "type", c.Type)
			continue
		}

		id, created, err := e.resolveEntity(ctx, c)
		if err != nil {
			e.log.Warnw("entity resolution failed", "label", c.Label, "err", err)
			continue
		}
		resolved[strings.ToLower(c.Label)] = id
		if created {
			stats.NodesCreated++
			metrics.IngestedNodes.Inc()
		}
	}

	for _, r := range extracted.Relations {
		sourceID := e.resolveEndpoint(ctx, resolved, r.Source)
		targetID := e.resolveEndpoint(ctx, resolved, r.Target)
		if sourceID == "" || targetID == "" || sourceID == targetID {
			continue
		}

		relation := strings.TrimSpace(r.Relation)
		if relation == "" {
			relation = defaultRelation
		}

		created, err := e.DB.UpsertEdge(sourceID, targetID, relation)
		if err != nil {
			e.log.Warnw("edge upsert failed", "source", r.Source, "target", r.Target, "err", err)
			continue
		}
		if created {
			stats.EdgesCreated++
			metrics.IngestedEdges.Inc()
		}
	}

	return stats, nil
}

// resolveEntity finds the graph node a candidate refers to, merging into it,
// or creates a new node. Returns the node ID and whether a node was created.
func (e *Engine) resolveEntity(ctx context.Context, c entityCandidate) (string, bool, error) {
	// Exact label match within the same type needs no embedding call.
	existing, err := e.DB.FindByLabel(c.Label, c.Type)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return existing.ID, false, e.mergeInto(existing.ID, c.Body)
	}

	vec, err := e.Embedder.Embed(ctx, c.Label+": "+c.Body)
	if err != nil {
		metrics.EmbeddingFailures.Inc()
		return "", false, fmt.Errorf("embed entity: %w", err)
	}

	matches, err := e.DB.FindNearest(vec, 1)
	if err != nil {
		return "", false, err
	}
	if len(matches) > 0 && matches[0].Similarity > entityMergeThreshold {
		e.log.Debugw("merging entity into existing node",
			"label", c.Label, "into", matches[0].Node.Label, "similarity", matches[0].Similarity)
		return matches[0].Node.ID, false, e.mergeInto(matches[0].Node.ID, c.Body)
	}

	node := &store.Node{
		Type:     c.Type,
		Label:    c.Label,
		Body:     c.Body,
		Category: c.Category,
		Strength: 1.0,
	}
	if err := e.DB.CreateNode(node); err != nil {
		return "", false, err
	}
	if err := e.DB.SaveVector(node.ID, vec, e.Embedder.Model()); err != nil {
		// The node exists; a missing vector only costs it similarity recall.
		e.log.Warnw("save vector failed", "node", node.ID, "err", err)
	}
	return node.ID, true, nil
}

// mergeInto appends body text to an existing node and marks it accessed.
// The stored embedding is left as-is; see the drift note in DESIGN.md.
func (e *Engine) mergeInto(nodeID, body string) error {
	if body != "" {
		if err := e.DB.AppendNodeBody(nodeID, body); err != nil {
			return err
		}
	}
	return e.DB.TouchNode(nodeID)
}

// resolveEndpoint maps a relation endpoint label to a node ID. In-batch
// labels win; otherwise the raw label is embedded and matched against the
// store at the looser relation threshold. Returns "" when nothing matches;
// failures are logged, never fatal.
func (e *Engine) resolveEndpoint(ctx context.Context, resolved map[string]string, label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	if id, ok := resolved[strings.ToLower(label)]; ok {
		return id
	}

	vec, err := e.Embedder.Embed(ctx, label)
	if err != nil {
		metrics.EmbeddingFailures.Inc()
		e.log.Warnw("embed relation endpoint failed", "label", label, "err", err)
		return ""
	}
	matches, err := e.DB.FindNearest(vec, 1)
	if err != nil {
		e.log.Warnw("endpoint lookup failed", "label", label, "err", err)
		return ""
	}
	if len(matches) > 0 && matches[0].Similarity > relationMatchThreshold {
		return matches[0].Node.ID
	}
	return ""
}

// normalizeEntity trims a candidate and maps its type into the closed
// enumeration. Unrecognized non-empty types become TypeOther; candidates
// without a type or label are rejected.
func normalizeEntity(c entityCandidate) (entityCandidate, bool) {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	c.Label = strings.TrimSpace(c.Label)
	c.Body = strings.TrimSpace(c.Body)
	c.Category = strings.ToLower(strings.TrimSpace(c.Category))

	if c.Label == "" || c.Type == "" {
		return c, false
	}
	if !store.ValidTypes[c.Type] {
		c.Type = store.TypeOther
	}
	return c, true
}

// formatWindow renders messages as "role: content" lines for the extractor.
func formatWindow(messages []store.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// parseExtractionResponse extracts a JSON object from the LLM response.
// The response might contain markdown code fences or other wrapper text.
func parseExtractionResponse(content string) (extractionResult, error) {
	var result extractionResult
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		// Remove first and last lines (```json and ```)
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < 0 || end <= start {
		return result, fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return result, fmt.Errorf("unmarshal extraction: %w", err)
	}

	return result, nil
}
