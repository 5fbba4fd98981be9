package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lazypower/synapse/internal/metrics"
	"github.com/lazypower/synapse/internal/store"
)

const (
	defaultTopK    = 20
	defaultMaxHops = 3

	// seedCount is how many nearest neighbors seed the spread.
	seedCount = 5

	// hopDecay attenuates energy at each hop. A weight-1.0 edge passes half
	// the propagator's energy to its neighbor.
	hopDecay = 0.5

	// energyFloor stops propagation from nodes too faint to matter.
	energyFloor = 0.01

	// touchLimit bounds reinforcement to the strongest results.
	touchLimit = 10

	// maxEdgeFanOut caps concurrent edge fetches during a hop.
	maxEdgeFanOut = 8

	// Composite score weights: similarity dominates, activation refines,
	// recency breaks ties.
	weightSimilarity = 0.6
	weightActivation = 0.3
	weightRecency    = 0.1
)

// ActivatedNode is one recall result: a node plus its composite score and
// the labels of the nodes that propagated energy to it.
type ActivatedNode struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Body        string   `json:"body,omitempty"`
	Category    string   `json:"category,omitempty"`
	Strength    float64  `json:"strength"`
	Score       float64  `json:"score"`
	Connections []string `json:"connections,omitempty"`
}

// Activate recalls memories associated with the query. It embeds the query,
// seeds the graph with the nearest nodes, spreads activation energy outward
// up to maxHops, and returns the topK highest-scoring nodes plus all core
// nodes. Successful recall reinforces what it returned: top results are
// touched and edges among them strengthened.
//
// topK < 0 selects the default budget; topK == 0 returns only core nodes.
// maxHops <= 0 selects the default hop limit.
func (e *Engine) Activate(ctx context.Context, query string, topK, maxHops int) ([]ActivatedNode, error) {
	if topK < 0 {
		topK = defaultTopK
	}
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}

	cores, err := e.DB.CoreNodes()
	if err != nil {
		return nil, err
	}

	if e.Embedder == nil {
		metrics.ActivationQueries.WithLabelValues("core_fallback").Inc()
		return coreOnly(cores), nil
	}

	qvec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		// Degrade to core-only recall rather than failing the request.
		e.log.Warnw("query embedding failed, returning core nodes only", "err", err)
		metrics.EmbeddingFailures.Inc()
		metrics.ActivationQueries.WithLabelValues("core_fallback").Inc()
		return coreOnly(cores), nil
	}

	seeds, err := e.DB.FindNearest(qvec, seedCount)
	if err != nil {
		return nil, err
	}

	// similarity holds each seed's cosine similarity to the query; energy is
	// the running maximum activation each node has received.
	similarity := make(map[string]float64)
	energy := make(map[string]float64)
	trail := make(map[string][]string)

	for _, m := range seeds {
		if m.Similarity <= 0 {
			continue
		}
		similarity[m.Node.ID] = m.Similarity
		energy[m.Node.ID] = m.Similarity
	}

	if len(energy) == 0 {
		metrics.ActivationQueries.WithLabelValues("core_fallback").Inc()
		return coreOnly(cores), nil
	}

	frontier := make([]string, 0, len(energy))
	for id := range energy {
		frontier = append(frontier, id)
	}
	sort.Strings(frontier)

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		frontier = e.spread(ctx, frontier, energy, trail)
	}

	results := e.score(similarity, energy, trail, cores, topK)

	metrics.ActivationQueries.WithLabelValues("ok").Inc()
	e.reinforce(results)
	return results, nil
}

// spread performs one hop: every frontier node pushes attenuated energy
// across its edges in both directions. Returns the next frontier, the set
// of nodes whose energy increased above the floor this hop.
func (e *Engine) spread(ctx context.Context, frontier []string, energy map[string]float64, trail map[string][]string) []string {
	type pulse struct {
		from   string
		to     string
		amount float64
	}

	var mu sync.Mutex
	var pulses []pulse

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxEdgeFanOut)

	for _, id := range frontier {
		id := id
		out := energy[id] * hopDecay
		if out < energyFloor {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outgoing, err := e.DB.EdgesFrom(id)
			if err != nil {
				e.log.Warnw("edge fetch failed during spread", "node", id, "err", err)
				return nil
			}
			incoming, err := e.DB.EdgesTo(id)
			if err != nil {
				e.log.Warnw("edge fetch failed during spread", "node", id, "err", err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for _, edge := range outgoing {
				pulses = append(pulses, pulse{from: id, to: edge.TargetID, amount: out * edge.Weight})
			}
			for _, edge := range incoming {
				pulses = append(pulses, pulse{from: id, to: edge.SourceID, amount: out * edge.Weight})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Only context cancellation reaches here; stop spreading.
		return nil
	}

	// Apply pulses deterministically regardless of fetch order.
	sort.SliceStable(pulses, func(i, j int) bool {
		if pulses[i].to != pulses[j].to {
			return pulses[i].to < pulses[j].to
		}
		return pulses[i].from < pulses[j].from
	})

	var next []string
	for _, p := range pulses {
		if p.amount < energyFloor {
			continue
		}
		if p.amount <= energy[p.to] {
			// Energy is a running maximum, not a sum; weaker pulses into an
			// already-hot node do not re-open it for propagation.
			continue
		}
		if energy[p.to] == 0 {
			next = append(next, p.to)
		}
		energy[p.to] = p.amount
		trail[p.to] = appendUnique(trail[p.to], p.from)
	}
	return next
}

// score converts accumulated energy into ranked results. Core nodes come
// first in creation order and never count against topK.
func (e *Engine) score(similarity, energy map[string]float64, trail map[string][]string, cores []store.Node, topK int) []ActivatedNode {
	ids := make([]string, 0, len(energy))
	for id := range energy {
		ids = append(ids, id)
	}
	nodes, err := e.DB.GetNodesByIDs(ids)
	if err != nil {
		e.log.Warnw("node fetch failed during scoring", "err", err)
		nodes = nil
	}

	byID := make(map[string]*store.Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	labels := func(nodeIDs []string) []string {
		var out []string
		for _, id := range nodeIDs {
			if n, ok := byID[id]; ok {
				out = append(out, n.Type+":"+n.Label)
			}
		}
		return out
	}

	now := time.Now().UnixMilli()
	var scored []ActivatedNode
	coreIDs := make(map[string]bool, len(cores))
	for _, c := range cores {
		coreIDs[c.ID] = true
	}

	for _, n := range nodes {
		if coreIDs[n.ID] {
			continue
		}
		scored = append(scored, activatedFrom(&n, compositeScore(similarity[n.ID], energy[n.ID], recency(&n, now)), labels(trail[n.ID])))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	results := make([]ActivatedNode, 0, len(cores)+len(scored))
	for _, c := range cores {
		c := c
		score := 1.0
		if en, ok := energy[c.ID]; ok {
			score = compositeScore(similarity[c.ID], en, recency(&c, now))
		}
		results = append(results, activatedFrom(&c, score, labels(trail[c.ID])))
	}
	return append(results, scored...)
}

// reinforce touches the strongest results and strengthens edges among the
// returned set. Failures are logged and counted, never surfaced: recall
// already succeeded from the caller's point of view.
func (e *Engine) reinforce(results []ActivatedNode) {
	ids := make([]string, 0, len(results))
	for i, r := range results {
		ids = append(ids, r.ID)
		if i >= touchLimit {
			continue
		}
		if err := e.DB.TouchNode(r.ID); err != nil {
			e.log.Warnw("touch failed after recall", "node", r.ID, "err", err)
			metrics.ReinforcementFailures.Inc()
		}
	}

	edges, err := e.DB.EdgesAmong(ids)
	if err != nil {
		e.log.Warnw("edge lookup failed after recall", "err", err)
		metrics.ReinforcementFailures.Inc()
		return
	}
	for _, edge := range edges {
		if err := e.DB.StrengthenEdge(edge.ID); err != nil {
			e.log.Warnw("strengthen failed after recall", "edge", edge.ID, "err", err)
			metrics.ReinforcementFailures.Inc()
		}
	}
}

func compositeScore(similarity, energy, recency float64) float64 {
	return weightSimilarity*similarity + weightActivation*energy + weightRecency*recency
}

// recency maps a node's last access time to (0, 1]: 1.0 right now, 0.5 after
// a day, tapering toward zero.
func recency(n *store.Node, nowMillis int64) float64 {
	last := n.CreatedAt
	if n.LastAccess != nil {
		last = *n.LastAccess
	}
	ageHours := float64(nowMillis-last) / float64(time.Hour.Milliseconds())
	if ageHours < 0 {
		ageHours = 0
	}
	return 1.0 / (1.0 + ageHours/24.0)
}

func activatedFrom(n *store.Node, score float64, connections []string) ActivatedNode {
	return ActivatedNode{
		ID:          n.ID,
		Type:        n.Type,
		Label:       n.Label,
		Body:        n.Body,
		Category:    n.Category,
		Strength:    n.Strength,
		Score:       score,
		Connections: connections,
	}
}

func coreOnly(cores []store.Node) []ActivatedNode {
	results := make([]ActivatedNode, 0, len(cores))
	for i := range cores {
		results = append(results, activatedFrom(&cores[i], 1.0, nil))
	}
	return results
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}
