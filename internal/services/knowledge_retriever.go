package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/bloomie-backend/internal/knowledge"
	"github.com/yungbote/bloomie-backend/internal/platform/logger"
	"github.com/yungbote/bloomie-backend/internal/platform/qdrant"
)

const (
	articleNamespace     = "articles"
	articleEmbedBatch    = 64
	defaultSearchResults = 5
	maxSearchResults     = 20
	perTraitPassages     = 2
	agePassages          = 2
)

// Embedder turns text into vectors, one per input and in input order.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type KnowledgeHit struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Traits   []string `json:"traits,omitempty"`
	Content  string   `json:"content"`
	Score    float64  `json:"score"`
}

type KnowledgeStatus struct {
	Enabled   bool `json:"enabled"`
	Documents int  `json:"documents"`
	Available int  `json:"available"`
}

type KnowledgeLoadResult struct {
	Documents int  `json:"documents_loaded"`
	Reloaded  bool `json:"force_reload"`
	Skipped   bool `json:"skipped"`
}

// KnowledgeRetriever indexes the reference articles in a vector store and
// retrieves passages for prompts and for direct search. Without a store it
// is disabled: Search and Load fail with ErrKnowledgeUnavailable and
// ContextFor returns nothing.
type KnowledgeRetriever interface {
	Enabled() bool
	Status(ctx context.Context) (KnowledgeStatus, error)
	Search(ctx context.Context, query, category string, k int) ([]KnowledgeHit, error)
	// Load indexes every article. Unless force is set it is a no-op when the index is already populated.
	Load(ctx context.Context, force bool) (KnowledgeLoadResult, error)
	// ContextFor returns passages for the traits and age, best first, without duplicates.
	ContextFor(ctx context.Context, traits []string, ageMonths int) ([]KnowledgeHit, error)
}

type knowledgeRetriever struct {
	log      *logger.Logger
	kb       *knowledge.Base
	embedder Embedder
	store    qdrant.VectorStore
	minScore float64

	loadMu sync.Mutex
}

func NewKnowledgeRetriever(baseLog *logger.Logger, kb *knowledge.Base, embedder Embedder, store qdrant.VectorStore, minScore float64) KnowledgeRetriever {
	return &knowledgeRetriever{
		log:      baseLog.With("service", "KnowledgeRetriever"),
		kb:       kb,
		embedder: embedder,
		store:    store,
		minScore: minScore,
	}
}

func (r *knowledgeRetriever) Enabled() bool {
	return r != nil && r.store != nil && r.embedder != nil
}

func (r *knowledgeRetriever) Status(ctx context.Context) (KnowledgeStatus, error) {
	st := KnowledgeStatus{Enabled: r.Enabled(), Available: len(r.kb.Articles)}
	if !st.Enabled {
		return st, nil
	}
	n, err := r.store.Count(ctx, articleNamespace)
	if err != nil {
		return st, fmt.Errorf("count indexed articles: %w", err)
	}
	st.Documents = n
	return st, nil
}

func (r *knowledgeRetriever) Search(ctx context.Context, query, category string, k int) ([]KnowledgeHit, error) {
	if !r.Enabled() {
		return nil, ErrKnowledgeUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationf("empty query")
	}
	if k <= 0 {
		k = defaultSearchResults
	}
	if k > maxSearchResults {
		k = maxSearchResults
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	var match map[string]string
	if c := strings.TrimSpace(category); c != "" {
		match = map[string]string{"category": c}
	}
	matches, err := r.store.Search(ctx, articleNamespace, vecs[0], k, match)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	out := make([]KnowledgeHit, 0, len(matches))
	for _, m := range matches {
		out = append(out, hitFromMatch(m))
	}
	return out, nil
}

func (r *knowledgeRetriever) Load(ctx context.Context, force bool) (KnowledgeLoadResult, error) {
	if !r.Enabled() {
		return KnowledgeLoadResult{}, ErrKnowledgeUnavailable
	}
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if !force {
		n, err := r.store.Count(ctx, articleNamespace)
		if err != nil {
			return KnowledgeLoadResult{}, fmt.Errorf("count indexed articles: %w", err)
		}
		if n > 0 {
			return KnowledgeLoadResult{Documents: n, Skipped: true}, nil
		}
	} else if err := r.store.DeleteNamespace(ctx, articleNamespace); err != nil {
		return KnowledgeLoadResult{}, fmt.Errorf("clear article index: %w", err)
	}

	articles := r.kb.Articles
	for start := 0; start < len(articles); start += articleEmbedBatch {
		end := min(start+articleEmbedBatch, len(articles))
		batch := articles[start:end]
		texts := make([]string, len(batch))
		for i, a := range batch {
			texts[i] = a.Title + "\n" + a.Content
		}
		vecs, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return KnowledgeLoadResult{}, fmt.Errorf("embed articles: %w", err)
		}
		if len(vecs) != len(batch) {
			return KnowledgeLoadResult{}, fmt.Errorf("embed articles: want %d vectors got %d", len(batch), len(vecs))
		}
		points := make([]qdrant.Point, len(batch))
		for i, a := range batch {
			points[i] = qdrant.Point{
				ID:     a.ID,
				Vector: vecs[i],
				Payload: map[string]any{
					"title":    a.Title,
					"category": a.Category,
					"traits":   a.Traits,
					"content":  a.Content,
				},
			}
		}
		if err := r.store.Upsert(ctx, articleNamespace, points); err != nil {
			return KnowledgeLoadResult{}, fmt.Errorf("index articles: %w", err)
		}
	}
	r.log.Info("knowledge articles indexed", "documents", len(articles), "force", force)
	return KnowledgeLoadResult{Documents: len(articles), Reloaded: force}, nil
}

func (r *knowledgeRetriever) ContextFor(ctx context.Context, traits []string, ageMonths int) ([]KnowledgeHit, error) {
	if !r.Enabled() || (len(traits) == 0 && ageMonths < 0) {
		return nil, nil
	}
	type query struct {
		text  string
		match map[string]string
		k     int
	}
	var queries []query
	for _, t := range traits {
		text := t + " development activities"
		if ageMonths >= 0 {
			text = fmt.Sprintf("%s for a %d month old child", text, ageMonths)
		}
		queries = append(queries, query{text: text, match: map[string]string{"traits": t}, k: perTraitPassages})
	}
	if ageMonths >= 0 {
		queries = append(queries, query{text: fmt.Sprintf("developmental activities and care for a %d month old child", ageMonths), k: agePassages})
	}

	texts := make([]string, len(queries))
	for i, q := range queries {
		texts[i] = q.text
	}
	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed context queries: %w", err)
	}
	if len(vecs) != len(queries) {
		return nil, fmt.Errorf("embed context queries: want %d vectors got %d", len(queries), len(vecs))
	}

	results := make([][]qdrant.Match, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, q := range queries {
		g.Go(func() error {
			m, err := r.store.Search(gctx, articleNamespace, vecs[i], q.k, q.match)
			if err != nil {
				return fmt.Errorf("search %q: %w", q.text, err)
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := map[string]KnowledgeHit{}
	for _, ms := range results {
		for _, m := range ms {
			if m.Score < r.minScore {
				continue
			}
			if prev, ok := best[m.ID]; ok && prev.Score >= m.Score {
				continue
			}
			best[m.ID] = hitFromMatch(m)
		}
	}
	out := make([]KnowledgeHit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func hitFromMatch(m qdrant.Match) KnowledgeHit {
	h := KnowledgeHit{ID: m.ID, Score: m.Score}
	h.Title, _ = m.Payload["title"].(string)
	h.Category, _ = m.Payload["category"].(string)
	h.Content, _ = m.Payload["content"].(string)
	switch traits := m.Payload["traits"].(type) {
	case []string:
		h.Traits = append(h.Traits, traits...)
	case []any:
		for _, t := range traits {
			if s, ok := t.(string); ok {
				h.Traits = append(h.Traits, s)
			}
		}
	}
	return h
}

// referenceDigest renders retrieved passages for a prompt section.
func referenceDigest(hits []KnowledgeHit, maxChars int) string {
	var b strings.Builder
	for _, h := range hits {
		content := strings.TrimSpace(h.Content)
		if maxChars > 0 && len(content) > maxChars {
			content = strings.TrimSpace(content[:maxChars]) + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", h.Title, content)
	}
	return b.String()
}
