package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/sirupsen/logrus"
)

// QdrantRetriever stores tenant knowledge in a single Qdrant collection,
// partitioned by a tenant_id payload filter on every query.
type QdrantRetriever struct {
	client         *qdrant.Client
	collection     string
	embedder       Embedder
	scoreThreshold float32
	searchTimeout  time.Duration
}

type QdrantConfig struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	Collection     string
	ScoreThreshold float32
	SearchTimeout  time.Duration
}

func NewQdrantRetriever(ctx context.Context, cfg QdrantConfig, embedder Embedder) (*QdrantRetriever, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	r := &QdrantRetriever{
		client:         client,
		collection:     cfg.Collection,
		embedder:       embedder,
		scoreThreshold: cfg.ScoreThreshold,
		searchTimeout:  cfg.SearchTimeout,
	}

	if err := r.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *QdrantRetriever) ensureCollection(ctx context.Context) error {
	exists, err := r.client.CollectionExists(ctx, r.collection)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", r.collection, err)
	}
	if exists {
		return nil
	}

	err = r.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(r.embedder.Dimensions()),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", r.collection, err)
	}

	logrus.Infof("[KNOWLEDGE] Created Qdrant collection %q (dims=%d)", r.collection, r.embedder.Dimensions())
	return nil
}

func (r *QdrantRetriever) Search(ctx context.Context, tenantID, query string, topK int) ([]SearchResult, error) {
	if r.searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.searchTimeout)
		defer cancel()
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if topK <= 0 {
		topK = 5
	}

	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		ScoreThreshold: qdrant.PtrOf(r.scoreThreshold),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("tenant_id", tenantID),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, SearchResult{
			Document: Document{
				ID:       p.GetId().GetUuid(),
				TenantID: payloadString(p.GetPayload(), "tenant_id"),
				Title:    payloadString(p.GetPayload(), "title"),
				Text:     payloadString(p.GetPayload(), "text"),
				Source:   payloadString(p.GetPayload(), "source"),
			},
			Score: p.GetScore(),
		})
	}
	return results, nil
}

func (r *QdrantRetriever) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.New().String()
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"tenant_id": d.TenantID,
				"title":     d.Title,
				"text":      d.Text,
				"source":    d.Source,
			}),
		}
	}

	_, err = r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}

	logrus.Debugf("[KNOWLEDGE] Upserted %d document(s) for tenant %s", len(docs), docs[0].TenantID)
	return nil
}

func (r *QdrantRetriever) DeleteTenant(ctx context.Context, tenantID string) error {
	_, err := r.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: r.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("tenant_id", tenantID),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete tenant %s: %w", tenantID, err)
	}
	return nil
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}
