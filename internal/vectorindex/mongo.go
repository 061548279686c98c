package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledge-engine/internal/config"
	"knowledge-engine/internal/logger"
	"knowledge-engine/models"
)

// Store is the vector index surface the retrieval and memory engines use.
// The Mongo-backed Index is the production implementation; tests swap in
// in-memory fakes.
type Store interface {
	Add(ctx context.Context, chunk models.Chunk) error
	AddBatch(ctx context.Context, chunks []models.Chunk) (int, error)
	Query(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error)
	AllChunks(ctx context.Context) ([]models.Chunk, error)
	DeleteByDocumentID(ctx context.Context, documentID string) (int64, error)
	DeleteChunks(ctx context.Context, chunkIDs []string) (int64, error)
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*models.IndexStats, error)
}

// Index stores embedded chunks in a MongoDB collection and answers
// nearest-neighbor queries via Atlas $vectorSearch. The search index itself
// is managed in Atlas; this code only assumes its name.
type Index struct {
	col       *mongo.Collection
	indexName string
}

func NewIndex(client *mongo.Client, cfg *config.Config) *Index {
	return &Index{
		col:       client.Database(cfg.DBName).Collection(cfg.ChunkCollection),
		indexName: cfg.VectorIndexName,
	}
}

// Add upserts a single chunk keyed by chunk_id.
func (ix *Index) Add(ctx context.Context, chunk models.Chunk) error {
	_, err := ix.col.UpdateOne(ctx,
		bson.M{"chunk_id": chunk.ChunkID},
		bson.M{"$set": chunk},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert chunk %s: %v", models.ErrIndexUnavailable, chunk.ChunkID, err)
	}
	return nil
}

// AddBatch upserts chunks in one unordered bulk write and returns how many
// made it in. A partial bulk failure still reports the successful writes.
func (ix *Index) AddBatch(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	batch := make([]mongo.WriteModel, 0, len(chunks))
	for _, ch := range chunks {
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"chunk_id": ch.ChunkID}).
			SetUpdate(bson.M{"$set": ch}).
			SetUpsert(true))
	}

	res, err := ix.col.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	if err != nil {
		written := 0
		if res != nil {
			written = int(res.UpsertedCount + res.ModifiedCount + res.MatchedCount)
		}
		return written, fmt.Errorf("%w: bulk upsert: %v", models.ErrIndexUnavailable, err)
	}
	return len(chunks), nil
}

// Query runs $vectorSearch and maps the Atlas similarity score back to the
// distance convention the ranking layer expects (distance = 1 - score).
func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	numCandidates := k * 10
	if numCandidates < 100 {
		numCandidates = 100
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         ix.indexName,
			"path":          "vector",
			"queryVector":   vector,
			"numCandidates": numCandidates,
			"limit":         k,
		}}},
		{{Key: "$project", Value: bson.M{
			"chunk_id": 1,
			"text":     1,
			"metadata": 1,
			"score":    bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cursor, err := ix.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", models.ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ChunkID  string               `bson:"chunk_id"`
		Text     string               `bson:"text"`
		Metadata models.ChunkMetadata `bson:"metadata"`
		Score    float64              `bson:"score"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode search results: %v", models.ErrIndexUnavailable, err)
	}

	results := make([]models.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, models.SearchResult{
			ChunkID:         row.ChunkID,
			Content:         row.Text,
			Metadata:        row.Metadata,
			Distance:        1 - row.Score,
			SimilarityScore: row.Score,
		})
	}
	return results, nil
}

// AllChunks returns every stored chunk without its vector. Used by the
// memory engine for change detection, cleanup and consolidation scans.
func (ix *Index) AllChunks(ctx context.Context) ([]models.Chunk, error) {
	opts := options.Find().SetProjection(bson.M{"vector": 0})
	cursor, err := ix.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: scan chunks: %v", models.ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	var chunks []models.Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("%w: decode chunks: %v", models.ErrIndexUnavailable, err)
	}
	return chunks, nil
}

// DeleteByDocumentID removes every chunk belonging to a document.
func (ix *Index) DeleteByDocumentID(ctx context.Context, documentID string) (int64, error) {
	res, err := ix.col.DeleteMany(ctx, bson.M{"metadata.document_id": documentID})
	if err != nil {
		return 0, fmt.Errorf("%w: delete document %s: %v", models.ErrIndexUnavailable, documentID, err)
	}
	return res.DeletedCount, nil
}

// DeleteChunks removes chunks by id.
func (ix *Index) DeleteChunks(ctx context.Context, chunkIDs []string) (int64, error) {
	if len(chunkIDs) == 0 {
		return 0, nil
	}
	res, err := ix.col.DeleteMany(ctx, bson.M{"chunk_id": bson.M{"$in": chunkIDs}})
	if err != nil {
		return 0, fmt.Errorf("%w: delete chunks: %v", models.ErrIndexUnavailable, err)
	}
	return res.DeletedCount, nil
}

func (ix *Index) Count(ctx context.Context) (int64, error) {
	n, err := ix.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("%w: count chunks: %v", models.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Stats aggregates collection-level facts for the stats endpoint.
func (ix *Index) Stats(ctx context.Context) (*models.IndexStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	total, err := ix.Count(ctx)
	if err != nil {
		return nil, err
	}

	topics, err := ix.col.Distinct(ctx, "metadata.topic", bson.M{"metadata.topic": bson.M{"$ne": ""}})
	if err != nil {
		return nil, fmt.Errorf("%w: distinct topics: %v", models.ErrIndexUnavailable, err)
	}
	types, err := ix.col.Distinct(ctx, "metadata.type", bson.M{"metadata.type": bson.M{"$ne": ""}})
	if err != nil {
		return nil, fmt.Errorf("%w: distinct types: %v", models.ErrIndexUnavailable, err)
	}
	authors, err := ix.col.Distinct(ctx, "metadata.author", bson.M{"metadata.author": bson.M{"$ne": ""}})
	if err != nil {
		return nil, fmt.Errorf("%w: distinct authors: %v", models.ErrIndexUnavailable, err)
	}

	stats := &models.IndexStats{
		TotalChunks:   int(total),
		UniqueTopics:  len(topics),
		UniqueAuthors: len(authors),
	}
	for _, t := range types {
		if s, ok := t.(string); ok {
			stats.DocumentTypes = append(stats.DocumentTypes, s)
		}
	}
	sort.Strings(stats.DocumentTypes)

	for i, t := range topics {
		if i >= 10 {
			break
		}
		if s, ok := t.(string); ok {
			stats.SampleTopics = append(stats.SampleTopics, s)
		}
	}

	logger.Debug("Index stats computed", "total_chunks", total, "topics", len(topics))
	return stats, nil
}
