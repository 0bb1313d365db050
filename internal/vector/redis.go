package vector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	redisFieldVector = "vector"
	hnswEfConstruct  = 200
	hnswM            = 16
)

// RedisIndex stores vectors in Redis and searches them with a RediSearch
// HNSW index. Each vector lives in a hash keyed by prefix+id; the RediSearch
// index covers every hash under the prefix.
type RedisIndex struct {
	client     *redis.Client
	indexName  string
	keyPrefix  string
	dimensions int
}

// RedisConfig holds connection and index settings for RedisIndex.
type RedisConfig struct {
	Addr       string
	Password   string
	IndexName  string
	Dimensions int
}

// NewRedisIndex connects to Redis and ensures the vector index exists.
func NewRedisIndex(ctx context.Context, cfg RedisConfig) (*RedisIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	idx := &RedisIndex{
		client:     client,
		indexName:  cfg.IndexName,
		keyPrefix:  cfg.IndexName + ":",
		dimensions: cfg.Dimensions,
	}
	if err := idx.ensureIndex(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

func (r *RedisIndex) ensureIndex(ctx context.Context) error {
	if _, err := r.client.Do(ctx, "FT.INFO", r.indexName).Result(); err == nil {
		return nil
	}
	_, err := r.client.Do(ctx, "FT.CREATE", r.indexName,
		"ON", "HASH",
		"PREFIX", "1", r.keyPrefix,
		"SCHEMA",
		redisFieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(r.dimensions),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(hnswEfConstruct),
		"M", strconv.Itoa(hnswM),
	).Result()
	if err != nil {
		return fmt.Errorf("create redis vector index: %w", err)
	}
	return nil
}

// Upsert writes vectors to their hashes in a single pipeline. Existing IDs
// are overwritten.
func (r *RedisIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	pipe := r.client.Pipeline()
	for i, id := range ids {
		if len(vectors[i]) != r.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), r.dimensions)
		}
		pipe.HSet(ctx, r.keyPrefix+id, redisFieldVector, Float32SliceToBytes(vectors[i]))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// Search runs a KNN query against the RediSearch index. Scores are cosine
// similarity, derived from the cosine distance RediSearch reports.
func (r *RedisIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != r.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), r.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @vector $query_vector AS score]", k)
	raw, err := r.client.Do(ctx, "FT.SEARCH", r.indexName, queryStr,
		"PARAMS", "2", "query_vector", Float32SliceToBytes(query),
		"RETURN", "1", "score",
		"SORTBY", "score",
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return r.parseSearchResults(raw)
}

// parseSearchResults handles both the RESP2 array reply (count followed by
// id/fields pairs) and the RESP3 map reply from FT.SEARCH.
func (r *RedisIndex) parseSearchResults(raw interface{}) ([]*Result, error) {
	switch reply := raw.(type) {
	case []interface{}:
		var results []*Result
		for i := 1; i+1 < len(reply); i += 2 {
			key, ok := reply[i].(string)
			if !ok {
				continue
			}
			fields, ok := reply[i+1].([]interface{})
			if !ok {
				continue
			}
			res := &Result{ID: r.stripPrefix(key)}
			for j := 0; j+1 < len(fields); j += 2 {
				if name, ok := fields[j].(string); ok && name == "score" {
					res.Score = distanceToSimilarity(fields[j+1])
				}
			}
			results = append(results, res)
		}
		return results, nil
	case map[interface{}]interface{}:
		rows, ok := reply["results"].([]interface{})
		if !ok {
			return nil, nil
		}
		var results []*Result
		for _, row := range rows {
			doc, ok := row.(map[interface{}]interface{})
			if !ok {
				continue
			}
			key, _ := doc["id"].(string)
			res := &Result{ID: r.stripPrefix(key)}
			if attrs, ok := doc["extra_attributes"].(map[interface{}]interface{}); ok {
				res.Score = distanceToSimilarity(attrs["score"])
			}
			results = append(results, res)
		}
		return results, nil
	default:
		return nil, fmt.Errorf("unexpected search reply type %T", raw)
	}
}

func (r *RedisIndex) stripPrefix(key string) string {
	if len(key) > len(r.keyPrefix) && key[:len(r.keyPrefix)] == r.keyPrefix {
		return key[len(r.keyPrefix):]
	}
	return key
}

func distanceToSimilarity(v interface{}) float64 {
	var dist float64
	switch val := v.(type) {
	case string:
		dist, _ = strconv.ParseFloat(val, 64)
	case float64:
		dist = val
	}
	return 1.0 - dist
}

// Remove deletes vectors by ID. Unknown IDs are ignored.
func (r *RedisIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.keyPrefix + id
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}

// Reset drops the index together with all indexed hashes and recreates it.
func (r *RedisIndex) Reset(ctx context.Context) error {
	if _, err := r.client.Do(ctx, "FT.DROPINDEX", r.indexName, "DD").Result(); err != nil {
		return fmt.Errorf("drop redis vector index: %w", err)
	}
	return r.ensureIndex(ctx)
}

// Size reports the number of indexed vectors from FT.INFO.
func (r *RedisIndex) Size(ctx context.Context) (int, error) {
	raw, err := r.client.Do(ctx, "FT.INFO", r.indexName).Result()
	if err != nil {
		return 0, fmt.Errorf("index info: %w", err)
	}
	switch info := raw.(type) {
	case []interface{}:
		for i := 0; i+1 < len(info); i += 2 {
			if name, ok := info[i].(string); ok && name == "num_docs" {
				return parseCount(info[i+1])
			}
		}
	case map[interface{}]interface{}:
		if v, ok := info["num_docs"]; ok {
			return parseCount(v)
		}
	}
	return 0, fmt.Errorf("num_docs not found in index info")
}

func parseCount(v interface{}) (int, error) {
	switch val := v.(type) {
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("parse num_docs: %w", err)
		}
		return n, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	default:
		return 0, fmt.Errorf("unexpected num_docs type %T", v)
	}
}

// Save is a no-op; Redis handles its own persistence.
func (r *RedisIndex) Save(path string) error {
	return nil
}

// Load is a no-op; Redis handles its own persistence.
func (r *RedisIndex) Load(path string) error {
	return nil
}

// Close closes the Redis connection.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}
