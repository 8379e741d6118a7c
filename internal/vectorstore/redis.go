package vectorstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	vectorField   = "vector"
	distanceAlias = "vector_distance"
)

// Redis stores documents as hashes indexed by RediSearch.
// The client must be created with Protocol: 2 so FT.* replies are flat arrays.
type Redis struct {
	client *redis.Client
	schema Schema
}

func NewRedis(client *redis.Client, schema Schema) *Redis {
	if schema.Prefix == "" {
		schema.Prefix = schema.Name + ":"
	}
	return &Redis{client: client, schema: schema}
}

func (r *Redis) Schema() Schema { return r.schema }

func (r *Redis) key(id string) string { return r.schema.Prefix + id }

// Ping checks if Redis connection is healthy.
func (r *Redis) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) EnsureIndex(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	err := r.client.Do(ctx, createIndexArgs(r.schema)...).Err()
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "index already exists") {
		return fmt.Errorf("redis ft.create %s failed: %w", r.schema.Name, err)
	}
	return nil
}

func createIndexArgs(s Schema) []interface{} {
	args := []interface{}{"FT.CREATE", s.Name, "ON", "HASH", "PREFIX", 1, s.Prefix, "SCHEMA"}
	for _, f := range s.Tags {
		args = append(args, f, "TAG")
	}
	for _, f := range s.Text {
		args = append(args, f, "TEXT")
	}
	for _, f := range s.Numeric {
		args = append(args, f, "NUMERIC")
	}
	args = append(args, vectorField, "VECTOR", "FLAT", 6,
		"TYPE", "FLOAT32",
		"DIM", s.Dims,
		"DISTANCE_METRIC", "COSINE",
	)
	return args
}

func (r *Redis) Upsert(ctx context.Context, docs ...Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if err := validateDocs(r.schema, docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, d := range docs {
			key := r.key(d.ID)
			values := make(map[string]interface{}, len(d.Fields)+1)
			for k, v := range d.Fields {
				values[k] = v
			}
			values[vectorField] = encodeVector(d.Vector)

			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, values)
			if d.TTL > 0 {
				pipe.Expire(ctx, key, d.TTL)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert failed: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Clear drops the index together with its documents and recreates it.
func (r *Redis) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	err := r.client.Do(ctx, "FT.DROPINDEX", r.schema.Name, "DD").Err()
	if err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("redis ft.dropindex %s failed: %w", r.schema.Name, err)
	}
	return r.EnsureIndex(ctx)
}

func (r *Redis) Count(ctx context.Context) (int, error) {
	info, err := r.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.Docs, nil
}

func (r *Redis) Info(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, fmt.Errorf("context error: %w", err)
	}
	info := Info{Name: r.schema.Name}

	res, err := r.client.Do(ctx, "FT.INFO", r.schema.Name).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return info, nil
		}
		return info, fmt.Errorf("redis ft.info %s failed: %w", r.schema.Name, err)
	}

	info.Exists = true
	pairs, _ := res.([]interface{})
	for i := 0; i+1 < len(pairs); i += 2 {
		if name, _ := pairs[i].(string); name == "num_docs" {
			info.Docs = int(toFloat(pairs[i+1]))
		}
	}
	return info, nil
}

func (r *Redis) Query(ctx context.Context, vec []float32, k int, filter *Filter) ([]Match, error) {
	if err := checkQueryVector(r.schema, vec); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	return r.search(ctx, knnArgs(r.schema, vec, k, filter), false)
}

func (r *Redis) Range(ctx context.Context, vec []float32, maxDistance float64, k int, filter *Filter) ([]Match, error) {
	if err := checkQueryVector(r.schema, vec); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	return r.search(ctx, rangeArgs(r.schema, vec, maxDistance, k, filter), false)
}

func (r *Redis) Keyword(ctx context.Context, field, text string, k int) ([]Match, error) {
	if !r.schema.hasText(field) {
		return nil, fmt.Errorf("vectorstore: %q is not a text field of %s", field, r.schema.Name)
	}
	words := terms(text)
	if len(words) == 0 || k <= 0 {
		return nil, nil
	}
	return r.search(ctx, keywordArgs(r.schema, field, words, k), true)
}

func (r *Redis) search(ctx context.Context, args []interface{}, withScores bool) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	res, err := r.client.Do(ctx, args...).Result()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis ft.search %s failed: %w", r.schema.Name, err)
	}
	return parseSearchReply(res, r.schema.Prefix, withScores)
}

func knnArgs(s Schema, vec []float32, k int, filter *Filter) []interface{} {
	query := fmt.Sprintf("(%s)=>[KNN %d @%s $vec AS %s]", filterExpr(filter), k, vectorField, distanceAlias)
	return []interface{}{
		"FT.SEARCH", s.Name, query,
		"PARAMS", 2, "vec", encodeVector(vec),
		"SORTBY", distanceAlias, "ASC",
		"LIMIT", 0, k,
		"DIALECT", 2,
	}
}

func rangeArgs(s Schema, vec []float32, maxDistance float64, k int, filter *Filter) []interface{} {
	query := fmt.Sprintf("@%s:[VECTOR_RANGE $radius $vec]=>{$YIELD_DISTANCE_AS: %s}", vectorField, distanceAlias)
	if !filter.empty() {
		query = filterExpr(filter) + " " + query
	}
	return []interface{}{
		"FT.SEARCH", s.Name, query,
		"PARAMS", 4, "radius", strconv.FormatFloat(maxDistance, 'f', -1, 64), "vec", encodeVector(vec),
		"SORTBY", distanceAlias, "ASC",
		"LIMIT", 0, k,
		"DIALECT", 2,
	}
}

func keywordArgs(s Schema, field string, words []string, k int) []interface{} {
	query := fmt.Sprintf("@%s:(%s)", field, strings.Join(uniq(words), "|"))
	return []interface{}{
		"FT.SEARCH", s.Name, query,
		"SCORER", "BM25",
		"WITHSCORES",
		"LIMIT", 0, k,
		"DIALECT", 2,
	}
}

// filterExpr renders a RediSearch filter; "*" matches everything.
func filterExpr(f *Filter) string {
	if f.empty() {
		return "*"
	}
	var parts []string
	for _, field := range sortedKeys(f.Tags) {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", field, escapeTag(strings.ToLower(f.Tags[field]))))
	}
	for _, field := range sortedKeys(f.MinNumeric) {
		parts = append(parts, fmt.Sprintf("@%s:[%s +inf]", field,
			strconv.FormatFloat(f.MinNumeric[field], 'f', -1, 64)))
	}
	return strings.Join(parts, " ")
}

func escapeTag(v string) string {
	var b strings.Builder
	for _, r := range v {
		if strings.ContainsRune(",.<>{}[]\"':;!@#$%^&*()-+=~|/\\ ", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseSearchReply reads a RESP2 FT.SEARCH reply:
// [total, key, (score,) [field, value, ...], key, ...].
func parseSearchReply(res interface{}, prefix string, withScores bool) ([]Match, error) {
	arr, ok := res.([]interface{})
	if !ok || len(arr) == 0 {
		return nil, fmt.Errorf("vectorstore: unexpected ft.search reply %T", res)
	}

	step := 2
	if withScores {
		step = 3
	}

	out := make([]Match, 0, (len(arr)-1)/step)
	for i := 1; i+step-1 < len(arr); i += step {
		key, _ := arr[i].(string)
		m := Match{Document: Document{
			ID:     strings.TrimPrefix(key, prefix),
			Fields: map[string]string{},
		}}
		if withScores {
			m.Score = toFloat(arr[i+1])
		}

		kv, _ := arr[i+step-1].([]interface{})
		for j := 0; j+1 < len(kv); j += 2 {
			name, _ := kv[j].(string)
			val, _ := kv[j+1].(string)
			switch name {
			case vectorField:
				m.Vector = decodeVector(val)
			case distanceAlias:
				m.Distance, _ = strconv.ParseFloat(val, 64)
			default:
				m.Fields[name] = val
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// encodeVector packs float32s little-endian, the layout RediSearch expects.
func encodeVector(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}

func decodeVector(blob string) []float32 {
	if len(blob)%4 != 0 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(blob[4*i : 4*i+4])))
	}
	return out
}

func isUnknownIndex(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown index name") ||
		strings.Contains(msg, "no such index") ||
		strings.Contains(msg, "unknown index")
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}
