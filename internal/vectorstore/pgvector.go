package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// vectorDocument is one row of the shared documents table; Collection
// separates indexes.
type vectorDocument struct {
	Collection string            `gorm:"primaryKey;type:text"`
	ID         string            `gorm:"primaryKey;type:text"`
	Fields     datatypes.JSONMap `gorm:"type:jsonb"`
	Embedding  pgvector.Vector   `gorm:"type:vector"`
	ExpiresAt  *time.Time        `gorm:"index"`
	CreatedAt  time.Time         `gorm:"autoCreateTime"`
}

func (vectorDocument) TableName() string {
	return "vector_documents"
}

type scoredDocument struct {
	vectorDocument
	Distance float64
	Score    float64
}

// PGVector stores documents in Postgres using the pgvector extension.
type PGVector struct {
	db     *gorm.DB
	schema Schema
}

func NewPGVector(db *gorm.DB, schema Schema) *PGVector {
	return &PGVector{db: db, schema: schema}
}

func (p *PGVector) Schema() Schema { return p.schema }

// EnsureIndex enables the extension and migrates the shared table.
func (p *PGVector) EnsureIndex(ctx context.Context) error {
	db := p.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("pgvector: create extension: %w", err)
	}
	if err := db.AutoMigrate(&vectorDocument{}); err != nil {
		return fmt.Errorf("pgvector: migrate: %w", err)
	}
	return nil
}

func (p *PGVector) Upsert(ctx context.Context, docs ...Document) error {
	if err := validateDocs(p.schema, docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]vectorDocument, len(docs))
	for i, d := range docs {
		fields := make(datatypes.JSONMap, len(d.Fields))
		for k, v := range d.Fields {
			fields[k] = v
		}
		rows[i] = vectorDocument{
			Collection: p.schema.Name,
			ID:         d.ID,
			Fields:     fields,
			Embedding:  pgvector.NewVector(d.Vector),
		}
		if d.TTL > 0 {
			exp := now.Add(d.TTL)
			rows[i].ExpiresAt = &exp
		}
	}

	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fields", "embedding", "expires_at", "created_at"}),
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("pgvector: upsert: %w", err)
	}
	return nil
}

func (p *PGVector) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	err := p.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", p.schema.Name, ids).
		Delete(&vectorDocument{}).Error
	if err != nil {
		return fmt.Errorf("pgvector: delete: %w", err)
	}
	return nil
}

func (p *PGVector) Clear(ctx context.Context) error {
	err := p.db.WithContext(ctx).
		Where("collection = ?", p.schema.Name).
		Delete(&vectorDocument{}).Error
	if err != nil {
		return fmt.Errorf("pgvector: clear: %w", err)
	}
	return nil
}

func (p *PGVector) Count(ctx context.Context) (int, error) {
	var n int64
	err := p.live(ctx).Model(&vectorDocument{}).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("pgvector: count: %w", err)
	}
	return int(n), nil
}

func (p *PGVector) Info(ctx context.Context) (Info, error) {
	info := Info{Name: p.schema.Name}
	if !p.db.WithContext(ctx).Migrator().HasTable(&vectorDocument{}) {
		return info, nil
	}
	n, err := p.Count(ctx)
	if err != nil {
		return info, err
	}
	info.Exists = true
	info.Docs = n
	return info, nil
}

func (p *PGVector) Query(ctx context.Context, vec []float32, k int, filter *Filter) ([]Match, error) {
	return p.nearest(ctx, vec, -1, k, filter)
}

func (p *PGVector) Range(ctx context.Context, vec []float32, maxDistance float64, k int, filter *Filter) ([]Match, error) {
	return p.nearest(ctx, vec, maxDistance, k, filter)
}

// nearest orders by cosine distance; maxDistance < 0 disables the bound.
func (p *PGVector) nearest(ctx context.Context, vec []float32, maxDistance float64, k int, filter *Filter) ([]Match, error) {
	if err := checkQueryVector(p.schema, vec); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	queryVector := pgvector.NewVector(vec)
	q := p.live(ctx).
		Model(&vectorDocument{}).
		Select("vector_documents.*, embedding <=> ? AS distance", queryVector)
	q = applyFilter(q, filter)
	if maxDistance >= 0 {
		q = q.Where("embedding <=> ? <= ?", queryVector, maxDistance)
	}

	var rows []scoredDocument
	if err := q.Order("distance").Limit(k).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("pgvector: query: %w", err)
	}
	return toMatches(rows), nil
}

func (p *PGVector) Keyword(ctx context.Context, field, text string, k int) ([]Match, error) {
	words := terms(text)
	if len(words) == 0 || k <= 0 {
		return nil, nil
	}
	// OR the words like the other backends do
	tsQuery := strings.Join(uniq(words), " | ")

	var rows []scoredDocument
	err := p.live(ctx).
		Model(&vectorDocument{}).
		Select("vector_documents.*, ts_rank(to_tsvector('english', fields->>?), to_tsquery('english', ?)) AS score", field, tsQuery).
		Where("to_tsvector('english', fields->>?) @@ to_tsquery('english', ?)", field, tsQuery).
		Order("score DESC").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector: keyword: %w", err)
	}
	return toMatches(rows), nil
}

// live scopes to this collection and hides expired rows.
func (p *PGVector) live(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx).
		Where("collection = ?", p.schema.Name).
		Where("expires_at IS NULL OR expires_at > ?", time.Now())
}

func applyFilter(q *gorm.DB, f *Filter) *gorm.DB {
	if f.empty() {
		return q
	}
	for _, field := range sortedKeys(f.Tags) {
		q = q.Where("lower(fields->>?) = lower(?)", field, strings.TrimSpace(f.Tags[field]))
	}
	for _, field := range sortedKeys(f.MinNumeric) {
		q = q.Where("(fields->>?)::float8 >= ?", field, f.MinNumeric[field])
	}
	return q
}

func toMatches(rows []scoredDocument) []Match {
	out := make([]Match, len(rows))
	for i, r := range rows {
		fields := make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			fields[k] = fmt.Sprint(v)
		}
		out[i] = Match{
			Document: Document{
				ID:     r.ID,
				Fields: fields,
				Vector: r.Embedding.Slice(),
			},
			Distance: r.Distance,
			Score:    r.Score,
		}
	}
	return out
}
