// Package sqlite provides a GORM/SQLite backend implementing both
// core.AgentStore (the durable registry load/save collaborator) and
// core.KnowledgeStore (the durable artifact source/sink). Records carry the
// full JSON payload plus the indexed key columns needed for lookups, so the
// schema stays stable as payload shapes evolve. The driver is pure Go
// (glebarez/sqlite), keeping the package cgo-free.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ekartashov/knowsync/core"
)

type agentRecord struct {
	ID        string `gorm:"primaryKey"`
	Type      string `gorm:"index"`
	Payload   []byte
	UpdatedAt time.Time
}

func (agentRecord) TableName() string { return "agents" }

type artifactRecord struct {
	AgentID      string `gorm:"primaryKey"`
	ArtifactType string `gorm:"primaryKey"`
	ArtifactID   string `gorm:"primaryKey"`
	Timestamp    time.Time
	Payload      []byte
	StoredAt     time.Time
}

func (artifactRecord) TableName() string { return "artifacts" }

// DB wraps an open SQLite database and hands out the store views. Both views
// share the same connection pool and schema.
type DB struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the database at path and migrates the
// schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&agentRecord{}, &artifactRecord{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Agents returns the core.AgentStore view of the database.
func (d *DB) Agents() *AgentStore { return &AgentStore{db: d.db} }

// Knowledge returns the core.KnowledgeStore view of the database.
func (d *DB) Knowledge() *KnowledgeStore { return &KnowledgeStore{db: d.db} }

// AgentStore is the SQLite-backed core.AgentStore.
type AgentStore struct {
	db *gorm.DB
}

// Save upserts the agent record.
func (s *AgentStore) Save(ctx context.Context, agent *core.Agent) error {
	payload, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("marshaling agent %s: %w", agent.ID, err)
	}
	rec := agentRecord{ID: agent.ID, Type: agent.Type, Payload: payload, UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("saving agent %s: %w", agent.ID, err)
	}
	return nil
}

// Get returns the agent or core.ErrNotFound.
func (s *AgentStore) Get(ctx context.Context, agentID string) (*core.Agent, error) {
	var rec agentRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", agentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching agent %s: %w", agentID, err)
	}
	var agent core.Agent
	if err := json.Unmarshal(rec.Payload, &agent); err != nil {
		return nil, fmt.Errorf("unmarshaling agent %s: %w", agentID, err)
	}
	return &agent, nil
}

// Delete removes the agent or returns core.ErrNotFound.
func (s *AgentStore) Delete(ctx context.Context, agentID string) error {
	res := s.db.WithContext(ctx).Delete(&agentRecord{}, "id = ?", agentID)
	if res.Error != nil {
		return fmt.Errorf("deleting agent %s: %w", agentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w", core.ErrNotFound)
	}
	return nil
}

// List returns all agents ordered by id.
func (s *AgentStore) List(ctx context.Context) ([]*core.Agent, error) {
	var recs []agentRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	agents := make([]*core.Agent, 0, len(recs))
	for _, rec := range recs {
		var agent core.Agent
		if err := json.Unmarshal(rec.Payload, &agent); err != nil {
			return nil, fmt.Errorf("unmarshaling agent %s: %w", rec.ID, err)
		}
		agents = append(agents, &agent)
	}
	return agents, nil
}

// KnowledgeStore is the SQLite-backed core.KnowledgeStore.
type KnowledgeStore struct {
	db *gorm.DB
}

// Store upserts the artifact under its composite key, stamping owner and
// StoredAt. The upsert is a single statement, so two concurrent writes to
// the same key cannot interleave a partial row.
func (s *KnowledgeStore) Store(ctx context.Context, agentID string, artifact *core.Artifact) (*core.Artifact, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	stored := artifact.Clone()
	stored.AgentID = agentID
	stored.StoredAt = time.Now().UTC()

	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshaling artifact %s: %w", stored.Key(), err)
	}
	rec := artifactRecord{
		AgentID:      agentID,
		ArtifactType: string(stored.Type),
		ArtifactID:   stored.ID,
		Timestamp:    stored.Timestamp,
		Payload:      payload,
		StoredAt:     stored.StoredAt,
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "artifact_type"}, {Name: "artifact_id"}},
			UpdateAll: true,
		}).
		Create(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("storing artifact %s for agent %s: %w", stored.Key(), agentID, err)
	}
	return stored, nil
}

// Get returns the artifact or core.ErrNotFound.
func (s *KnowledgeStore) Get(ctx context.Context, agentID string, artifactType core.ArtifactType, artifactID string) (*core.Artifact, error) {
	var rec artifactRecord
	err := s.db.WithContext(ctx).
		First(&rec, "agent_id = ? AND artifact_type = ? AND artifact_id = ?", agentID, string(artifactType), artifactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching artifact %s:%s for agent %s: %w", artifactType, artifactID, agentID, err)
	}
	var artifact core.Artifact
	if err := json.Unmarshal(rec.Payload, &artifact); err != nil {
		return nil, fmt.Errorf("unmarshaling artifact %s:%s: %w", artifactType, artifactID, err)
	}
	return &artifact, nil
}

// List returns the agent's artifacts matching the filter, ordered by
// (type, id). Type and since restrictions are pushed into the query; content
// predicates are evaluated in process since they may carry custom functions.
func (s *KnowledgeStore) List(ctx context.Context, agentID string, filter core.ListFilter) ([]*core.Artifact, error) {
	q := s.db.WithContext(ctx).Where("agent_id = ?", agentID)
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		q = q.Where("artifact_type IN ?", types)
	}
	if filter.Since != nil {
		q = q.Where("timestamp > ?", *filter.Since)
	}
	var recs []artifactRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing artifacts for agent %s: %w", agentID, err)
	}
	artifacts := make([]*core.Artifact, 0, len(recs))
	for _, rec := range recs {
		var artifact core.Artifact
		if err := json.Unmarshal(rec.Payload, &artifact); err != nil {
			return nil, fmt.Errorf("unmarshaling artifact %s:%s: %w", rec.ArtifactType, rec.ArtifactID, err)
		}
		if filter.Match(&artifact) {
			a := artifact
			artifacts = append(artifacts, &a)
		}
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].Type != artifacts[j].Type {
			return artifacts[i].Type < artifacts[j].Type
		}
		return artifacts[i].ID < artifacts[j].ID
	})
	return artifacts, nil
}

// Delete removes the artifact or returns core.ErrNotFound.
func (s *KnowledgeStore) Delete(ctx context.Context, agentID string, artifactType core.ArtifactType, artifactID string) error {
	res := s.db.WithContext(ctx).
		Delete(&artifactRecord{}, "agent_id = ? AND artifact_type = ? AND artifact_id = ?", agentID, string(artifactType), artifactID)
	if res.Error != nil {
		return fmt.Errorf("deleting artifact %s:%s for agent %s: %w", artifactType, artifactID, agentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w", core.ErrNotFound)
	}
	return nil
}

// Has reports whether the artifact exists.
func (s *KnowledgeStore) Has(ctx context.Context, agentID string, artifactType core.ArtifactType, artifactID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&artifactRecord{}).
		Where("agent_id = ? AND artifact_type = ? AND artifact_id = ?", agentID, string(artifactType), artifactID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking artifact %s:%s for agent %s: %w", artifactType, artifactID, agentID, err)
	}
	return count > 0, nil
}
