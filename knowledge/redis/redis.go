// Package redis provides a Redis-backed core.KnowledgeStore suitable for
// deployments where agents' knowledge copies must survive process restarts
// or be shared across processes. Artifacts are stored as JSON values keyed
// by the composite (agent, type, id) with a per-agent set index for
// listings. Custom predicate functions cannot be evaluated server side, so
// List fetches the agent's artifacts and filters in process.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ekartashov/knowsync/core"
)

// Config configures a Store.
type Config struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// Store is a Redis-backed core.KnowledgeStore.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New connects to Redis and verifies the connection with a bounded ping.
func New(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client, e.g. one pointed at a test server.
func NewWithClient(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "knowsync:"
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Close closes the underlying client.
func (s *Store) Close() error { return s.client.Close() }

// Ping checks store health.
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Store) artifactKey(agentID string, key core.ArtifactKey) string {
	return fmt.Sprintf("%sartifact:%s:%s:%s", s.keyPrefix, agentID, key.Type, key.ID)
}

func (s *Store) indexKey(agentID string) string {
	return s.keyPrefix + "agent:" + agentID + ":artifacts"
}

// Store upserts the artifact and maintains the per-agent index atomically
// via a pipeline.
func (s *Store) Store(ctx context.Context, agentID string, artifact *core.Artifact) (*core.Artifact, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	stored := artifact.Clone()
	stored.AgentID = agentID
	stored.StoredAt = time.Now().UTC()

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshaling artifact %s: %w", stored.Key(), err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.artifactKey(agentID, stored.Key()), data, 0)
	pipe.SAdd(ctx, s.indexKey(agentID), stored.Key().String())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("storing artifact %s for agent %s: %w", stored.Key(), agentID, err)
	}
	return stored, nil
}

// Get returns the artifact or core.ErrNotFound.
func (s *Store) Get(ctx context.Context, agentID string, artifactType core.ArtifactType, artifactID string) (*core.Artifact, error) {
	key := core.ArtifactKey{Type: artifactType, ID: artifactID}
	data, err := s.client.Get(ctx, s.artifactKey(agentID, key)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching artifact %s for agent %s: %w", key, agentID, err)
	}
	var artifact core.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("unmarshaling artifact %s: %w", key, err)
	}
	return &artifact, nil
}

// List fetches the agent's indexed artifacts and applies the filter in
// process. Results are ordered by (type, id).
func (s *Store) List(ctx context.Context, agentID string, filter core.ListFilter) ([]*core.Artifact, error) {
	members, err := s.client.SMembers(ctx, s.indexKey(agentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing artifacts for agent %s: %w", agentID, err)
	}
	if len(members) == 0 {
		return []*core.Artifact{}, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		parts := strings.SplitN(m, ":", 2)
		if len(parts) != 2 {
			continue
		}
		keys = append(keys, s.artifactKey(agentID, core.ArtifactKey{Type: core.ArtifactType(parts[0]), ID: parts[1]}))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching artifacts for agent %s: %w", agentID, err)
	}

	artifacts := make([]*core.Artifact, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // index entry without a value; treat as absent
		}
		var artifact core.Artifact
		if err := json.Unmarshal([]byte(raw), &artifact); err != nil {
			return nil, fmt.Errorf("unmarshaling artifact for agent %s: %w", agentID, err)
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

// Delete removes the artifact and its index entry or returns
// core.ErrNotFound.
func (s *Store) Delete(ctx context.Context, agentID string, artifactType core.ArtifactType, artifactID string) error {
	key := core.ArtifactKey{Type: artifactType, ID: artifactID}
	deleted, err := s.client.Del(ctx, s.artifactKey(agentID, key)).Result()
	if err != nil {
		return fmt.Errorf("deleting artifact %s for agent %s: %w", key, agentID, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w", core.ErrNotFound)
	}
	if err := s.client.SRem(ctx, s.indexKey(agentID), key.String()).Err(); err != nil {
		return fmt.Errorf("removing index entry %s for agent %s: %w", key, agentID, err)
	}
	return nil
}

// Has reports whether the artifact exists.
func (s *Store) Has(ctx context.Context, agentID string, artifactType core.ArtifactType, artifactID string) (bool, error) {
	key := core.ArtifactKey{Type: artifactType, ID: artifactID}
	n, err := s.client.Exists(ctx, s.artifactKey(agentID, key)).Result()
	if err != nil {
		return false, fmt.Errorf("checking artifact %s for agent %s: %w", key, agentID, err)
	}
	return n > 0, nil
}
