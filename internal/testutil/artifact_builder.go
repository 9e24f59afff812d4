package testutil

import (
	"time"

	"github.com/ekartashov/knowsync/core"
)

// ArtifactBuilder provides a fluent helper for constructing artifacts in
// tests. Example:
//
//	a := NewArtifactBuilder("d1").Type(core.ArtifactDecision).Field("title", "use Go").At(t0).Build()
type ArtifactBuilder struct {
	artifact core.Artifact
}

// NewArtifactBuilder creates a builder for a generic artifact with the
// given id, an empty content map and the current timestamp.
func NewArtifactBuilder(id string) *ArtifactBuilder {
	return &ArtifactBuilder{artifact: core.Artifact{
		ID:        id,
		Type:      core.ArtifactGeneric,
		Content:   map[string]any{},
		Timestamp: time.Now().UTC(),
	}}
}

// Type sets the artifact type (chainable).
func (b *ArtifactBuilder) Type(t core.ArtifactType) *ArtifactBuilder { b.artifact.Type = t; return b }

// Field sets one content field (chainable).
func (b *ArtifactBuilder) Field(key string, value any) *ArtifactBuilder {
	b.artifact.Content[key] = value
	return b
}

// Content replaces the whole content map (chainable).
func (b *ArtifactBuilder) Content(content map[string]any) *ArtifactBuilder {
	b.artifact.Content = content
	return b
}

// At sets the version timestamp (chainable).
func (b *ArtifactBuilder) At(t time.Time) *ArtifactBuilder { b.artifact.Timestamp = t; return b }

// Checksum sets a producer-supplied checksum (chainable).
func (b *ArtifactBuilder) Checksum(sum string) *ArtifactBuilder { b.artifact.Checksum = sum; return b }

// Build returns the constructed artifact.
func (b *ArtifactBuilder) Build() *core.Artifact { return b.artifact.Clone() }
