// Package conflict implements conflict detection and resolution between two
// agents' copies of the same artifact identity.
//
// The Detector indexes one side by artifact key and compares every
// same-keyed pair under a selectable algorithm (default content equality,
// checksum, semantic similarity, structural field diff). Detection has no
// side effects beyond conflict construction; pairs with identical version
// timestamps are never conflicting.
//
// The Resolver turns one detected conflict plus a resolution directive into
// a single artifact. It is pure: callers decide whether and where to persist
// the result.
//
// The semantic and checksum algorithms delegate to the core.SimilarityScorer
// and core.Checksummer collaborators; this package ships deterministic
// defaults (token-overlap scoring, SHA-256 checksums) that can be replaced
// with real similarity or hashing services.
package conflict
