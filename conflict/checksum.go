package conflict

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ekartashov/knowsync/core"
)

// SHA256Checksummer computes a SHA-256 checksum over the artifact's
// canonically serialized content. It is the default core.Checksummer; swap
// in a different implementation when artifacts must match checksums produced
// by an external system.
type SHA256Checksummer struct{}

// Checksum returns the hex-encoded SHA-256 of the content's canonical JSON.
func (SHA256Checksummer) Checksum(artifact *core.Artifact) (string, error) {
	data, err := json.Marshal(artifact.Content)
	if err != nil {
		return "", fmt.Errorf("serializing content of %s: %w", artifact.Key(), err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
