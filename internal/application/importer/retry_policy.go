package importer

import (
	"strings"

	"github.com/google/uuid"
)

// RetryPolicy describes the commit fallback cascade: a chunk is first
// inserted in bulk, a rejected chunk is retried row by row, and a row whose
// slug collides is retried with a suffixed slug up to DisambiguateAttempts
// times.
type RetryPolicy struct {
	ChunkSize            int
	IsolateRows          bool
	DisambiguateAttempts int
	Suffix               func() string
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ChunkSize:            100,
		IsolateRows:          true,
		DisambiguateAttempts: 1,
		Suffix:               RandomSuffix,
	}
}

// RandomSuffix returns 6 lowercase hex characters.
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.ChunkSize <= 0 {
		p.ChunkSize = def.ChunkSize
	}
	if p.DisambiguateAttempts < 0 {
		p.DisambiguateAttempts = 0
	}
	if p.Suffix == nil {
		p.Suffix = def.Suffix
	}
	return p
}
