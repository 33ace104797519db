package guidance

import (
	"context"
	"fmt"
	"time"

	"iso-risk-agent-be/internal/entity"
	"iso-risk-agent-be/internal/repository/contract"
	"iso-risk-agent-be/pkg/embedding"
)

// Progress is called once per catalog control; err is nil on success.
type Progress func(c Control, err error)

// Index embeds every catalog control into the vector index as kind guidance,
// keyed by its Annex reference so re-running it overwrites in place.
// It returns the number indexed and the first error seen.
func Index(ctx context.Context, c *Catalog, embedder embedding.EmbeddingProvider, vectors contract.VectorIndex, timeout time.Duration, progress Progress) (int, error) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	var (
		indexed  int
		firstErr error
	)
	for _, ctl := range c.Controls() {
		err := indexOne(ctx, ctl, embedder, vectors, timeout)
		if progress != nil {
			progress(ctl, err)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		indexed++
	}
	return indexed, firstErr
}

func indexOne(ctx context.Context, ctl Control, embedder embedding.EmbeddingProvider, vectors contract.VectorIndex, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text := fmt.Sprintf("%s %s (%s controls)", ctl.Reference, ctl.Title, ctl.Domain)
	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", ctl.Reference, err)
	}
	return vectors.Upsert(ctx, &entity.EmbeddingRecord{
		Kind:       entity.ArtifactGuidance,
		ArtifactId: ctl.Reference,
		Vector:     vec,
		Title:      ctl.Title,
		Category:   string(ctl.Domain),
		Reference:  ctl.Reference,
	})
}
