package round

import (
	"context"

	"github.com/papapumpkin/nullfix/internal/artifact"
	"github.com/papapumpkin/nullfix/internal/finding"
	"github.com/papapumpkin/nullfix/internal/initializer"
	"github.com/papapumpkin/nullfix/internal/telemetry"
)

// traceArtifacts are rewritten by every preprocessing pass.
var traceArtifacts = []string{
	artifact.SuggestedFixes,
	artifact.FieldWrites,
	artifact.InitializerFixes,
}

// Preprocess runs a traced build, picks one initializer method per class
// from the recorded field writes, and applies the resulting batch. It
// returns the candidates that were applied.
func (c *Controller) Preprocess(ctx context.Context) ([]initializer.Candidate, error) {
	c.ensureRun(ctx, "preprocess")
	c.setPhase(PhasePreprocess)
	for _, name := range traceArtifacts {
		if err := c.Dir.Remove(name); err != nil {
			return nil, err
		}
	}

	if err := c.tool(ctx, "trace", func() error { return c.Analyzer.Trace(ctx) }); err != nil {
		return nil, err
	}
	suggested, err := c.Store.LoadSuggestedFixes()
	if err != nil {
		return nil, err
	}
	writes, err := initializer.ReadTraces(c.Dir.Path(artifact.FieldWrites))
	if err != nil {
		return nil, err
	}

	unresolved := initializer.Unresolved(suggested)
	candidates := initializer.Find(unresolved, writes, c.InitializerAnnotation)
	c.log().Info("initializers selected",
		"unresolved", len(unresolved), "writes", len(writes), "candidates", len(candidates))
	c.ui().InitializersSelected(len(candidates))
	c.Metrics.InitializersSelected(len(candidates))

	path, err := finding.WriteBatch(c.Dir, artifact.InitializerFixes, candidates)
	if err != nil {
		return nil, err
	}
	c.emit(telemetry.Event{Kind: telemetry.KindPreprocessDone, Data: map[string]int{
		"unresolved": len(unresolved),
		"candidates": len(candidates),
	}})
	if len(candidates) == 0 {
		return candidates, nil
	}
	if err := c.Apply(ctx, path); err != nil {
		return nil, err
	}
	return candidates, nil
}
