package synthesis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ethicsd/internal/alignment"
	"github.com/fyrsmithlabs/ethicsd/internal/casefile"
	"github.com/fyrsmithlabs/ethicsd/internal/entity"
	"github.com/fyrsmithlabs/ethicsd/internal/extraction"
	"github.com/fyrsmithlabs/ethicsd/internal/logging"
)

// Store is the persistence surface the engine needs.
type Store interface {
	GetCase(ctx context.Context, caseID string) (*casefile.Case, error)

	// CommittedEntities returns the case's committed entity set.
	CommittedEntities(ctx context.Context, caseID string) ([]*entity.CandidateEntity, error)

	// SaveDecisionPoints persists decision points and their options in one
	// transaction. Decision points are immutable once saved.
	SaveDecisionPoints(ctx context.Context, points []DecisionPoint) error

	DecisionPointsForCase(ctx context.Context, caseID string) ([]DecisionPoint, error)

	// SetAlignmentScore records the score for a decision point exactly
	// once; scoring an already-scored point is a no-op.
	SetAlignmentScore(ctx context.Context, pointID string, score float64) (bool, error)
}

// Engine runs the synthesis strategy chain and the alignment step.
type Engine struct {
	store  Store
	chain  []Synthesizer
	logger *zap.Logger
}

// NewEngine creates a synthesis engine. Strategies are tried in order;
// the first to return decision points wins.
func NewEngine(store Store, chain []Synthesizer, logger *zap.Logger) *Engine {
	return &Engine{store: store, chain: chain, logger: logger}
}

// SynthesizeCase loads the committed entity set and runs the strategy
// chain, persisting whatever the winning strategy produced. A schema
// validation failure in the generative fallback fails that synthesis
// attempt only: nothing is persisted and the pipeline run still
// completes, with zero decision points.
func (e *Engine) SynthesizeCase(ctx context.Context, caseID string) ([]DecisionPoint, error) {
	sc, err := e.loadContext(ctx, caseID)
	if err != nil {
		return nil, err
	}

	for _, strategy := range e.chain {
		points, err := strategy.Synthesize(ctx, sc)
		if err != nil {
			var sve *extraction.SchemaValidationError
			if errors.As(err, &sve) {
				e.logger.Warn("synthesis strategy produced malformed output, rejecting",
					append(logging.ContextFields(ctx),
						zap.String("strategy", strategy.Name()),
						zap.String("reason", sve.Reason))...)
				continue
			}
			return nil, fmt.Errorf("strategy %s failed: %w", strategy.Name(), err)
		}
		if len(points) == 0 {
			e.logger.Debug("synthesis strategy yielded nothing, falling through",
				append(logging.ContextFields(ctx), zap.String("strategy", strategy.Name()))...)
			continue
		}

		if err := e.store.SaveDecisionPoints(ctx, points); err != nil {
			return nil, fmt.Errorf("failed to persist decision points: %w", err)
		}
		e.logger.Info("decision points synthesized",
			append(logging.ContextFields(ctx),
				zap.String("strategy", strategy.Name()),
				zap.Int("count", len(points)))...)
		return points, nil
	}

	e.logger.Info("no strategy produced a decision point", logging.ContextFields(ctx)...)
	return nil, nil
}

// ScoreCase computes the alignment score for every unscored decision
// point of the case. Returns how many points were scored.
func (e *Engine) ScoreCase(ctx context.Context, caseID string) (int, error) {
	sc, err := e.loadContext(ctx, caseID)
	if err != nil {
		return 0, err
	}
	points, err := e.store.DecisionPointsForCase(ctx, caseID)
	if err != nil {
		return 0, err
	}

	scored := 0
	for _, point := range points {
		if point.AlignmentScore != nil {
			continue
		}
		score := alignment.Score(e.alignmentInput(sc, point))
		wrote, err := e.store.SetAlignmentScore(ctx, point.ID, score)
		if err != nil {
			return scored, fmt.Errorf("failed to record alignment score for %s: %w", point.ID, err)
		}
		if wrote {
			scored++
		}
	}
	return scored, nil
}

// alignmentInput resolves the decision point's entity references to
// labels for the pure scorer.
func (e *Engine) alignmentInput(sc *Context, point DecisionPoint) alignment.Input {
	in := alignment.Input{
		CaseActionLabels: sc.ActionEventLabels(),
		Questions:        sc.Case.BoardQuestions,
		Conclusions:      sc.Case.BoardConclusions,
	}
	for _, id := range point.ApplicableProvisionIDs {
		if ent := sc.EntityByID(id); ent != nil {
			in.ObligationLabels = append(in.ObligationLabels, ent.Label)
		}
	}
	for _, id := range point.InvolvedRoleIDs {
		if ent := sc.EntityByID(id); ent != nil {
			in.RoleLabels = append(in.RoleLabels, ent.Label)
		}
	}
	for _, opt := range point.Options {
		in.OptionDescriptions = append(in.OptionDescriptions, opt.Description)
	}
	return in
}

func (e *Engine) loadContext(ctx context.Context, caseID string) (*Context, error) {
	c, err := e.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}
	entities, err := e.store.CommittedEntities(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load committed entities for %s: %w", caseID, err)
	}
	return &Context{Case: c, Entities: entities}, nil
}
