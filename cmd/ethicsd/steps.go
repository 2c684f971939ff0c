package main

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ethicsd/internal/entity"
	"github.com/fyrsmithlabs/ethicsd/internal/pipeline"
)

// registerSteps binds each pipeline step to its implementation. The
// dispatcher cancels the step context on revoke or hard timeout, so the
// step bodies only need to honor ctx.
func (a *app) registerSteps() {
	a.dispatcher.Register(pipeline.StepContextual, a.extractionStep(entity.PassContextual))
	a.dispatcher.Register(pipeline.StepContextualReview, a.reviewGateStep(entity.PassContextual))
	a.dispatcher.Register(pipeline.StepNormative, a.extractionStep(entity.PassNormative))
	a.dispatcher.Register(pipeline.StepNormativeReview, a.reviewGateStep(entity.PassNormative))
	a.dispatcher.Register(pipeline.StepTemporal, a.extractionStep(entity.PassTemporal))
	a.dispatcher.Register(pipeline.StepSynthesis, a.synthesisStep)
	a.dispatcher.Register(pipeline.StepAlignment, a.alignmentStep)
}

// extractionStep runs one session per case section for the pass.
func (a *app) extractionStep(pass entity.Pass) pipeline.StepFunc {
	return func(ctx context.Context, caseID string) (int, error) {
		c, err := a.store.GetCase(ctx, caseID)
		if err != nil {
			return 0, err
		}

		total := 0
		for _, name := range c.SectionNames() {
			_, n, err := a.sessions.ExtractSection(ctx, c, pass, name, nil)
			total += n
			if err != nil {
				return total, err
			}
		}
		return total, nil
	}
}

// reviewGateStep completes once every session of the pass is committed.
func (a *app) reviewGateStep(pass entity.Pass) pipeline.StepFunc {
	return func(ctx context.Context, caseID string) (int, error) {
		done, err := a.review.PassCommitted(ctx, caseID, pass)
		if err != nil {
			return 0, err
		}
		if !done {
			return 0, fmt.Errorf("%s pass has uncommitted sessions; review and commit them first", pass)
		}
		return 0, nil
	}
}

func (a *app) synthesisStep(ctx context.Context, caseID string) (int, error) {
	points, err := a.engine.SynthesizeCase(ctx, caseID)
	if err != nil {
		return 0, err
	}
	return len(points), nil
}

func (a *app) alignmentStep(ctx context.Context, caseID string) (int, error) {
	return a.engine.ScoreCase(ctx, caseID)
}
