package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/deckbuilder/internal/artifact"
	"git.home.luguber.info/inful/deckbuilder/internal/logfields"
	"git.home.luguber.info/inful/deckbuilder/internal/metrics"
	"git.home.luguber.info/inful/deckbuilder/internal/observability"
)

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names.
const (
	StageExtract         StageName = "extract"
	StagePrepareOutput   StageName = "prepare_output"
	StageRenderSlides    StageName = "render_slides"
	StageRenderExercises StageName = "render_exercises"
	StageWriteIndex      StageName = "write_index"
)

// RenderStage returns the stage that renders lessons of kind k.
func RenderStage(k artifact.Kind) StageName {
	if k == artifact.SlideDeck {
		return StageRenderSlides
	}
	return StageRenderExercises
}

// stageFunc executes one stage. A non-nil error stops the build unless the
// stage already applied the continue policy and returned nil.
type stageFunc func(ctx context.Context, bs *buildState) error

// stageDef pairs a stage name with its executing function.
type stageDef struct {
	Name StageName
	Fn   stageFunc
	// Skip reports whether the stage has nothing to do for this build.
	Skip func(bs *buildState) bool
}

// runStages executes stages in order, recording timing and stopping on the first error.
func runStages(ctx context.Context, bs *buildState, stages []stageDef) error {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultCanceled)
			return err
		}
		sctx := observability.WithStage(ctx, string(st.Name))
		if st.Skip != nil && st.Skip(bs) {
			slog.DebugContext(sctx, "Stage skipped")
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultSkipped)
			continue
		}

		slog.DebugContext(sctx, "Stage started")
		t0 := time.Now()
		err := st.Fn(sctx, bs)
		dur := time.Since(t0)

		bs.report.StageDurations[string(st.Name)] = dur
		bs.recorder.ObserveStageDuration(string(st.Name), dur)

		switch {
		case err == nil && bs.stageFailed:
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultFailed)
		case err == nil:
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultSuccess)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultCanceled)
		default:
			bs.recorder.IncStageResult(string(st.Name), metrics.ResultFailed)
		}
		bs.stageFailed = false
		slog.DebugContext(sctx, "Stage finished", logfields.Duration(dur))

		if err != nil {
			return err
		}
	}
	return nil
}
