package pipeline

import (
	"context"
	"errors"
	"fmt"

	"git.home.luguber.info/inful/deckbuilder/internal/artifact"
	ferrors "git.home.luguber.info/inful/deckbuilder/internal/foundation/errors"
	ferr "git.home.luguber.info/inful/deckbuilder/internal/fragments/errors"
	"git.home.luguber.info/inful/deckbuilder/internal/render"
	"git.home.luguber.info/inful/deckbuilder/internal/report"
)

// classifyLessonError maps a lesson failure onto the build error kinds and the
// lesson state recorded in the report. The message always names the lesson's
// target path.
func classifyLessonError(k artifact.Kind, lesson, output string, err error) (error, report.LessonState) {
	var (
		launchErr *render.LaunchError
		exitErr   *render.ExitError
		builder   *ferrors.ErrorBuilder
		state     report.LessonState
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err, report.LessonCanceled
	case errors.Is(err, ferr.ErrSourceUnreadable), errors.Is(err, ferr.ErrFragmentReadFailed):
		builder = ferrors.DiscoveryError(fmt.Sprintf("cannot read sources of %s lesson %q for %s", k, lesson, output))
		state = report.LessonUnreadable
	case errors.As(err, &launchErr):
		builder = ferrors.LaunchError(fmt.Sprintf("renderer could not be started for %s lesson %q (%s)", k, lesson, output)).
			WithContext("command", launchErr.Command).
			WithContext("dir", launchErr.Dir)
		state = report.LessonFailedLaunch
	case errors.As(err, &exitErr):
		builder = ferrors.RenderError(fmt.Sprintf("rendering %s lesson %q to %s failed with exit status %d", k, lesson, output, exitErr.ExitCode)).
			WithContext("command", exitErr.Command).
			WithContext("dir", exitErr.Dir).
			WithContext("exit_code", exitErr.ExitCode)
		state = report.LessonFailedRender
	default:
		builder = ferrors.InternalError(fmt.Sprintf("unexpected failure for %s lesson %q (%s)", k, lesson, output))
		state = report.LessonFailedRender
	}
	return builder.WithCause(err).
		WithContext("kind", k.String()).
		WithContext("lesson", lesson).
		WithContext("output", output).
		Build(), state
}

// classifyExtractError maps an extraction failure; extraction always stops the build.
func classifyExtractError(err error) error {
	var launchErr *render.LaunchError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &launchErr):
		return ferrors.LaunchError("extraction command could not be started").WithCause(err).Build()
	default:
		return ferrors.RenderError("extraction command failed").WithCause(err).Build()
	}
}
