package pipeline

import (
	"errors"

	"git.home.luguber.info/inful/deckbuilder/internal/artifact"
	"git.home.luguber.info/inful/deckbuilder/internal/fragments"
	"git.home.luguber.info/inful/deckbuilder/internal/render"
)

// Step is one planned lesson render: everything up to, but not including, the
// subprocess call.
type Step struct {
	Kind       artifact.Kind
	Lesson     string
	Source     string
	Output     string
	Fragments  fragments.Sequence
	Invocation render.Invocation
	// Err is the discovery failure, if any; Invocation is empty when set.
	Err error
}

func (b *Builder) planLesson(rc artifact.RenderConfig, lesson string) Step {
	output := artifact.OutputPath(b.cfg.Output.Root, rc.Kind, lesson)
	step := Step{
		Kind:   rc.Kind,
		Lesson: lesson,
		Source: b.discoverer.SourcePath(b.cfg.Source.Root, lesson),
		Output: output,
	}
	set, err := b.discoverer.Discover(b.cfg.Source.Root, lesson)
	if err != nil {
		step.Err = err
		return step
	}
	step.Fragments = fragments.Order(set)
	step.Invocation = render.NewInvocation(b.cfg.Renderer.Executable, rc.Args(output), step.Fragments)
	return step
}

// Plan resolves every lesson in worklist order without running extraction or
// the renderer. The returned error joins the classified discovery failures.
func (b *Builder) Plan() ([]Step, error) {
	var (
		steps []Step
		errs  []error
	)
	for _, k := range artifact.Kinds() {
		rc := artifact.Resolve(k, b.cfg.Renderer.Settings(k))
		for _, lesson := range b.cfg.Lessons.For(k) {
			step := b.planLesson(rc, lesson)
			if step.Err != nil {
				classified, _ := classifyLessonError(k, lesson, step.Output, step.Err)
				errs = append(errs, classified)
			}
			steps = append(steps, step)
		}
	}
	return steps, errors.Join(errs...)
}
