package carousel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"bagify-server/modules/bagdescribe"
	"bagify-server/modules/common/fallback"
	"bagify-server/modules/common/model"
	"bagify-server/modules/profile"
)

const geminiAttempt = "gemini"

// Request - 파이프라인 1회 실행 입력
// Locked can only come from a successful profile extraction.
type Request struct {
	Locked     *profile.LockedReferences
	Profiles   *profile.Profiles
	Bag        model.Image
	BagRecord  model.BagRecord
	OutfitVibe string
}

// Pipeline - 4 프레임을 순서대로 생성하는 오케스트레이터
type Pipeline struct {
	synth     Synthesizer
	strategy  Strategy
	describer bagdescribe.Describer
	now       func() time.Time
}

// NewPipeline - describer는 DescribeBag 전략에서만 필요
func NewPipeline(synth Synthesizer, strategy Strategy, describer bagdescribe.Describer) (*Pipeline, error) {
	if synth == nil {
		return nil, errors.New("carousel: synthesizer is required")
	}
	if strategy.DescribeBag && describer == nil {
		return nil, fmt.Errorf("carousel: strategy %s requires a bag describer", strategy.Name)
	}
	return &Pipeline{
		synth:     synth,
		strategy:  strategy,
		describer: describer,
		now:       time.Now,
	}, nil
}

// Strategy returns the configured strategy name.
func (p *Pipeline) Strategy() string {
	return p.strategy.Name
}

// run holds per-run state. Nothing here outlives a failed run.
type run struct {
	id       string
	reporter Reporter
	frames   []model.Image
	fellBack []int
}

func (r *run) emit(e Event) {
	e.RunID = r.id
	e.Time = time.Now()
	r.reporter.Report(e)
}

// Run - BagAnalysis? → Frame1 → Frame2 → Frame3 → Frame4, 순차 실행
// Either four frames in order or an error; no partial carousel is returned.
func (p *Pipeline) Run(ctx context.Context, req Request, reporter Reporter) (*model.GeneratedCarousel, error) {
	if reporter == nil {
		reporter = nopReporter{}
	}
	r := &run{id: uuid.New().String(), reporter: reporter}

	if req.Locked == nil {
		return nil, errors.New("carousel: locked references are required")
	}
	if req.Bag.Empty() {
		return nil, errors.New("carousel: target bag image is required")
	}

	r.emit(Event{Type: EventRunStarted, Message: p.strategy.Name})
	log.Printf("🚀 [Carousel] Run %s started (strategy: %s, vibe: %q)", r.id, p.strategy.Name, req.OutfitVibe)

	carousel, err := p.execute(ctx, r, req)
	if err != nil {
		log.Printf("❌ [Carousel] Run %s failed: %v", r.id, err)
		r.emit(Event{Type: EventRunFailed, Message: err.Error()})
		return nil, err
	}

	log.Printf("✅ [Carousel] Run %s completed (fallback frames: %v)", r.id, carousel.FallbackFrames)
	r.emit(Event{Type: EventRunCompleted, Message: carousel.ID})
	return carousel, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run, req Request) (*model.GeneratedCarousel, error) {
	backendCtx := promptContext{Vibe: req.OutfitVibe}
	geminiCtx := promptContext{Vibe: req.OutfitVibe, Profiles: req.Profiles}

	if p.strategy.DescribeBag {
		r.emit(Event{Type: EventStageStarted, Stage: StageBagAnalysis})
		description, err := p.describer.Describe(ctx, req.Bag)
		if err != nil {
			return nil, fmt.Errorf("bag analysis failed: %w", err)
		}
		geminiCtx.Description = description
		r.emit(Event{Type: EventStageCompleted, Stage: StageBagAnalysis})
	}

	ref1 := req.Locked.Frame(model.SlotFrame1)
	ref4 := req.Locked.Frame(model.SlotFrame4)

	// Frame 1: 인물/가방 기준 프레임
	if err := p.identityFrame(ctx, r, 1, StageFrame1, ref1, req.Bag,
		frame1EditPrompt(backendCtx), frame1FallbackPrompt(geminiCtx), frame1EditPrompt(geminiCtx)); err != nil {
		return nil, err
	}

	// Frame 2/3: 제품 컷, fallback 없음
	if err := p.productFrame(ctx, r, 2, StageFrame2, req.Bag, frame2Prompt(geminiCtx)); err != nil {
		return nil, err
	}
	if err := p.productFrame(ctx, r, 3, StageFrame3, req.Bag, frame3Prompt(geminiCtx)); err != nil {
		return nil, err
	}

	// Frame 4: 같은 인물, 다른 포즈
	if err := p.identityFrame(ctx, r, 4, StageFrame4, ref4, req.Bag,
		frame4EditPrompt(backendCtx), frame4FallbackPrompt(geminiCtx), frame4EditPrompt(geminiCtx)); err != nil {
		return nil, err
	}

	carousel := &model.GeneratedCarousel{
		ID:             r.id,
		Bag:            req.BagRecord,
		Frames:         r.frames,
		Strategy:       p.strategy.Name,
		FallbackFrames: r.fellBack,
		GeneratedAt:    p.now().UTC(),
	}
	if err := carousel.Validate(); err != nil {
		return nil, err
	}
	return carousel, nil
}

// identityFrame runs primary then one Gemini fallback, or Gemini alone when
// the strategy has no primary editor.
func (p *Pipeline) identityFrame(ctx context.Context, r *run, frame int, stage string, ref, bag model.Image, primaryPrompt, fallbackPrompt, directPrompt string) error {
	var attempts []fallback.Attempt[model.Image]
	if editor := p.strategy.Primary; editor != nil {
		attempts = append(attempts,
			fallback.Attempt[model.Image]{Name: editor.Name(), Run: func(ctx context.Context) (model.Image, error) {
				return editor.Generate(ctx, ref, bag, primaryPrompt)
			}},
			fallback.Attempt[model.Image]{Name: geminiAttempt, Run: func(ctx context.Context) (model.Image, error) {
				return p.synth.Synthesize(ctx, fallbackPrompt, ref, bag)
			}},
		)
	} else {
		attempts = append(attempts, fallback.Attempt[model.Image]{Name: geminiAttempt, Run: func(ctx context.Context) (model.Image, error) {
			return p.synth.Synthesize(ctx, directPrompt, ref, bag)
		}})
	}

	r.emit(Event{Type: EventStageStarted, Stage: stage, Frame: frame, Provider: attempts[0].Name})
	res, err := fallback.Run(ctx, fmt.Sprintf("frame %d", frame), attempts, func(next string, cause error) {
		r.emit(Event{Type: EventFallbackTriggered, Stage: stage, Frame: frame, Provider: next, Message: cause.Error()})
	})
	if err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}

	if res.UsedFallback() {
		r.fellBack = append(r.fellBack, frame)
	}
	r.frames = append(r.frames, res.Value)
	log.Printf("✅ [Carousel] Frame %d complete (%s)", frame, res.Name)
	r.emit(Event{Type: EventStageCompleted, Stage: stage, Frame: frame, Provider: res.Name})
	return nil
}

func (p *Pipeline) productFrame(ctx context.Context, r *run, frame int, stage string, bag model.Image, prompt string) error {
	r.emit(Event{Type: EventStageStarted, Stage: stage, Frame: frame, Provider: geminiAttempt})
	img, err := p.synth.Synthesize(ctx, prompt, bag)
	if err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}
	r.frames = append(r.frames, img)
	log.Printf("✅ [Carousel] Frame %d complete (%s)", frame, geminiAttempt)
	r.emit(Event{Type: EventStageCompleted, Stage: stage, Frame: frame, Provider: geminiAttempt})
	return nil
}
