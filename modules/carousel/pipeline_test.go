package carousel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bagify-server/modules/common/config"
	"bagify-server/modules/common/fallback"
	"bagify-server/modules/common/model"
	"bagify-server/modules/profile/profiletest"
	"bagify-server/modules/provider"
	"bagify-server/modules/synth"
)

type editCall struct {
	ref    string
	bag    string
	prompt string
}

type fakeEditor struct {
	name  string
	calls []editCall
	fail  func(ref string) error
}

func (f *fakeEditor) Name() string { return f.name }

func (f *fakeEditor) Generate(ctx context.Context, ref, bag model.Image, prompt string) (model.Image, error) {
	f.calls = append(f.calls, editCall{ref: string(ref.Data), bag: string(bag.Data), prompt: prompt})
	if f.fail != nil {
		if err := f.fail(string(ref.Data)); err != nil {
			return model.Image{}, err
		}
	}
	return model.Image{Data: []byte("edit:" + string(ref.Data)), MIMEType: "image/png"}, nil
}

type synthCall struct {
	prompt string
	images []string
}

type fakeSynth struct {
	calls []synthCall
	fail  func(prompt string) error
}

func (f *fakeSynth) Synthesize(ctx context.Context, prompt string, images ...model.Image) (model.Image, error) {
	call := synthCall{prompt: prompt}
	for _, img := range images {
		call.images = append(call.images, string(img.Data))
	}
	f.calls = append(f.calls, call)
	if f.fail != nil {
		if err := f.fail(prompt); err != nil {
			return model.Image{}, err
		}
	}
	return model.Image{Data: []byte(fmt.Sprintf("synth:%d", len(f.calls))), MIMEType: "image/png"}, nil
}

type fakeDescriber struct {
	calls int
	text  string
	err   error
}

func (f *fakeDescriber) Describe(ctx context.Context, bag model.Image) (string, error) {
	f.calls++
	return f.text, f.err
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Report(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(t EventType) int {
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (l *eventLog) framesWith(t EventType) []int {
	var frames []int
	for _, e := range l.events {
		if e.Type == t {
			frames = append(frames, e.Frame)
		}
	}
	return frames
}

const vibe = "Parisian Chic"

var bagImage = model.Image{Data: []byte("bag"), MIMEType: "image/png"}

func newRequest(t *testing.T) (Request, *model.ReferenceImageSet) {
	refs := profiletest.FullSet()
	profiles, locked := profiletest.Lock(t, refs)
	bag := model.DefaultBagRecord()
	bag.Brand = "Acme"
	return Request{Locked: locked, Profiles: profiles, Bag: bagImage, BagRecord: bag, OutfitVibe: vibe}, refs
}

func newPipeline(t *testing.T, s Synthesizer, strategy Strategy) *Pipeline {
	p, err := NewPipeline(s, strategy, nil)
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p
}

func TestRunProducesFourFramesInOrder(t *testing.T) {
	editor := &fakeEditor{name: provider.Imagen3}
	s := &fakeSynth{}
	events := &eventLog{}
	req, _ := newRequest(t)

	c, err := newPipeline(t, s, Strategy{Name: "imagen3", Primary: editor}).Run(context.Background(), req, events)
	require.NoError(t, err)

	require.Len(t, c.Frames, 4)
	assert.Equal(t, "edit:img:frame1", string(c.Frames[0].Data))
	assert.Equal(t, "synth:1", string(c.Frames[1].Data))
	assert.Equal(t, "synth:2", string(c.Frames[2].Data))
	assert.Equal(t, "edit:img:frame4", string(c.Frames[3].Data))
	assert.Empty(t, c.FallbackFrames)
	assert.Equal(t, "Acme", c.Bag.Brand)
	assert.Equal(t, "imagen3", c.Strategy)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), c.GeneratedAt)

	// frames 2/3 only see the bag
	assert.Equal(t, []string{"bag"}, s.calls[0].images)
	assert.Contains(t, s.calls[0].prompt, "3/4 view")
	assert.Equal(t, []string{"bag"}, s.calls[1].images)
	assert.Contains(t, s.calls[1].prompt, "front view")

	assert.Equal(t, []int{1, 2, 3, 4}, events.framesWith(EventStageCompleted))
	assert.Equal(t, EventRunStarted, events.events[0].Type)
	assert.Equal(t, EventRunCompleted, events.events[len(events.events)-1].Type)
	assert.Zero(t, events.count(EventFallbackTriggered))
	for _, e := range events.events {
		assert.Equal(t, c.ID, e.RunID)
	}
}

func TestRunFallsBackOnceForIdentityFramesOnly(t *testing.T) {
	editor := &fakeEditor{name: provider.Imagen3, fail: func(string) error {
		return &provider.ProviderRequestError{Provider: provider.Imagen3, StatusCode: 500, Detail: "backend exploded"}
	}}
	s := &fakeSynth{}
	events := &eventLog{}
	req, _ := newRequest(t)

	c, err := newPipeline(t, s, Strategy{Name: "imagen3", Primary: editor}).Run(context.Background(), req, events)
	require.NoError(t, err)

	assert.Len(t, editor.calls, 2)
	require.Len(t, s.calls, 4)
	assert.Equal(t, []int{1, 4}, c.FallbackFrames)
	assert.Equal(t, []int{1, 4}, events.framesWith(EventFallbackTriggered))

	// fallback sends the locked reference first, then the bag
	assert.Equal(t, []string{"img:frame1", "bag"}, s.calls[0].images)
	assert.Contains(t, s.calls[0].prompt, "bathroom scene identical")
	assert.Equal(t, []string{"img:frame4", "bag"}, s.calls[3].images)
	assert.Contains(t, s.calls[3].prompt, "bedroom mirror selfie")
}

func TestRunFailsWhenFallbackAlsoFails(t *testing.T) {
	signature := &provider.ProviderRequestError{Provider: provider.Imagen3, StatusCode: 401, Detail: "backend request failed (401): Invalid JWT Signature."}
	editor := &fakeEditor{name: provider.Imagen3, fail: func(string) error { return signature }}
	s := &fakeSynth{fail: func(string) error { return &synth.ImageMissingError{Model: "m"} }}
	events := &eventLog{}
	req, _ := newRequest(t)

	c, err := newPipeline(t, s, Strategy{Name: "imagen3", Primary: editor}).Run(context.Background(), req, events)
	require.Error(t, err)
	assert.Nil(t, c)

	assert.True(t, fallback.IsExhausted(err))
	var perr *provider.ProviderRequestError
	require.ErrorAs(t, err, &perr)
	assert.True(t, perr.IsSignatureFailure())
	var missing *synth.ImageMissingError
	assert.ErrorAs(t, err, &missing)

	// exactly one fallback attempt, and nothing after frame 1
	assert.Len(t, editor.calls, 1)
	assert.Len(t, s.calls, 1)
	assert.Equal(t, 1, events.count(EventRunFailed))
	assert.Zero(t, events.count(EventRunCompleted))
}

func TestProductFrameFailureIsFatal(t *testing.T) {
	editor := &fakeEditor{name: provider.Dalle}
	s := &fakeSynth{fail: func(prompt string) error {
		if strings.Contains(prompt, "3/4 view") {
			return &synth.ImageMissingError{Model: "m"}
		}
		return nil
	}}
	req, _ := newRequest(t)

	_, err := newPipeline(t, s, Strategy{Name: "dalle", Primary: editor}).Run(context.Background(), req, nil)
	var missing *synth.ImageMissingError
	require.ErrorAs(t, err, &missing)
	assert.False(t, fallback.IsExhausted(err))
	assert.Contains(t, err.Error(), "frame 2")

	assert.Len(t, editor.calls, 1, "frame 4 must not run")
	assert.Len(t, s.calls, 1, "frame 2 gets no retry and frame 3 never starts")
}

func TestRunUsesLockedSnapshotNotLiveUploads(t *testing.T) {
	editor := &fakeEditor{name: provider.Imagen3}
	req, refs := newRequest(t)

	refs.Set(model.SlotFrame1, profiletest.Image("changed-1"))
	refs.Frame4.Data = []byte("changed-4")

	_, err := newPipeline(t, &fakeSynth{}, Strategy{Name: "imagen3", Primary: editor}).Run(context.Background(), req, nil)
	require.NoError(t, err)

	require.Len(t, editor.calls, 2)
	assert.Equal(t, "img:frame1", editor.calls[0].ref)
	assert.Equal(t, "img:frame4", editor.calls[1].ref)
	assert.Equal(t, "bag", editor.calls[0].bag)
}

func TestOutfitVibeReachesEveryIdentityPrompt(t *testing.T) {
	editor := &fakeEditor{name: provider.Imagen3, fail: func(string) error { return errors.New("down") }}
	s := &fakeSynth{}
	req, _ := newRequest(t)

	_, err := newPipeline(t, s, Strategy{Name: "imagen3", Primary: editor}).Run(context.Background(), req, nil)
	require.NoError(t, err)

	for _, call := range editor.calls {
		assert.Contains(t, call.prompt, `"`+vibe+`"`)
	}
	assert.Contains(t, s.calls[0].prompt, `"`+vibe+`"`)
	assert.Contains(t, s.calls[3].prompt, `"`+vibe+`"`)

	// Gemini prompts carry the extracted descriptors, backend prompts do not
	assert.Contains(t, s.calls[0].prompt, "faceDescriptor value")
	assert.Contains(t, s.calls[0].prompt, "mirror value")
	assert.Contains(t, s.calls[3].prompt, "furniture value")
	assert.NotContains(t, editor.calls[0].prompt, "faceDescriptor value")
}

func TestGeminiStrategyDescribesBagFirst(t *testing.T) {
	describer := &fakeDescriber{text: "Black quilted leather, gold chain"}
	s := &fakeSynth{}
	events := &eventLog{}
	req, _ := newRequest(t)

	p, err := NewPipeline(s, Strategy{Name: "gemini", DescribeBag: true}, describer)
	require.NoError(t, err)
	c, err := p.Run(context.Background(), req, events)
	require.NoError(t, err)

	assert.Equal(t, 1, describer.calls)
	require.Len(t, s.calls, 4)
	for _, call := range s.calls {
		assert.Contains(t, call.prompt, "Black quilted leather, gold chain")
	}
	assert.Equal(t, []string{"img:frame1", "bag"}, s.calls[0].images)
	assert.Empty(t, c.FallbackFrames)
	assert.Equal(t, StageBagAnalysis, events.events[1].Stage)
}

func TestGeminiStrategyHasNoFallback(t *testing.T) {
	s := &fakeSynth{fail: func(prompt string) error {
		if strings.Contains(prompt, "bathroom") {
			return &synth.ImageMissingError{Model: "m"}
		}
		return nil
	}}
	p, err := NewPipeline(s, Strategy{Name: "gemini", DescribeBag: true}, &fakeDescriber{text: "tote"})
	require.NoError(t, err)
	req, _ := newRequest(t)

	_, err = p.Run(context.Background(), req, nil)
	var missing *synth.ImageMissingError
	require.ErrorAs(t, err, &missing)
	assert.False(t, fallback.IsExhausted(err))
	assert.Len(t, s.calls, 1)
}

func TestBagAnalysisFailureIsFatal(t *testing.T) {
	boom := errors.New("describe failed")
	s := &fakeSynth{}
	p, err := NewPipeline(s, Strategy{Name: "gemini", DescribeBag: true}, &fakeDescriber{err: boom})
	require.NoError(t, err)
	req, _ := newRequest(t)

	_, err = p.Run(context.Background(), req, nil)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.calls)
}

func TestRunValidatesRequest(t *testing.T) {
	p := newPipeline(t, &fakeSynth{}, Strategy{Name: "gemini"})
	_, err := p.Run(context.Background(), Request{Bag: bagImage}, nil)
	assert.Error(t, err)

	req, _ := newRequest(t)
	req.Bag = model.Image{}
	_, err = p.Run(context.Background(), req, nil)
	assert.Error(t, err)
}

func TestNewPipelineValidation(t *testing.T) {
	_, err := NewPipeline(nil, Strategy{Name: "imagen3"}, nil)
	assert.Error(t, err)

	_, err = NewPipeline(&fakeSynth{}, Strategy{Name: "gemini", DescribeBag: true}, nil)
	assert.Error(t, err)
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy(config.StrategyImagen3, "http://backend", nil)
	require.NoError(t, err)
	require.NotNil(t, s.Primary)
	assert.Equal(t, provider.Imagen3, s.Primary.Name())
	assert.False(t, s.DescribeBag)

	s, err = NewStrategy(config.StrategyDalle, "http://backend", nil)
	require.NoError(t, err)
	assert.Equal(t, provider.Dalle, s.Primary.Name())

	s, err = NewStrategy(config.StrategyGemini, "", nil)
	require.NoError(t, err)
	assert.Nil(t, s.Primary)
	assert.True(t, s.DescribeBag)

	_, err = NewStrategy("other", "", nil)
	assert.Error(t, err)
}
