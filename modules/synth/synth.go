package synth

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"

	"bagify-server/modules/common/gemini"
	"bagify-server/modules/common/model"
	"bagify-server/modules/common/utils"
)

// ImageMissingError - 응답에 이미지 파트가 없음
type ImageMissingError struct {
	Model string
}

func (e *ImageMissingError) Error() string {
	return fmt.Sprintf("image generation failed with %s: no image data found", e.Model)
}

// Synthesizer - Gemini 이미지 생성 래퍼
type Synthesizer struct {
	gen   gemini.Generator
	model string
}

// NewSynthesizer - 이미지 생성기 생성
func NewSynthesizer(gen gemini.Generator, modelName string) *Synthesizer {
	return &Synthesizer{gen: gen, model: modelName}
}

// Synthesize sends the images in the given order followed by the prompt and
// returns the first inline image of the first candidate.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string, images ...model.Image) (model.Image, error) {
	parts := make([]*genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	}

	log.Printf("🎨 [Synth] Calling %s with %d image(s)", s.model, len(images))
	resp, err := s.gen.GenerateContent(ctx, s.model, contents, cfg)
	if err != nil {
		return model.Image{}, fmt.Errorf("gemini image generation failed: %w", err)
	}

	img, ok := firstImage(resp)
	if !ok {
		return model.Image{}, &ImageMissingError{Model: s.model}
	}
	log.Printf("✅ [Synth] Received %s (%d bytes)", img.MIMEType, len(img.Data))
	return img, nil
}

func firstImage(resp *genai.GenerateContentResponse) (model.Image, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return model.Image{}, false
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return model.Image{}, false
	}
	for _, part := range cand.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		if utils.IsImageMIME(part.InlineData.MIMEType) {
			return model.Image{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, true
		}
	}
	return model.Image{}, false
}
