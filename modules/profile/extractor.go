package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"bagify-server/modules/common/gemini"
	"bagify-server/modules/common/model"
)

// ExtractionParseError - 프로필 응답이 스키마에 맞는 JSON이 아님
type ExtractionParseError struct {
	Profile string
	Raw     string
	Reason  string
}

func (e *ExtractionParseError) Error() string {
	return fmt.Sprintf("could not parse AI %s profile response: %s", e.Profile, e.Reason)
}

// Extractor - Gemini로 이미지에서 구조화된 프로필 추출
type Extractor struct {
	gen   gemini.Generator
	model string
}

// NewExtractor - 프로필 추출기 생성
func NewExtractor(gen gemini.Generator, modelName string) *Extractor {
	return &Extractor{gen: gen, model: modelName}
}

// Extract sends image + prompt with a JSON response schema and decodes the reply into T.
// No retry is attempted.
func Extract[T any](ctx context.Context, e *Extractor, name string, image model.Image, prompt string, schema Schema) (T, error) {
	var zero T

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image.Data, image.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema.GenAI(),
	}

	resp, err := e.gen.GenerateContent(ctx, e.model, contents, cfg)
	if err != nil {
		return zero, fmt.Errorf("%s profile request failed: %w", name, err)
	}

	raw := strings.TrimSpace(gemini.ResponseText(resp))
	if err := validateFields(raw, schema); err != nil {
		return zero, &ExtractionParseError{Profile: name, Raw: raw, Reason: err.Error()}
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return zero, &ExtractionParseError{Profile: name, Raw: raw, Reason: err.Error()}
	}
	return out, nil
}

// validateFields - JSON 객체이고 모든 required 필드가 string인지 확인
func validateFields(raw string, schema Schema) error {
	if raw == "" {
		return fmt.Errorf("empty response")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return fmt.Errorf("invalid JSON: %v", err)
	}
	for _, f := range schema.Fields {
		v, ok := obj[f.Name]
		if !ok {
			return fmt.Errorf("missing required field %q", f.Name)
		}
		if _, isString := v.(string); !isString {
			return fmt.Errorf("field %q is not a string", f.Name)
		}
	}
	return nil
}

// ExtractCharacter - frame1 인물 프로필
func (e *Extractor) ExtractCharacter(ctx context.Context, image model.Image) (CharacterProfile, error) {
	return Extract[CharacterProfile](ctx, e, "character", image, characterPrompt, characterSchema)
}

// ExtractSceneA - frame1 욕실 배경 프로필
func (e *Extractor) ExtractSceneA(ctx context.Context, image model.Image) (SceneProfile, error) {
	return Extract[SceneProfile](ctx, e, "scene A", image, scenePrompt, sceneASchema)
}

// ExtractSceneB - frame4 침실 배경 프로필
func (e *Extractor) ExtractSceneB(ctx context.Context, image model.Image) (SceneProfile, error) {
	return Extract[SceneProfile](ctx, e, "scene B", image, scenePrompt, sceneBSchema)
}
