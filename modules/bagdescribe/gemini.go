package bagdescribe

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"bagify-server/modules/common/model"
)

type textModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiDescriber - generative-ai-go SDK로 가방 설명 생성
type GeminiDescriber struct {
	client *genai.Client
	model  textModel
}

// NewGemini - API 키와 텍스트 모델로 설명기 생성
func NewGemini(ctx context.Context, apiKey, modelName string) (*GeminiDescriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	m := client.GenerativeModel(modelName)
	m.SetTemperature(0.2)

	log.Printf("✅ [BagDescribe] Gemini describer ready (%s)", modelName)
	return &GeminiDescriber{client: client, model: m}, nil
}

// Describe - 이미지 + 프롬프트 전송 후 텍스트 파트를 이어붙여 반환
func (d *GeminiDescriber) Describe(ctx context.Context, bag model.Image) (string, error) {
	resp, err := d.model.GenerateContent(ctx,
		genai.Blob{MIMEType: bag.MIMEType, Data: bag.Data},
		genai.Text(describePrompt),
	)
	if err != nil {
		return "", fmt.Errorf("bag description failed: %w", err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}

	description := strings.TrimSpace(sb.String())
	if description == "" {
		return "", ErrEmptyDescription
	}
	log.Printf("✅ [BagDescribe] Gemini description: %d chars", len(description))
	return description, nil
}

// Close releases the underlying client.
func (d *GeminiDescriber) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}
