package bagdescribe

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"

	"bagify-server/modules/common/model"
	"bagify-server/modules/common/utils"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIDescriber - OpenAI vision 모델로 가방 설명 생성
type OpenAIDescriber struct {
	client chatClient
	model  string
}

// NewOpenAI - baseURL이 비어 있으면 기본 OpenAI 엔드포인트 사용
func NewOpenAI(apiKey, modelName, baseURL string) *OpenAIDescriber {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	log.Printf("✅ [BagDescribe] OpenAI describer ready (%s)", modelName)
	return &OpenAIDescriber{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
	}
}

// Describe - 이미지를 data URL로 첨부해 설명 요청
func (d *OpenAIDescriber) Describe(ctx context.Context, bag model.Image) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: describePrompt},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    utils.DataURL(bag.MIMEType, bag.Data),
						Detail: openai.ImageURLDetailHigh,
					},
				},
			},
		}},
	}

	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("bag description failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyDescription
	}

	description := strings.TrimSpace(resp.Choices[0].Message.Content)
	if description == "" {
		return "", ErrEmptyDescription
	}
	log.Printf("✅ [BagDescribe] OpenAI description: %d chars", len(description))
	return description, nil
}
