package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// ErrNoAPIKey - GEMINI_API_KEY 미설정
var ErrNoAPIKey = errors.New("gemini: no API key configured")

// Generator - genai GenerateContent 호출 추상화 (테스트에서 fake로 교체)
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client - API 키 여러 개를 돌려가며 호출하는 Gemini 클라이언트
type Client struct {
	apiKeys []string
	// Vertex AI 백엔드일 때 고정 클라이언트 (키 로테이션 없음)
	fixed *genai.Client

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewClient creates a client over the given keys. Keys are tried in order.
func NewClient(apiKeys []string) *Client {
	return &Client{
		apiKeys: apiKeys,
		clients: make(map[string]*genai.Client),
	}
}

// NewWithClient wraps an already configured genai client, such as a Vertex AI one.
func NewWithClient(client *genai.Client) *Client {
	return &Client{fixed: client, clients: make(map[string]*genai.Client)}
}

// GenerateContent - 429 에러 시 다음 API 키로 재시도 (키당 1회)
func (c *Client) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	if c.fixed != nil {
		return c.fixed.Models.GenerateContent(ctx, model, contents, cfg)
	}
	if len(c.apiKeys) == 0 {
		return nil, ErrNoAPIKey
	}

	var lastErr error
	for keyIndex, apiKey := range c.apiKeys {
		client, err := c.clientFor(ctx, apiKey)
		if err != nil {
			log.Printf("⚠️  [Gemini] Failed to create client with key #%d: %v", keyIndex+1, err)
			lastErr = err
			continue
		}

		result, err := client.Models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			if keyIndex > 0 {
				log.Printf("✅ [Gemini] Success with API key #%d", keyIndex+1)
			}
			return result, nil
		}
		lastErr = err

		// 429가 아닌 에러는 바로 반환
		if !is429Error(err) {
			return nil, err
		}
		log.Printf("⚠️  [Gemini] Key #%d hit rate limit (429), trying next key...", keyIndex+1)
	}

	return nil, fmt.Errorf("all %d API keys exhausted, last error: %w", len(c.apiKeys), lastErr)
}

func (c *Client) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[apiKey]; ok {
		return client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	c.clients[apiKey] = client
	return client, nil
}

// ResponseText - 첫 번째 candidate의 텍스트 파트를 이어붙임
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// is429Error - 429 Rate Limit 에러인지 확인
func is429Error(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota")
}
