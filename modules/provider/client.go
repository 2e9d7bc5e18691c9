package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"bagify-server/modules/common/model"
	"bagify-server/modules/common/utils"
)

// Client - 별도 백엔드의 이미지 편집 API 클라이언트
type Client struct {
	baseURL    string
	provider   string
	httpClient *http.Client
}

// NewClient - provider는 "imagen3" 또는 "dalle"
func NewClient(baseURL, provider string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		provider:   provider,
		httpClient: httpClient,
	}
}

// Name returns the provider key.
func (c *Client) Name() string {
	return c.provider
}

// Endpoint - POST 대상 URL
func (c *Client) Endpoint() string {
	return fmt.Sprintf("%s/api/%s/generate", c.baseURL, c.provider)
}

// Generate - 레퍼런스 + 가방 이미지로 편집 이미지 생성
func (c *Client) Generate(ctx context.Context, ref, bag model.Image, prompt string) (model.Image, error) {
	name := DisplayName(c.provider)

	body, err := json.Marshal(GenerateRequest{
		ReferenceImageBase64: utils.EncodeBase64(ref.Data),
		BagImageBase64:       utils.EncodeBase64(bag.Data),
		Prompt:               prompt,
	})
	if err != nil {
		return model.Image{}, c.fail(0, fmt.Sprintf("failed to marshal request: %v", err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return model.Image{}, c.fail(0, fmt.Sprintf("failed to create request: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("🖼️  [%s] Calling backend at %s", name, c.Endpoint())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Image{}, c.fail(0, fmt.Sprintf("backend unreachable: %v", err), err)
	}
	defer resp.Body.Close()

	log.Printf("📡 [%s] Backend response status: %d", name, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Image{}, c.fail(resp.StatusCode, fmt.Sprintf("failed to read response: %v", err), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := http.StatusText(resp.StatusCode)
		var errBody GenerateResponse
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
			detail = errBody.Error
		}
		return model.Image{}, c.fail(resp.StatusCode, fmt.Sprintf("backend request failed (%d): %s", resp.StatusCode, detail), nil)
	}

	var result GenerateResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return model.Image{}, c.fail(resp.StatusCode, fmt.Sprintf("unparsable backend response: %v", err), err)
	}
	if !result.Success || result.Image == "" {
		detail := result.Error
		if detail == "" {
			detail = "backend did not return a valid image"
		}
		return model.Image{}, c.fail(resp.StatusCode, detail, nil)
	}

	data, err := utils.DecodeBase64(result.Image)
	if err != nil {
		return model.Image{}, c.fail(resp.StatusCode, err.Error(), err)
	}

	log.Printf("✅ [%s] Generation successful (%d bytes)", name, len(data))
	return model.Image{Data: data, MIMEType: utils.DetectMIME(data, "image/png")}, nil
}

func (c *Client) fail(status int, detail string, cause error) *ProviderRequestError {
	log.Printf("❌ [%s] %s", DisplayName(c.provider), detail)
	return &ProviderRequestError{Provider: c.provider, StatusCode: status, Detail: detail, Err: cause}
}
