package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"bagify-server/modules/common/config"
)

type Client struct {
	baseURL    string
	serviceKey string
	bucket     string
	quality    float32
	httpClient *http.Client
}

// NewClient - Storage 클라이언트 생성
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.SupabaseURL,
		serviceKey: cfg.SupabaseServiceKey,
		bucket:     cfg.SupabaseBucket,
		quality:    cfg.PublishWebPQuality,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// FramePath - 캐러셀 프레임 저장 경로
func FramePath(carouselID string, frame int) string {
	return fmt.Sprintf("carousels/%s/frame%d.webp", carouselID, frame)
}

// UploadFrame - Supabase Storage에 프레임 업로드 (WebP 변환 포함)
func (c *Client) UploadFrame(ctx context.Context, carouselID string, frame int, imageData []byte, convertToWebP func([]byte, float32) ([]byte, error)) (string, int64, error) {
	webpData, err := convertToWebP(imageData, c.quality)
	if err != nil {
		return "", 0, fmt.Errorf("failed to convert frame to WebP: %w", err)
	}

	filePath := FramePath(carouselID, frame)
	log.Printf("📤 Uploading WebP frame to storage: %s", filePath)

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(webpData))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "image/webp")
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	size := int64(len(webpData))
	log.Printf("✅ WebP frame uploaded: %s (%d bytes)", filePath, size)
	return filePath, size, nil
}
