package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"

	"bagify-server/modules/common/config"
	"bagify-server/modules/common/model"
)

const generationsTable = "bagify_generations"

// StatusPublishing - 업로드 진행 중인 레코드
const StatusPublishing = "publishing"

var ErrGenerationNotFound = errors.New("generation not found")

// Generation - bagify_generations 테이블 레코드
type Generation struct {
	GenerationID string   `json:"generation_id"`
	SessionID    string   `json:"session_id"`
	Status       string   `json:"status"`
	Strategy     string   `json:"strategy"`
	BagBrand     string   `json:"bag_brand"`
	BagModel     string   `json:"bag_model"`
	FramePaths   []string `json:"frame_paths,omitempty"`
	Fallback     []int    `json:"fallback_frames,omitempty"`
	ErrorMessage *string  `json:"error_message,omitempty"`
}

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient(cfg *config.Config) (*Client, error) {
	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &Client{
		supabase: supabaseClient,
	}, nil
}

// NewGeneration - 게시 시작 시점의 레코드 (프레임 경로는 완료 시 채움)
func NewGeneration(sessionID string, carousel *model.GeneratedCarousel) Generation {
	return Generation{
		GenerationID: carousel.ID,
		SessionID:    sessionID,
		Status:       StatusPublishing,
		Strategy:     carousel.Strategy,
		BagBrand:     carousel.Bag.Brand,
		BagModel:     carousel.Bag.Model,
		Fallback:     carousel.FallbackFrames,
	}
}

// InsertGeneration - bagify_generations에 레코드 추가
func (c *Client) InsertGeneration(ctx context.Context, gen Generation) error {
	log.Printf("💾 Creating generation record: %s", gen.GenerationID)

	data, _, err := c.supabase.From(generationsTable).
		Insert(gen, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert generation record: %w", err)
	}

	var rows []Generation
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		log.Printf("✅ Generation record created: %s (%s)", rows[0].GenerationID, rows[0].Status)
	}
	return nil
}

// FetchGeneration - generation_id로 레코드 조회
func (c *Client) FetchGeneration(ctx context.Context, generationID string) (*Generation, error) {
	var rows []Generation

	data, _, err := c.supabase.From(generationsTable).
		Select("*", "exact", false).
		Eq("generation_id", generationID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query Supabase: %w", err)
	}

	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGenerationNotFound, generationID)
	}
	return &rows[0], nil
}

// MarkCompleted - 업로드 완료, 프레임 경로 기록
func (c *Client) MarkCompleted(ctx context.Context, generationID string, framePaths []string) error {
	updateData := map[string]interface{}{
		"status":      model.StatusCompleted,
		"frame_paths": framePaths,
	}

	_, _, err := c.supabase.From(generationsTable).
		Update(updateData, "", "").
		Eq("generation_id", generationID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update generation status: %w", err)
	}

	log.Printf("✅ Generation %s marked as completed (%d frames)", generationID, len(framePaths))
	return nil
}

// MarkFailed - 실패 상태로 업데이트
func (c *Client) MarkFailed(ctx context.Context, generationID string, reason string) error {
	updateData := map[string]interface{}{
		"status":        model.StatusFailed,
		"error_message": reason,
	}

	_, _, err := c.supabase.From(generationsTable).
		Update(updateData, "", "").
		Eq("generation_id", generationID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update generation status: %w", err)
	}

	log.Printf("⚠️  Generation %s marked as failed", generationID)
	return nil
}
