package studio

import (
	"context"
	"fmt"
	"log"

	"bagify-server/modules/common/database"
	"bagify-server/modules/common/model"
	"bagify-server/modules/common/storage"
	"bagify-server/modules/common/utils"
)

// FrameUploader - storage.Client
type FrameUploader interface {
	UploadFrame(ctx context.Context, carouselID string, frame int, imageData []byte, convertToWebP func([]byte, float32) ([]byte, error)) (string, int64, error)
}

// GenerationRecorder - database.Client
type GenerationRecorder interface {
	InsertGeneration(ctx context.Context, gen database.Generation) error
	MarkCompleted(ctx context.Context, generationID string, framePaths []string) error
	MarkFailed(ctx context.Context, generationID string, reason string) error
	FetchGeneration(ctx context.Context, generationID string) (*database.Generation, error)
}

// SupabasePublisher - 완료된 캐러셀을 WebP로 Storage에 올리고 생성 기록 저장
type SupabasePublisher struct {
	uploader FrameUploader
	recorder GenerationRecorder
	convert  func([]byte, float32) ([]byte, error)
}

func NewSupabasePublisher(uploader FrameUploader, recorder GenerationRecorder) *SupabasePublisher {
	return &SupabasePublisher{
		uploader: uploader,
		recorder: recorder,
		convert:  utils.ConvertToWebP,
	}
}

// Publish records a publishing row, uploads every frame, then marks the row
// completed. A failed upload marks it failed.
func (p *SupabasePublisher) Publish(ctx context.Context, sessionID string, c *model.GeneratedCarousel) error {
	log.Printf("📦 [Publish] Publishing carousel %s (%d frames)", c.ID, len(c.Frames))

	if err := p.recorder.InsertGeneration(ctx, database.NewGeneration(sessionID, c)); err != nil {
		return err
	}

	paths := make([]string, 0, len(c.Frames))
	var totalSize int64
	for i, frame := range c.Frames {
		path, size, err := p.uploader.UploadFrame(ctx, c.ID, i+1, frame.Data, p.convert)
		if err != nil {
			uploadErr := fmt.Errorf("frame %d upload failed: %w", i+1, err)
			if markErr := p.recorder.MarkFailed(ctx, c.ID, uploadErr.Error()); markErr != nil {
				log.Printf("⚠️  [Publish] Failed to mark generation %s as failed: %v", c.ID, markErr)
			}
			return uploadErr
		}
		paths = append(paths, path)
		totalSize += size
	}

	if err := p.recorder.MarkCompleted(ctx, c.ID, paths); err != nil {
		return err
	}
	log.Printf("✅ [Publish] Carousel %s published (%d bytes)", c.ID, totalSize)
	return nil
}

// Publication - 캐러셀 게시 상태 조회
func (p *SupabasePublisher) Publication(ctx context.Context, carouselID string) (*database.Generation, error) {
	return p.recorder.FetchGeneration(ctx, carouselID)
}

var (
	_ FrameUploader      = (*storage.Client)(nil)
	_ GenerationRecorder = (*database.Client)(nil)
)
