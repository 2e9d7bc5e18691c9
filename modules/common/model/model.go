package model

import (
	"fmt"
	"time"
)

// Image - 업로드/생성 이미지 (원본 바이트 + MIME 타입)
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// Clone - 바이트까지 복사한 독립 사본
func (img Image) Clone() Image {
	data := make([]byte, len(img.Data))
	copy(data, img.Data)
	return Image{Data: data, MIMEType: img.MIMEType}
}

// Empty reports whether the image carries no payload.
func (img Image) Empty() bool {
	return len(img.Data) == 0
}

// Slot - 레퍼런스 이미지 슬롯 이름
type Slot string

const (
	SlotFrame1 Slot = "frame1"
	SlotFrame2 Slot = "frame2"
	SlotFrame3 Slot = "frame3"
	SlotFrame4 Slot = "frame4"
)

// Slots - 슬롯 순서 (frame1..frame4)
var Slots = []Slot{SlotFrame1, SlotFrame2, SlotFrame3, SlotFrame4}

// ParseSlot - 문자열을 Slot으로 변환
func ParseSlot(s string) (Slot, error) {
	for _, slot := range Slots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", fmt.Errorf("unknown reference slot: %q", s)
}

// ReferenceImageSet - 사용자가 업로드 중인 4개의 레퍼런스 슬롯 (mutable)
type ReferenceImageSet struct {
	Frame1 *Image
	Frame2 *Image
	Frame3 *Image
	Frame4 *Image
}

// Get returns the image in a slot, nil when empty.
func (r *ReferenceImageSet) Get(slot Slot) *Image {
	switch slot {
	case SlotFrame1:
		return r.Frame1
	case SlotFrame2:
		return r.Frame2
	case SlotFrame3:
		return r.Frame3
	case SlotFrame4:
		return r.Frame4
	}
	return nil
}

// Set replaces a slot. A nil image clears it.
func (r *ReferenceImageSet) Set(slot Slot, img *Image) {
	switch slot {
	case SlotFrame1:
		r.Frame1 = img
	case SlotFrame2:
		r.Frame2 = img
	case SlotFrame3:
		r.Frame3 = img
	case SlotFrame4:
		r.Frame4 = img
	}
}

// IsUploadComplete - 4개 슬롯 모두 채워졌는지
func (r *ReferenceImageSet) IsUploadComplete() bool {
	for _, slot := range Slots {
		if r.Get(slot) == nil {
			return false
		}
	}
	return true
}

// Filled - 채워진 슬롯별 여부
func (r *ReferenceImageSet) Filled() map[Slot]bool {
	out := make(map[Slot]bool, len(Slots))
	for _, slot := range Slots {
		out[slot] = r.Get(slot) != nil
	}
	return out
}

// BagRecord - 결과물 라벨링용 가방 정보 (이미지에서 추출하지 않음)
type BagRecord struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	Color     string `json:"color"`
	Material  string `json:"material"`
	StyleCode string `json:"styleCode"`
	Details   string `json:"details"`
	Category  string `json:"category"`
}

// DefaultBagRecord - 업로드된 타겟 가방용 기본 레코드
func DefaultBagRecord() BagRecord {
	return BagRecord{
		ID:        "target-bag",
		Brand:     "Your Brand",
		Model:     "Your Model",
		Color:     "Custom",
		Material:  "Premium Material",
		StyleCode: "CUSTOM-001",
		Details:   "Target bag from uploaded image",
		Category:  "Custom",
	}
}

// FrameCount - 캐러셀 프레임 수
const FrameCount = 4

// GeneratedCarousel - 파이프라인 1회 실행 결과 (4장, 순서 고정)
type GeneratedCarousel struct {
	ID             string    `json:"id"`
	Bag            BagRecord `json:"bag"`
	Frames         []Image   `json:"-"`
	Strategy       string    `json:"strategy"`
	FallbackFrames []int     `json:"fallbackFrames,omitempty"`
	GeneratedAt    time.Time `json:"generatedAt"`
}

// Validate - 프레임 수 확인
func (c *GeneratedCarousel) Validate() error {
	if len(c.Frames) != FrameCount {
		return fmt.Errorf("carousel must have exactly %d frames, got %d", FrameCount, len(c.Frames))
	}
	for i, f := range c.Frames {
		if f.Empty() {
			return fmt.Errorf("carousel frame %d is empty", i+1)
		}
	}
	return nil
}

const (
	StatusIdle       = "idle"
	StatusExtracting = "extracting"
	StatusExtracted  = "extracted"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
