package studio

import (
	"sync"
	"time"

	"bagify-server/modules/common/model"
	"bagify-server/modules/export"
	"bagify-server/modules/profile"
)

// Session - 한 사용자의 업로드/추출/생성 상태
type Session struct {
	mu sync.Mutex

	id           string
	createdAt    time.Time
	lastActivity time.Time

	refs       model.ReferenceImageSet
	bag        *model.Image
	bagRecord  model.BagRecord
	outfitVibe string

	// set together, only by a successful extraction
	profiles *profile.Profiles
	locked   *profile.LockedReferences

	carousel *model.GeneratedCarousel
	status   string
	busy     bool
	lastErr  error

	// set by cleanup; an evicted session accepts no further actions
	evicted bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:           id,
		createdAt:    now,
		lastActivity: now,
		bagRecord:    model.DefaultBagRecord(),
		outfitVibe:   DefaultOutfitVibe(),
		status:       model.StatusIdle,
	}
}

// Actions - 현재 호출 가능한 액션
type Actions struct {
	SelectVibe bool `json:"selectVibe"`
	Extract    bool `json:"extract"`
	Generate   bool `json:"generate"`
	Download   bool `json:"download"`
	NewBag     bool `json:"newBag"`
	Reset      bool `json:"reset"`
}

// actions must be called with s.mu held.
func (s *Session) actions() Actions {
	extracted := s.profiles != nil
	return Actions{
		SelectVibe: !extracted && !s.busy,
		Extract:    s.refs.IsUploadComplete() && !extracted && !s.busy,
		Generate:   extracted && s.bag != nil && !s.busy,
		Download:   s.carousel != nil,
		NewBag:     extracted && !s.busy,
		Reset:      !s.busy,
	}
}

// CarouselSummary - 세션 뷰에 포함되는 결과 요약
type CarouselSummary struct {
	ID             string          `json:"id"`
	Bag            model.BagRecord `json:"bag"`
	Strategy       string          `json:"strategy"`
	FrameCount     int             `json:"frameCount"`
	FallbackFrames []int           `json:"fallbackFrames,omitempty"`
	GeneratedAt    time.Time       `json:"generatedAt"`
	ArchiveName    string          `json:"archiveName"`
}

// View - GET /api/sessions/{id} 응답
type View struct {
	ID                string              `json:"id"`
	Status            string              `json:"status"`
	Busy              bool                `json:"busy"`
	References        map[model.Slot]bool `json:"references"`
	UploadComplete    bool                `json:"uploadComplete"`
	BagPresent        bool                `json:"bagPresent"`
	BagRecord         model.BagRecord     `json:"bagRecord"`
	OutfitVibe        string              `json:"outfitVibe"`
	ProfilesExtracted bool                `json:"profilesExtracted"`
	Profiles          *profile.Profiles   `json:"profiles,omitempty"`
	Actions           Actions             `json:"actions"`
	Carousel          *CarouselSummary    `json:"carousel,omitempty"`
	LastError         *ErrorView          `json:"lastError,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	LastActivity      time.Time           `json:"lastActivity"`
}

// view must be called with s.mu held.
func (s *Session) view() View {
	v := View{
		ID:                s.id,
		Status:            s.status,
		Busy:              s.busy,
		References:        s.refs.Filled(),
		UploadComplete:    s.refs.IsUploadComplete(),
		BagPresent:        s.bag != nil,
		BagRecord:         s.bagRecord,
		OutfitVibe:        s.outfitVibe,
		ProfilesExtracted: s.profiles != nil,
		Profiles:          s.profiles,
		Actions:           s.actions(),
		CreatedAt:         s.createdAt,
		LastActivity:      s.lastActivity,
	}
	if c := s.carousel; c != nil {
		v.Carousel = &CarouselSummary{
			ID:             c.ID,
			Bag:            c.Bag,
			Strategy:       c.Strategy,
			FrameCount:     len(c.Frames),
			FallbackFrames: c.FallbackFrames,
			GeneratedAt:    c.GeneratedAt,
			ArchiveName:    export.ArchiveName(c.Bag),
		}
	}
	if s.lastErr != nil {
		ev := Classify(s.lastErr, s.id)
		v.LastError = &ev
	}
	return v
}
