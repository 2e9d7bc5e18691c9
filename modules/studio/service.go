package studio

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"bagify-server/modules/carousel"
	"bagify-server/modules/common/database"
	"bagify-server/modules/common/model"
	"bagify-server/modules/profile"
)

// Extractor - 프로필 추출 + 레퍼런스 잠금
type Extractor interface {
	ExtractAll(ctx context.Context, refs *model.ReferenceImageSet) (*profile.Profiles, *profile.LockedReferences, error)
}

// Runner - 캐러셀 파이프라인
type Runner interface {
	Run(ctx context.Context, req carousel.Request, reporter carousel.Reporter) (*model.GeneratedCarousel, error)
	Strategy() string
}

// Publisher - 완료된 캐러셀 외부 게시 (실패해도 세션에는 영향 없음)
type Publisher interface {
	Publish(ctx context.Context, sessionID string, c *model.GeneratedCarousel) error
}

// PublicationReader - 게시 상태 조회 (SupabasePublisher)
type PublicationReader interface {
	Publication(ctx context.Context, carouselID string) (*database.Generation, error)
}

// BagLabel - 결과물 라벨 덮어쓰기 (빈 값은 무시)
type BagLabel struct {
	Brand string
	Model string
}

// Metrics - 서버 메트릭
type Metrics struct {
	TotalSessions    int       `json:"totalSessions"`
	ActiveSessions   int       `json:"activeSessions"`
	TotalConnections int       `json:"totalConnections"`
	CurrentClients   int       `json:"currentClients"`
	RunsCompleted    int       `json:"runsCompleted"`
	RunsFailed       int       `json:"runsFailed"`
	Strategy         string    `json:"strategy"`
	StartTime        time.Time `json:"startTime"`
	Uptime           string    `json:"uptime"`
}

// Service - 세션 상태 머신
type Service struct {
	extractor Extractor
	runner    Runner
	store     carousel.Store
	publisher Publisher
	hub       *Hub

	mutex    sync.RWMutex
	sessions map[string]*Session

	metricsMutex  sync.Mutex
	totalSessions int
	runsCompleted int
	runsFailed    int
	startTime     time.Time

	publishing sync.WaitGroup
	now        func() time.Time
}

// NewService - publisher는 nil 가능
func NewService(extractor Extractor, runner Runner, store carousel.Store, hub *Hub, publisher Publisher) *Service {
	if hub == nil {
		hub = NewHub()
	}
	return &Service{
		extractor: extractor,
		runner:    runner,
		store:     store,
		publisher: publisher,
		hub:       hub,
		sessions:  make(map[string]*Session),
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Hub returns the progress hub.
func (s *Service) Hub() *Hub {
	return s.hub
}

// CreateSession - 새 세션 생성
func (s *Service) CreateSession() View {
	id := uuid.New().String()
	sess := newSession(id, s.now())

	s.mutex.Lock()
	s.sessions[id] = sess
	active := len(s.sessions)
	s.mutex.Unlock()

	s.metricsMutex.Lock()
	s.totalSessions++
	s.metricsMutex.Unlock()

	log.Printf("✅ Created new session: %s (Active: %d)", id, active)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view()
}

func (s *Service) get(id string) (*Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// lock returns the session with its lock held. A session evicted after the
// lookup is reported as not found.
func (s *Service) lock(id string) (*Session, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	if sess.evicted {
		sess.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// update runs fn under the session lock and returns the resulting view.
func (s *Service) update(id string, fn func(sess *Session) error) (View, error) {
	sess, err := s.lock(id)
	if err != nil {
		return View{}, err
	}
	defer sess.mu.Unlock()

	sess.lastActivity = s.now()
	if err := fn(sess); err != nil {
		return sess.view(), err
	}
	return sess.view(), nil
}

// GetSession - 세션 뷰 조회
func (s *Service) GetSession(id string) (View, error) {
	return s.update(id, func(*Session) error { return nil })
}

// SetReference - 레퍼런스 슬롯 설정 (추출 후에도 가능, 잠긴 스냅샷에는 영향 없음)
func (s *Service) SetReference(id string, slot model.Slot, img model.Image) (View, error) {
	return s.update(id, func(sess *Session) error {
		if img.Empty() {
			return validationf("upload", "reference image %s is empty", slot)
		}
		stored := img.Clone()
		sess.refs.Set(slot, &stored)
		return nil
	})
}

// ClearReference - 레퍼런스 슬롯 비우기
func (s *Service) ClearReference(id string, slot model.Slot) (View, error) {
	return s.update(id, func(sess *Session) error {
		sess.refs.Set(slot, nil)
		return nil
	})
}

// SetBag - 타겟 가방 설정, 프로필은 유지
func (s *Service) SetBag(id string, img model.Image, label BagLabel) (View, error) {
	return s.update(id, func(sess *Session) error {
		if img.Empty() {
			return validationf("upload", "bag image is empty")
		}
		brand, err := cleanBagLabel("brand", label.Brand)
		if err != nil {
			return err
		}
		modelName, err := cleanBagLabel("model", label.Model)
		if err != nil {
			return err
		}

		stored := img.Clone()
		sess.bag = &stored

		record := model.DefaultBagRecord()
		if brand != "" {
			record.Brand = brand
		}
		if modelName != "" {
			record.Model = modelName
		}
		sess.bagRecord = record
		return nil
	})
}

const maxBagLabelLength = 80

// cleanBagLabel trims a label and rejects anything that is not plain text.
func cleanBagLabel(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) > maxBagLabelLength {
		return "", validationf("upload", "bag %s must be at most %d characters", field, maxBagLabelLength)
	}
	if strings.ContainsFunc(value, unicode.IsControl) || strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") {
		return "", validationf("upload", "bag %s contains unsupported characters", field)
	}
	return value, nil
}

// ClearBag - 타겟 가방 제거
func (s *Service) ClearBag(id string) (View, error) {
	return s.update(id, func(sess *Session) error {
		sess.bag = nil
		sess.bagRecord = model.DefaultBagRecord()
		return nil
	})
}

// SelectOutfitVibe - 추출 전에만 변경 가능
func (s *Service) SelectOutfitVibe(id, key string) (View, error) {
	return s.update(id, func(sess *Session) error {
		if sess.busy {
			return ErrBusy
		}
		if !sess.actions().SelectVibe {
			return validationf("selectVibe", "outfit vibe is locked once profiles are extracted")
		}
		vibe, ok := FindOutfitVibe(key)
		if !ok {
			return validationf("selectVibe", "unknown outfit vibe %q", key)
		}
		sess.outfitVibe = vibe.Name
		return nil
	})
}

// Extract - 프로필 3종 동시 추출 후 레퍼런스 잠금
// The run is detached from ctx cancellation.
func (s *Service) Extract(ctx context.Context, id string) (View, error) {
	sess, err := s.lock(id)
	if err != nil {
		return View{}, err
	}
	if sess.busy {
		v := sess.view()
		sess.mu.Unlock()
		return v, ErrBusy
	}
	if !sess.actions().Extract {
		reason := "upload all four reference images before extracting profiles"
		if sess.profiles != nil {
			reason = "profiles are already extracted; start over to use new references"
		}
		v := sess.view()
		sess.mu.Unlock()
		return v, validationf("extract", "%s", reason)
	}
	refs := sess.refs
	sess.busy = true
	sess.status = model.StatusExtracting
	sess.lastErr = nil
	sess.mu.Unlock()

	s.hub.Broadcast(Message{Type: MessageExtractionStarted, SessionID: id, Status: model.StatusExtracting})
	profiles, locked, runErr := s.extractor.ExtractAll(context.WithoutCancel(ctx), &refs)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.busy = false
	sess.lastActivity = s.now()

	if runErr != nil {
		sess.status = model.StatusFailed
		sess.lastErr = runErr
		ev := Classify(runErr, id)
		s.hub.Broadcast(Message{Type: MessageExtractionFailed, SessionID: id, Status: sess.status, Error: &ev})
		return sess.view(), runErr
	}

	sess.profiles = profiles
	sess.locked = locked
	sess.status = model.StatusExtracted
	s.hub.Broadcast(Message{Type: MessageExtractionCompleted, SessionID: id, Status: sess.status})
	return sess.view(), nil
}

// Generate - 잠긴 레퍼런스 + 현재 가방으로 파이프라인 실행
// Also the retry action of the remediation view.
func (s *Service) Generate(ctx context.Context, id string) (View, error) {
	sess, err := s.lock(id)
	if err != nil {
		return View{}, err
	}
	if sess.busy {
		v := sess.view()
		sess.mu.Unlock()
		return v, ErrBusy
	}
	if !sess.actions().Generate {
		v := sess.view()
		sess.mu.Unlock()
		return v, validationf("generate", "Cannot generate. Please ensure profiles are extracted and bag image is uploaded.")
	}
	req := carousel.Request{
		Locked:     sess.locked,
		Profiles:   sess.profiles,
		Bag:        sess.bag.Clone(),
		BagRecord:  sess.bagRecord,
		OutfitVibe: sess.outfitVibe,
	}
	sess.busy = true
	sess.status = model.StatusGenerating
	sess.carousel = nil
	sess.lastErr = nil
	sess.mu.Unlock()

	result, runErr := s.runner.Run(context.WithoutCancel(ctx), req, s.hub.Reporter(id))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.busy = false
	sess.lastActivity = s.now()

	if runErr != nil {
		sess.status = model.StatusFailed
		sess.lastErr = runErr
		s.countRun(false)
		return sess.view(), runErr
	}

	sess.carousel = result
	sess.status = model.StatusCompleted
	s.countRun(true)

	if err := s.store.Save(context.WithoutCancel(ctx), result); err != nil {
		log.Printf("⚠️  Failed to store carousel %s: %v", result.ID, err)
	}
	if s.publisher != nil {
		s.publishing.Add(1)
		go func() {
			defer s.publishing.Done()
			if err := s.publisher.Publish(context.WithoutCancel(ctx), id, result); err != nil {
				log.Printf("⚠️  Failed to publish carousel %s: %v", result.ID, err)
			}
		}()
	}
	return sess.view(), nil
}

func (s *Service) countRun(ok bool) {
	s.metricsMutex.Lock()
	defer s.metricsMutex.Unlock()
	if ok {
		s.runsCompleted++
	} else {
		s.runsFailed++
	}
}

// Publication returns the publishing record of a carousel.
func (s *Service) Publication(ctx context.Context, carouselID string) (*database.Generation, error) {
	reader, ok := s.publisher.(PublicationReader)
	if !ok {
		return nil, ErrPublishingDisabled
	}
	return reader.Publication(ctx, carouselID)
}

// WaitPublished blocks until background publishes finish.
func (s *Service) WaitPublished() {
	s.publishing.Wait()
}

// Carousel - 세션의 최신 캐러셀
func (s *Service) Carousel(id string) (*model.GeneratedCarousel, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	if sess.carousel == nil {
		return nil, validationf("download", "no carousel has been generated yet")
	}
	return sess.carousel, nil
}

// StoredCarousel - 저장소에서 id로 조회
func (s *Service) StoredCarousel(ctx context.Context, carouselID string) (*model.GeneratedCarousel, error) {
	return s.store.Get(ctx, carouselID)
}

// NewBag - "다른 가방으로 생성": 가방/결과만 비우고 프로필은 유지
func (s *Service) NewBag(id string) (View, error) {
	return s.update(id, func(sess *Session) error {
		if sess.busy {
			return ErrBusy
		}
		if !sess.actions().NewBag {
			return validationf("newBag", "extract profiles before switching bags")
		}
		sess.bag = nil
		sess.bagRecord = model.DefaultBagRecord()
		sess.carousel = nil
		sess.lastErr = nil
		sess.status = model.StatusExtracted
		return nil
	})
}

// Reset - "처음부터 다시": 모든 상태 초기화
func (s *Service) Reset(id string) (View, error) {
	v, err := s.update(id, func(sess *Session) error {
		if sess.busy {
			return ErrBusy
		}
		sess.refs = model.ReferenceImageSet{}
		sess.bag = nil
		sess.bagRecord = model.DefaultBagRecord()
		sess.outfitVibe = DefaultOutfitVibe()
		sess.profiles = nil
		sess.locked = nil
		sess.carousel = nil
		sess.lastErr = nil
		sess.status = model.StatusIdle
		return nil
	})
	if err == nil {
		s.hub.Broadcast(Message{Type: MessageSessionReset, SessionID: id, Status: model.StatusIdle})
	}
	return v, err
}

// Metrics - 서버 메트릭 스냅샷
func (s *Service) Metrics() Metrics {
	s.mutex.RLock()
	active := len(s.sessions)
	s.mutex.RUnlock()

	current, total := s.hub.Stats()

	s.metricsMutex.Lock()
	defer s.metricsMutex.Unlock()
	return Metrics{
		TotalSessions:    s.totalSessions,
		ActiveSessions:   active,
		TotalConnections: total,
		CurrentClients:   current,
		RunsCompleted:    s.runsCompleted,
		RunsFailed:       s.runsFailed,
		Strategy:         s.runner.Strategy(),
		StartTime:        s.startTime,
		Uptime:           time.Since(s.startTime).String(),
	}
}

const (
	expiredThreshold  = 24 * time.Hour
	inactiveThreshold = 2 * time.Hour
)

// CleanupExpired - 만료(24시간) 또는 비활성(2시간, 구독자 없음) 세션 정리
func (s *Service) CleanupExpired() int {
	now := s.now()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	cleaned := 0
	for id, sess := range s.sessions {
		// held until the session is marked evicted so no run can start in between
		sess.mu.Lock()
		isExpired := now.Sub(sess.createdAt) > expiredThreshold
		isInactive := now.Sub(sess.lastActivity) > inactiveThreshold && s.hub.Subscribers(id) == 0
		if sess.busy || !(isExpired || isInactive) {
			sess.mu.Unlock()
			continue
		}
		sess.evicted = true
		sess.mu.Unlock()

		s.hub.CloseSession(id)
		delete(s.sessions, id)
		cleaned++

		reason := "expired"
		if isInactive {
			reason = "inactive"
		}
		log.Printf("⏰ Cleaned up %s session: %s", reason, id)
	}

	if cleaned > 0 {
		log.Printf("🧼 Cleaned up %d expired/inactive sessions (Active: %d)", cleaned, len(s.sessions))
	}
	return cleaned
}

// StartCleanupRoutine - 30분마다 세션 정리
func (s *Service) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired()
			}
		}
	}()
	log.Printf("🔄 Started session cleanup routine (every 30min)")
}

// IsNotFound reports whether err means the session or carousel does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, carousel.ErrNotFound) ||
		errors.Is(err, database.ErrGenerationNotFound) ||
		errors.Is(err, ErrPublishingDisabled)
}
