package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"bagify-server/modules/bagdescribe"
	"bagify-server/modules/carousel"
	"bagify-server/modules/common/config"
	"bagify-server/modules/common/database"
	"bagify-server/modules/common/gemini"
	"bagify-server/modules/common/redis"
	"bagify-server/modules/common/storage"
	"bagify-server/modules/common/vertexai"
	"bagify-server/modules/profile"
	"bagify-server/modules/studio"
	"bagify-server/modules/synth"
)

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(strategy string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   "healthy",
			"service":  "bagify-carousel",
			"strategy": strategy,
		})
	}
}

// 설정에 따라 가방 설명기 구성 (gemini 전략에서만 사용)
func newDescriber(ctx context.Context, cfg *config.Config) (bagdescribe.Describer, error) {
	if cfg.BagDescriber == config.DescriberOpenAI {
		return bagdescribe.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, ""), nil
	}
	apiKey := ""
	if len(cfg.GeminiAPIKeys) > 0 {
		apiKey = cfg.GeminiAPIKeys[0]
	}
	return bagdescribe.NewGemini(ctx, apiKey, cfg.GeminiTextModel)
}

// 캐러셀 저장소: REDIS_HOST가 있으면 Redis, 없거나 연결 실패 시 메모리
func newStore(cfg *config.Config) carousel.Store {
	if !cfg.RedisEnabled() {
		log.Println("💾 Using in-memory carousel store")
		return carousel.NewMemoryStore()
	}
	rdb, err := redis.Connect(cfg)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, falling back to in-memory store: %v", err)
		return carousel.NewMemoryStore()
	}
	return carousel.NewRedisStore(rdb, cfg.CarouselTTL)
}

// Supabase 게시 (선택)
func newPublisher(cfg *config.Config) studio.Publisher {
	if !cfg.SupabaseEnabled() {
		return nil
	}
	db, err := database.NewClient(cfg)
	if err != nil {
		log.Printf("⚠️  Supabase publishing disabled: %v", err)
		return nil
	}
	return studio.NewSupabasePublisher(storage.NewClient(cfg), db)
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	ctx := context.Background()

	geminiClient := gemini.NewClient(cfg.GeminiAPIKeys)
	if cfg.GeminiBackend == config.BackendVertexAI {
		vc, err := vertexai.NewClient(ctx, vertexai.Options{
			Project:         cfg.VertexAIProject,
			Location:        cfg.VertexAILocation,
			CredentialsJSON: cfg.VertexAICredentialsJSON,
			CredentialsPath: cfg.VertexAICredentialsPath,
		})
		if err != nil {
			log.Fatalf("❌ Failed to create Vertex AI client: %v", err)
		}
		geminiClient = gemini.NewWithClient(vc)
	}
	extractor := profile.NewExtractor(geminiClient, cfg.GeminiProfileModel)
	synthesizer := synth.NewSynthesizer(geminiClient, cfg.GeminiImageModel)

	strategy, err := carousel.NewStrategy(cfg.ProviderStrategy, cfg.BackendURL, &http.Client{Timeout: 5 * time.Minute})
	if err != nil {
		log.Fatalf("❌ Failed to configure strategy: %v", err)
	}

	var describer bagdescribe.Describer
	if strategy.DescribeBag {
		describer, err = newDescriber(ctx, cfg)
		if err != nil {
			log.Fatalf("❌ Failed to create bag describer: %v", err)
		}
		if closer, ok := describer.(io.Closer); ok {
			defer closer.Close()
		}
	}

	pipeline, err := carousel.NewPipeline(synthesizer, strategy, describer)
	if err != nil {
		log.Fatalf("❌ Failed to create pipeline: %v", err)
	}

	service := studio.NewService(extractor, pipeline, newStore(cfg), studio.NewHub(), newPublisher(cfg))

	// 정리 루틴 시작
	service.StartCleanupRoutine(ctx)

	// 라우터 설정
	r := mux.NewRouter()

	// CORS 미들웨어 적용
	r.Use(enableCORS)

	// 라우트 설정
	r.HandleFunc("/", healthCheck(strategy.Name)).Methods("GET")
	r.HandleFunc("/health", healthCheck(strategy.Name)).Methods("GET")
	studio.NewHandler(service).RegisterRoutes(r)

	// preflight는 enableCORS가 응답
	r.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	port := cfg.Port

	log.Printf("🚀 Bagify Carousel Server starting on port %s", port)
	log.Printf("🎨 Strategy: %s", strategy.Name)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%s/ws?session={id}", port)
	log.Printf("❤️  Health check: http://localhost:%s/health", port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", port)
	log.Printf("🧹 Admin cleanup: http://localhost:%s/admin/cleanup", port)

	// 서버 시작
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
