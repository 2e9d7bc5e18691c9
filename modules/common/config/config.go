package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port string

	// Gemini API (comma separated keys are rotated on 429)
	GeminiBackend      string
	GeminiAPIKeys      []string
	GeminiProfileModel string
	GeminiImageModel   string
	GeminiTextModel    string

	// Vertex AI (GEMINI_BACKEND=vertexai)
	VertexAIProject         string
	VertexAILocation        string
	VertexAICredentialsJSON string
	VertexAICredentialsPath string

	// Alternate image backend
	BackendURL       string
	ProviderStrategy string

	// Bag description
	BagDescriber string
	OpenAIAPIKey string
	OpenAIModel  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool
	CarouselTTL   time.Duration

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string
	PublishWebPQuality float32
}

const (
	StrategyImagen3 = "imagen3"
	StrategyDalle   = "dalle"
	StrategyGemini  = "gemini"

	BackendGeminiAPI = "gemini"
	BackendVertexAI  = "vertexai"

	DescriberGemini = "gemini"
	DescriberOpenAI = "openai"
)

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	useTLS := true
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	ttlHours := 24
	if ttlStr := os.Getenv("CAROUSEL_TTL_HOURS"); ttlStr != "" {
		if parsed, err := strconv.Atoi(ttlStr); err == nil && parsed > 0 {
			ttlHours = parsed
		}
	}

	quality := float32(90)
	if qStr := os.Getenv("PUBLISH_WEBP_QUALITY"); qStr != "" {
		if parsed, err := strconv.ParseFloat(qStr, 32); err == nil && parsed > 0 && parsed <= 100 {
			quality = float32(parsed)
		}
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		GeminiBackend:      strings.ToLower(getEnv("GEMINI_BACKEND", BackendGeminiAPI)),
		GeminiAPIKeys:      splitKeys(os.Getenv("GEMINI_API_KEY")),
		GeminiProfileModel: getEnv("GEMINI_PROFILE_MODEL", "gemini-2.5-pro"),
		GeminiImageModel:   getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiTextModel:    getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),

		VertexAIProject:         getEnv("VERTEXAI_PROJECT", ""),
		VertexAILocation:        getEnv("VERTEXAI_LOCATION", "us-central1"),
		VertexAICredentialsJSON: os.Getenv("VERTEXAI_CREDENTIALS_JSON"),
		VertexAICredentialsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),

		BackendURL:       strings.TrimRight(getEnv("BACKEND_URL", "https://bagify-backend.vercel.app"), "/"),
		ProviderStrategy: strings.ToLower(getEnv("PROVIDER_STRATEGY", StrategyImagen3)),

		BagDescriber: strings.ToLower(getEnv("BAG_DESCRIBER", DescriberGemini)),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,
		CarouselTTL:   time.Duration(ttlHours) * time.Hour,

		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", "carousels"),
		PublishWebPQuality: quality,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	if cfg.GeminiBackend == BackendVertexAI {
		log.Printf("   Gemini: Vertex AI %s/%s, profile=%s image=%s", cfg.VertexAIProject, cfg.VertexAILocation, cfg.GeminiProfileModel, cfg.GeminiImageModel)
	} else {
		log.Printf("   Gemini: %d key(s), profile=%s image=%s", len(cfg.GeminiAPIKeys), cfg.GeminiProfileModel, cfg.GeminiImageModel)
	}
	log.Printf("   Strategy: %s (backend: %s)", cfg.ProviderStrategy, cfg.BackendURL)
	log.Printf("   Bag describer: %s", cfg.BagDescriber)
	if cfg.RedisEnabled() {
		log.Printf("   Redis: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	}
	if cfg.SupabaseEnabled() {
		log.Printf("   Supabase: %s (bucket: %s)", cfg.SupabaseURL, cfg.SupabaseBucket)
	}
	if cfg.GeminiBackend == BackendGeminiAPI && len(cfg.GeminiAPIKeys) == 0 {
		log.Println("⚠️  GEMINI_API_KEY is not set - every generation call will fail")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.GeminiBackend {
	case BackendGeminiAPI:
	case BackendVertexAI:
		if c.VertexAIProject == "" {
			return fmt.Errorf("VERTEXAI_PROJECT is required when GEMINI_BACKEND=vertexai")
		}
	default:
		return fmt.Errorf("GEMINI_BACKEND must be gemini or vertexai (got %q)", c.GeminiBackend)
	}
	switch c.ProviderStrategy {
	case StrategyImagen3, StrategyDalle, StrategyGemini:
	default:
		return fmt.Errorf("PROVIDER_STRATEGY must be one of imagen3, dalle, gemini (got %q)", c.ProviderStrategy)
	}
	switch c.BagDescriber {
	case DescriberGemini:
	case DescriberOpenAI:
		// 가방 설명은 gemini 전략에서만 사용
		if c.ProviderStrategy == StrategyGemini && c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when BAG_DESCRIBER=openai and PROVIDER_STRATEGY=gemini")
		}
	default:
		return fmt.Errorf("BAG_DESCRIBER must be gemini or openai (got %q)", c.BagDescriber)
	}
	if c.ProviderStrategy != StrategyGemini && c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required for strategy %s", c.ProviderStrategy)
	}
	if c.SupabaseURL != "" && c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required when SUPABASE_URL is set")
	}
	return nil
}

// RedisEnabled - REDIS_HOST 설정 시에만 Redis 사용
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// SupabaseEnabled - 결과 게시용 Supabase 사용 여부
func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
