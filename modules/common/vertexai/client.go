package vertexai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Options - Vertex AI 프로젝트/리전 + 서비스 계정 자격증명
type Options struct {
	Project         string
	Location        string
	CredentialsJSON string
	CredentialsPath string
}

// LoadCredentials - JSON 문자열 > 파일 경로 > ADC 순서로 자격증명 결정
// A nil result means Application Default Credentials.
func LoadCredentials(opts Options) (*auth.Credentials, error) {
	var raw []byte
	switch {
	case opts.CredentialsJSON != "":
		log.Println("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		raw = []byte(opts.CredentialsJSON)
	case opts.CredentialsPath != "":
		log.Printf("✅ [VertexAI] Using credentials from file: %s", opts.CredentialsPath)
		data, err := os.ReadFile(opts.CredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		raw = data
	default:
		log.Println("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
		return nil, nil
	}

	// JSON 유효성 검사
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON credentials: %w", err)
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{cloudPlatformScope},
		CredentialsJSON: raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load Vertex AI credentials: %w", err)
	}
	return creds, nil
}

// NewClient - Vertex AI 백엔드 genai 클라이언트 생성
func NewClient(ctx context.Context, opts Options) (*genai.Client, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("VERTEXAI_PROJECT is required for the Vertex AI backend")
	}
	creds, err := LoadCredentials(opts)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     opts.Project,
		Location:    opts.Location,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	log.Printf("✅ [VertexAI] Client initialized for project=%s, location=%s", opts.Project, opts.Location)
	return client, nil
}
