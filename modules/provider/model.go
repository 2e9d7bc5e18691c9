package provider

import (
	"fmt"
	"strings"
)

const (
	Imagen3 = "imagen3"
	Dalle   = "dalle"
)

// GenerateRequest - 백엔드 /api/{provider}/generate 요청 바디
type GenerateRequest struct {
	ReferenceImageBase64 string `json:"referenceImageBase64"`
	BagImageBase64       string `json:"bagImageBase64"`
	Prompt               string `json:"prompt"`
}

// GenerateResponse - 백엔드 응답
type GenerateResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image,omitempty"`
	Error   string `json:"error,omitempty"`
}

// signatureFailureMarker is what the backend reports when its service-account credential is rejected.
const signatureFailureMarker = "invalid jwt signature"

// ProviderRequestError - 백엔드 HTTP/논리 실패를 하나로 정규화
type ProviderRequestError struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Detail     string
	Err        error
}

func (e *ProviderRequestError) Error() string {
	return fmt.Sprintf("%s generation failed: %s", DisplayName(e.Provider), e.Detail)
}

func (e *ProviderRequestError) Unwrap() error {
	return e.Err
}

// IsSignatureFailure reports whether the backend rejected its own credential.
func (e *ProviderRequestError) IsSignatureFailure() bool {
	return strings.Contains(strings.ToLower(e.Detail), signatureFailureMarker)
}

// DisplayName - 로그/에러 메시지용 이름
func DisplayName(provider string) string {
	switch provider {
	case Imagen3:
		return "Imagen 3"
	case Dalle:
		return "DALL-E"
	}
	return provider
}
