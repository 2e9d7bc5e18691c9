package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"log"
	"net/http"
	"strings"

	_ "github.com/kolesa-team/go-webp/decoder" // WebP 디코더 등록
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// EncodeBase64 - 이미지 바이너리를 base64로 변환
func EncodeBase64(imageData []byte) string {
	return base64.StdEncoding.EncodeToString(imageData)
}

// StripDataURL - "data:image/png;base64," 접두사 제거
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			return s[idx+1:]
		}
	}
	return s
}

// DecodeBase64 - data URL 또는 순수 base64 문자열을 디코딩
func DecodeBase64(s string) ([]byte, error) {
	raw := StripDataURL(s)
	if raw == "" {
		return nil, fmt.Errorf("empty base64 payload")
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// 패딩 없는 응답도 허용
		if alt, altErr := base64.RawStdEncoding.DecodeString(raw); altErr == nil {
			return alt, nil
		}
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}

// DataURL - base64 data URL 생성
func DataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, EncodeBase64(data))
}

// DetectMIME - 바이트 스니핑으로 MIME 타입 추정 (이미지가 아니면 fallback)
func DetectMIME(data []byte, fallback string) string {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}
	detected := http.DetectContentType(data)
	if idx := strings.Index(detected, ";"); idx >= 0 {
		detected = detected[:idx]
	}
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	return fallback
}

// IsImageMIME reports whether a MIME type names an image.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// ConvertToWebP - PNG/JPEG/WebP 바이너리를 WebP로 변환
func ConvertToWebP(data []byte, quality float32) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()
	log.Printf("✅ %s converted to WebP: %d bytes → %d bytes", format, len(data), len(webpData))
	return webpData, nil
}
