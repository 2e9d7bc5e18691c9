package carousel

import (
	"context"
	"fmt"
	"net/http"

	"bagify-server/modules/common/config"
	"bagify-server/modules/common/model"
	"bagify-server/modules/provider"
)

// Editor - 레퍼런스 사진을 편집하는 primary 공급자 (frame 1/4)
type Editor interface {
	Name() string
	Generate(ctx context.Context, ref, bag model.Image, prompt string) (model.Image, error)
}

// Synthesizer - Gemini 이미지 생성
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string, images ...model.Image) (model.Image, error)
}

// Strategy selects how the identity frames are produced.
// A nil Primary sends frames 1 and 4 straight to Gemini with no fallback.
type Strategy struct {
	Name        string
	Primary     Editor
	DescribeBag bool
}

// NewStrategy - PROVIDER_STRATEGY 값으로 전략 구성
func NewStrategy(name, backendURL string, httpClient *http.Client) (Strategy, error) {
	switch name {
	case config.StrategyImagen3:
		return Strategy{Name: name, Primary: provider.NewClient(backendURL, provider.Imagen3, httpClient)}, nil
	case config.StrategyDalle:
		return Strategy{Name: name, Primary: provider.NewClient(backendURL, provider.Dalle, httpClient)}, nil
	case config.StrategyGemini:
		return Strategy{Name: name, DescribeBag: true}, nil
	}
	return Strategy{}, fmt.Errorf("unknown provider strategy: %q", name)
}
