package bagdescribe

import (
	"context"
	"errors"

	"bagify-server/modules/common/model"
)

// Describer - 가방 이미지를 자유 텍스트로 설명 (gemini 전략 전용)
type Describer interface {
	Describe(ctx context.Context, bag model.Image) (string, error)
}

// ErrEmptyDescription is returned when the service answered without any text.
var ErrEmptyDescription = errors.New("bag description came back empty")

const describePrompt = `Describe the handbag in this image as a precise inventory that another model can use to reproduce it exactly.
Cover each of the following on its own line:
- Brand (if identifiable)
- Bag type and silhouette
- Color(s)
- Material and texture
- Pattern or logo placement
- Hardware (clasps, zippers, chains, metal finish)
- Distinguishing features
Be specific and factual. Do not add styling advice.`
