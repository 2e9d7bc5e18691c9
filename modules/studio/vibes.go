package studio

import "strings"

// OutfitVibe - 의상 스타일 선택지
type OutfitVibe struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OutfitVibes - 첫 번째 항목이 기본값
var OutfitVibes = []OutfitVibe{
	{ID: "quiet-luxury", Name: "Quiet Luxury"},
	{ID: "parisian-chic", Name: "Parisian Chic"},
	{ID: "streetwear-edge", Name: "Streetwear Edge"},
	{ID: "old-money", Name: "Old Money"},
	{ID: "y2k-revival", Name: "Y2K Revival"},
	{ID: "minimalist-neutral", Name: "Minimalist Neutral"},
}

// DefaultOutfitVibe returns the name selected for new sessions.
func DefaultOutfitVibe() string {
	return OutfitVibes[0].Name
}

// FindOutfitVibe matches by id or name, case-insensitively.
func FindOutfitVibe(key string) (OutfitVibe, bool) {
	key = strings.TrimSpace(key)
	for _, v := range OutfitVibes {
		if strings.EqualFold(v.ID, key) || strings.EqualFold(v.Name, key) {
			return v, true
		}
	}
	return OutfitVibe{}, false
}
