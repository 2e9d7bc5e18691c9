// Package profiletest provides helpers for tests that need extracted
// profiles or a locked reference snapshot.
package profiletest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"google.golang.org/genai"

	"bagify-server/modules/common/model"
	"bagify-server/modules/profile"
)

// SchemaGenerator answers every JSON-schema request with a filled object.
type SchemaGenerator struct{}

func (SchemaGenerator) GenerateContent(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if cfg == nil || cfg.ResponseSchema == nil {
		return nil, fmt.Errorf("profiletest: request without response schema")
	}
	obj := make(map[string]string, len(cfg.ResponseSchema.Required))
	for _, name := range cfg.ResponseSchema.Required {
		obj[name] = name + " value"
	}
	raw, _ := json.Marshal(obj)
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(string(raw), genai.RoleModel),
		}},
	}, nil
}

// Image returns a small distinct PNG-tagged payload.
func Image(tag string) *model.Image {
	return &model.Image{Data: []byte("img:" + tag), MIMEType: "image/png"}
}

// FullSet returns a reference set with every slot filled.
func FullSet() *model.ReferenceImageSet {
	refs := &model.ReferenceImageSet{}
	for _, slot := range model.Slots {
		refs.Set(slot, Image(string(slot)))
	}
	return refs
}

// Lock runs a successful extraction over refs and returns its results.
func Lock(t testing.TB, refs *model.ReferenceImageSet) (*profile.Profiles, *profile.LockedReferences) {
	t.Helper()
	ex := profile.NewExtractor(SchemaGenerator{}, "test-model")
	profiles, locked, err := ex.ExtractAll(context.Background(), refs)
	if err != nil {
		t.Fatalf("profiletest: extraction failed: %v", err)
	}
	return profiles, locked
}
