package profile

import "google.golang.org/genai"

// Field - JSON 스키마 필드 (모두 required string)
type Field struct {
	Name        string
	Description string
}

// Schema - 추출 대상 필드 목록
type Schema struct {
	Fields []Field
}

// GenAI converts the field list into a response schema with every field required.
func (s Schema) GenAI() *genai.Schema {
	props := make(map[string]*genai.Schema, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = &genai.Schema{Type: genai.TypeString, Description: f.Description}
		required = append(required, f.Name)
	}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         required,
		PropertyOrdering: required,
	}
}

// CharacterProfile - 인물 묘사 (frame1에서 추출)
type CharacterProfile struct {
	FaceDescriptor         string `json:"faceDescriptor"`
	BodyDescriptor         string `json:"bodyDescriptor"`
	SkinTone               string `json:"skinTone"`
	HairStyle              string `json:"hairStyle"`
	Accessories            string `json:"accessories"`
	NailColor              string `json:"nailColor"`
	DistinguishingFeatures string `json:"distinguishingFeatures"`
}

// SceneProfile - 배경 묘사. Mirror/SurfaceType은 scene A(욕실)에서만 채워짐
type SceneProfile struct {
	Location     string `json:"location"`
	Background   string `json:"background"`
	Lighting     string `json:"lighting"`
	CameraAngle  string `json:"cameraAngle"`
	Mirror       string `json:"mirror,omitempty"`
	SurfaceType  string `json:"surfaceType,omitempty"`
	Furniture    string `json:"furniture"`
	ColorPalette string `json:"colorPalette"`
	Ceiling      string `json:"ceiling"`
}

const (
	characterPrompt = "Analyze the woman in this mirror selfie. Provide a detailed description for each field in the JSON schema. Focus on creating a reusable profile that can perfectly replicate her in another image. Descriptions should be 2-3 sentences each."
	scenePrompt     = "Analyze the background scene of this mirror selfie, ignoring the person. Provide a detailed description for each field in the JSON schema. Focus on details that would allow for a perfect replication of the scene."
)

var characterSchema = Schema{Fields: []Field{
	{"faceDescriptor", "Detailed description of her facial features, shape, and expression."},
	{"bodyDescriptor", "Detailed description of her body type, build, and height."},
	{"skinTone", "Precise description of her skin tone and undertone."},
	{"hairStyle", "Detailed description of her hair color, style, length, and texture."},
	{"accessories", "Description of any jewelry, glasses, or other accessories she is wearing."},
	{"nailColor", "Description of her nail color, length, and shape, if visible."},
	{"distinguishingFeatures", "Description of any unique features like tattoos, moles, or scars."},
}}

var sceneASchema = Schema{Fields: []Field{
	{"location", "The type of room, e.g., 'luxury hotel bathroom'."},
	{"background", "Detailed description of the walls, tiles, and overall background elements."},
	{"lighting", "Description of the lighting source, quality, and color (e.g., 'warm directional spotlights')."},
	{"cameraAngle", "Description of the camera's position, angle, and framing."},
	{"mirror", "Detailed description of the mirror's size, shape, and frame."},
	{"surfaceType", "Description of the floor and countertop surfaces (e.g., 'white marble with grey veins')."},
	{"furniture", "Description of any visible furniture like vanities, sinks, or fixtures."},
	{"colorPalette", "The dominant color palette of the scene."},
	{"ceiling", "Description of the ceiling, including any fixtures or details."},
}}

var sceneBSchema = Schema{Fields: []Field{
	{"location", "The type of room, e.g., 'hotel bedroom'."},
	{"background", "Detailed description of the background elements like bed, windows, and curtains."},
	{"lighting", "Description of the lighting source, quality, and color (e.g., 'warm side lamp')."},
	{"cameraAngle", "Description of the camera's position, angle, and framing."},
	{"furniture", "Description of any visible furniture like bed, chair, or nightstand."},
	{"colorPalette", "The dominant color palette of the scene."},
	{"ceiling", "Description of the ceiling, including any fixtures or details."},
}}
