package carousel

import (
	"fmt"
	"strings"

	"bagify-server/modules/profile"
)

// promptContext carries everything a frame prompt may reference.
type promptContext struct {
	Vibe        string
	Description string
	Profiles    *profile.Profiles
}

func frame1EditPrompt(pc promptContext) string {
	return fmt.Sprintf(`
Photorealistic edit of a mirror selfie.
The original image shows a woman in a bathroom.
The second image provided is a target bag.

**PRIMARY GOAL: Replace the bag in the woman's hands with the target bag. The new bag must be an EXACT, pixel-perfect copy of the target bag image.**

**SECONDARY GOAL: Change the woman's outfit to a new style: "%s".**

**STRICT RULES - DO NOT CHANGE:**
1.  **Woman:** Her face, body, skin tone, hair, pose, and hand positions must remain IDENTICAL to the original photo.
2.  **Scene:** The bathroom background, including mirror, walls, lighting, and camera angle, must remain IDENTICAL.

**EXECUTION DETAILS FOR BAG:**
-   **Clarity:** The replaced bag must be extremely sharp and clear, with all details like monograms, hardware, and texture perfectly visible and crisp, matching professional product photography.
-   **Integration:** The bag must be held naturally in her hands, perfectly integrated into the scene's lighting.
%s`, pc.Vibe, pc.details(true, false))
}

func frame4EditPrompt(pc promptContext) string {
	return fmt.Sprintf(`
Photorealistic edit of a mirror selfie.
The original image shows a woman in a bedroom.
The second image provided is a target bag.

**GOAL: Create a new version with the same woman in a different pose, holding the SAME TARGET BAG.**

**STRICT RULES - DO NOT CHANGE:**
1.  **Woman's Identity:** She must be IDENTICAL to the woman in Frame 1 (same face, hair, body, skin tone).
2.  **Scene:** The bedroom background, including furniture, lighting, and camera angle, must remain IDENTICAL to the original bedroom photo.
3.  **Bag:** The bag she holds must be an EXACT, pixel-perfect copy of the target bag image, and IDENTICAL to the bag generated in Frame 1.

**STRICT RULES - THINGS TO CHANGE:**
1.  **Pose:** The woman's pose must be NOTICEABLY DIFFERENT from her pose in Frame 1.
2.  **Outfit:** Her outfit must be a DIFFERENT styling variation of the "%s" theme.

**EXECUTION DETAILS FOR BAG:**
-   **Clarity & Consistency:** The bag must be extremely sharp and clear, just like in Frame 1. It must be recognizable as the exact same bag.
-   **Integration:** The bag must be held naturally in her new pose, integrated into the scene's lighting.
%s`, pc.Vibe, pc.details(false, true))
}

func frame1FallbackPrompt(pc promptContext) string {
	return fmt.Sprintf(`Edit this mirror selfie by replacing the woman's bag with the target bag. Keep the woman identical (face, body, hair, pose). Keep the bathroom scene identical. Update her outfit to "%s" style.%s`,
		pc.Vibe, pc.details(true, false))
}

func frame4FallbackPrompt(pc promptContext) string {
	return fmt.Sprintf(`Create a bedroom mirror selfie with the same woman holding the same target bag. Same woman as Frame 1. Same bedroom background. DIFFERENT pose from Frame 1. Different "%s" outfit variation.%s`,
		pc.Vibe, pc.details(false, true))
}

func frame2Prompt(pc promptContext) string {
	return `
Professional luxury handbag product photography. 1080x1920px vertical.
CRITICAL: Generate a product shot of the exact bag shown in the uploaded image. Match the style, color, material, and details precisely.
Requirements: White/cream silk backdrop, angled 3/4 view (45-degree angle), bag occupies 50-60% of frame, professional studio lighting with soft shadows, no person, high quality, clean, minimalist.
` + pc.bagDetails()
}

func frame3Prompt(pc promptContext) string {
	return `
Professional luxury handbag product photography. 1080x1920px vertical.
CRITICAL: Generate a front-view product shot of the EXACT SAME bag as Frame 2. Use the uploaded bag image to ensure consistency.
Requirements: White/cream silk backdrop, straight-on front view, centered, bag occupies 50-60% of frame, professional studio lighting, even illumination, no person, high quality, clean, minimalist.
` + pc.bagDetails()
}

func (pc promptContext) bagDetails() string {
	if pc.Description == "" {
		return ""
	}
	return "\nTARGET BAG DETAILS (reproduce exactly):\n" + pc.Description + "\n"
}

// details appends the extracted profile descriptors and bag description.
func (pc promptContext) details(sceneA, sceneB bool) string {
	var sb strings.Builder
	if p := pc.Profiles; p != nil {
		c := p.Character
		sb.WriteString("\n\nWOMAN (keep identical):\n")
		writeLine(&sb, "Face", c.FaceDescriptor)
		writeLine(&sb, "Body", c.BodyDescriptor)
		writeLine(&sb, "Skin tone", c.SkinTone)
		writeLine(&sb, "Hair", c.HairStyle)
		writeLine(&sb, "Accessories", c.Accessories)
		writeLine(&sb, "Nails", c.NailColor)
		writeLine(&sb, "Distinguishing features", c.DistinguishingFeatures)

		switch {
		case sceneA:
			writeScene(&sb, p.SceneA)
		case sceneB:
			writeScene(&sb, p.SceneB)
		}
	}
	sb.WriteString(pc.bagDetails())
	return sb.String()
}

func writeScene(sb *strings.Builder, s profile.SceneProfile) {
	sb.WriteString("\nSCENE (keep identical):\n")
	writeLine(sb, "Location", s.Location)
	writeLine(sb, "Background", s.Background)
	writeLine(sb, "Lighting", s.Lighting)
	writeLine(sb, "Camera", s.CameraAngle)
	writeLine(sb, "Mirror", s.Mirror)
	writeLine(sb, "Surfaces", s.SurfaceType)
	writeLine(sb, "Furniture", s.Furniture)
	writeLine(sb, "Palette", s.ColorPalette)
	writeLine(sb, "Ceiling", s.Ceiling)
}

func writeLine(sb *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(sb, "- %s: %s\n", label, value)
	}
}
