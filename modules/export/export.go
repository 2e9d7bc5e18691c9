package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"bagify-server/modules/common/model"
)

const metadataFile = "metadata.json"

var (
	whitespace = regexp.MustCompile(`\s+`)
	// path separators, dot runs and control characters
	unsafeName = regexp.MustCompile(`[/\\\x00-\x1f\x7f]+|\.{2,}`)
)

// Metadata - metadata.json 내용
type Metadata struct {
	Bag         model.BagRecord `json:"bag"`
	GeneratedAt string          `json:"generatedAt"`
}

// FrameName - <brand>_<model>_frame<N>.png (공백은 _)
func FrameName(bag model.BagRecord, frame int) string {
	return fmt.Sprintf("%s_frame%d.png", baseName(bag), frame)
}

// ArchiveName - 다운로드 파일명
func ArchiveName(bag model.BagRecord) string {
	return baseName(bag) + "_carousel.zip"
}

func baseName(bag model.BagRecord) string {
	return cleanLabel(bag.Brand) + "_" + cleanLabel(bag.Model)
}

// cleanLabel keeps a label safe as a single archive path segment.
func cleanLabel(s string) string {
	s = unsafeName.ReplaceAllString(strings.TrimSpace(s), "_")
	s = whitespace.ReplaceAllString(s, "_")
	return strings.TrimLeft(s, ".")
}

// Write streams the carousel archive into w. now stamps metadata.json.
func Write(w io.Writer, c *model.GeneratedCarousel, now time.Time) error {
	if err := c.Validate(); err != nil {
		return err
	}

	zw := zip.NewWriter(w)

	meta, err := json.MarshalIndent(Metadata{
		Bag:         c.Bag,
		GeneratedAt: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := writeEntry(zw, metadataFile, meta, now); err != nil {
		return err
	}

	for i, frame := range c.Frames {
		if err := writeEntry(zw, FrameName(c.Bag, i+1), frame.Data, now); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
