package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bagify-server/modules/common/model"
)

func carousel(brand, modelName string) *model.GeneratedCarousel {
	bag := model.DefaultBagRecord()
	bag.Brand, bag.Model = brand, modelName
	frames := make([]model.Image, model.FrameCount)
	for i := range frames {
		frames[i] = model.Image{Data: []byte{0x89, 'P', 'N', 'G', byte(i + 1)}, MIMEType: "image/png"}
	}
	return &model.GeneratedCarousel{ID: "c", Bag: bag, Frames: frames}
}

func readArchive(t *testing.T, raw []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = data
	}
	return files
}

func TestArchiveRoundTrip(t *testing.T) {
	c := carousel("Acme", "Tote")
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c, now))
	files := readArchive(t, buf.Bytes())

	require.Len(t, files, 5)
	var meta struct {
		Bag         model.BagRecord `json:"bag"`
		GeneratedAt string          `json:"generatedAt"`
	}
	require.NoError(t, json.Unmarshal(files["metadata.json"], &meta))
	assert.Equal(t, "Acme", meta.Bag.Brand)
	assert.Equal(t, "Tote", meta.Bag.Model)
	assert.Equal(t, "2026-10-16T09:30:00.000Z", meta.GeneratedAt)
	assert.Contains(t, string(files["metadata.json"]), "\n  \"bag\"")

	for i, frame := range c.Frames {
		name := []string{"Acme_Tote_frame1.png", "Acme_Tote_frame2.png", "Acme_Tote_frame3.png", "Acme_Tote_frame4.png"}[i]
		require.Contains(t, files, name)
		assert.Equal(t, frame.Data, files[name])
	}
}

func TestNamesReplaceWhitespace(t *testing.T) {
	bag := model.BagRecord{Brand: "Your  Brand", Model: "Your\tModel"}
	assert.Equal(t, "Your_Brand_Your_Model_frame3.png", FrameName(bag, 3))
	assert.Equal(t, "Your_Brand_Your_Model_carousel.zip", ArchiveName(bag))
}

func TestWriteRejectsIncompleteCarousel(t *testing.T) {
	c := carousel("Acme", "Tote")
	c.Frames = c.Frames[:3]

	var buf bytes.Buffer
	assert.Error(t, Write(&buf, c, time.Now()))
	assert.Zero(t, buf.Len())
}

func TestNamesStayInsideArchive(t *testing.T) {
	c := carousel("../../../etc", `x/y\z`)
	assert.Equal(t, "______etc_x_y_z_carousel.zip", ArchiveName(c.Bag))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c, time.Now()))
	files := readArchive(t, buf.Bytes())
	require.Len(t, files, 5)
	for name := range files {
		assert.NotContains(t, name, "/")
		assert.NotContains(t, name, `\`)
		assert.NotContains(t, name, "..")
	}
	assert.Contains(t, files, "______etc_x_y_z_frame1.png")

	bag := model.BagRecord{Brand: ".hidden", Model: "a\x00b\nc"}
	assert.Equal(t, "hidden_a_b_c_frame2.png", FrameName(bag, 2))
}
