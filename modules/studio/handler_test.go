package studio

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bagify-server/modules/common/fallback"
	"bagify-server/modules/common/model"
	"bagify-server/modules/provider"
)

func pngBytes(tag string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), tag...)
}

func newTestRouter(runner *fakeRunner) (*mux.Router, *Service) {
	svc := newTestService(runner)
	h := NewHandler(svc)
	h.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r, svc
}

func do(t *testing.T, r http.Handler, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createViaHTTP(t *testing.T, r http.Handler) string {
	t.Helper()
	rec := do(t, r, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[View](t, rec).ID
}

func readyViaHTTP(t *testing.T, r http.Handler) string {
	t.Helper()
	id := createViaHTTP(t, r)
	for _, slot := range model.Slots {
		rec := do(t, r, http.MethodPut, "/api/sessions/"+id+"/references/"+string(slot), pngBytes(string(slot)), "image/png")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := do(t, r, http.MethodPost, "/api/sessions/"+id+"/extract", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, r, http.MethodPut, "/api/sessions/"+id+"/bag?brand=Acme&model=Big%20Tote", pngBytes("bag"), "application/octet-stream")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

func TestHandlerUploadGating(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{})
	id := createViaHTTP(t, r)

	for _, slot := range model.Slots[:3] {
		rec := do(t, r, http.MethodPut, "/api/sessions/"+id+"/references/"+string(slot), pngBytes(string(slot)), "image/png")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, r, http.MethodPost, "/api/sessions/"+id+"/extract", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, CodeValidation, resp.Code)
	assert.Equal(t, KindBanner, resp.Kind)
	require.NotNil(t, resp.Session)
	assert.False(t, resp.Session.Actions.Extract)
	assert.False(t, resp.Session.References[model.SlotFrame4])
}

func TestHandlerMultipartUpload(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{})
	id := createViaHTTP(t, r)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "ref.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes("multipart"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := do(t, r, http.MethodPut, "/api/sessions/"+id+"/references/frame2", body.Bytes(), mw.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[View](t, rec).References[model.SlotFrame2])

	rec = do(t, r, http.MethodDelete, "/api/sessions/"+id+"/references/frame2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[View](t, rec).References[model.SlotFrame2])
}

func TestHandlerRejectsBadUploads(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{})
	id := createViaHTTP(t, r)

	rec := do(t, r, http.MethodPut, "/api/sessions/"+id+"/references/frame9", pngBytes("x"), "image/png")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPut, "/api/sessions/"+id+"/references/frame1", []byte("just text"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPut, "/api/sessions/"+id+"/bag", nil, "image/png")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/sessions/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decode[errorResponse](t, rec).Code)
}

func TestHandlerSignatureFailureRemediationRetry(t *testing.T) {
	runner := &fakeRunner{err: &fallback.ExhaustedError{
		Label: "frame 1",
		Errs: []error{
			&provider.ProviderRequestError{Provider: provider.Imagen3, StatusCode: 500, Detail: "backend request failed (500): Invalid JWT Signature."},
			&provider.ProviderRequestError{Provider: "gemini", Detail: "backend unreachable"},
		},
	}}
	r, _ := newTestRouter(runner)
	id := readyViaHTTP(t, r)

	rec := do(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, KindRemediation, resp.Kind)
	require.NotNil(t, resp.Remediation)
	assert.NotEmpty(t, resp.Remediation.Steps)
	assert.Equal(t, http.MethodPost, resp.Remediation.Retry.Method)
	assert.Equal(t, "/api/sessions/"+id+"/generate", resp.Remediation.Retry.Path)

	// the retry action re-invokes generate
	runner.setErr(nil)
	rec = do(t, r, resp.Remediation.Retry.Method, resp.Remediation.Retry.Path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[View](t, rec)
	assert.Equal(t, model.StatusCompleted, view.Status)
	assert.Nil(t, view.LastError)
	assert.Len(t, runner.requests, 2)
}

func TestHandlerBusyReturnsConflict(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}), release: make(chan struct{})}
	r, _ := newTestRouter(runner)
	id := readyViaHTTP(t, r)

	done := make(chan int, 1)
	go func() {
		done <- do(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil, "").Code
	}()
	<-runner.started

	rec := do(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeBusy, decode[errorResponse](t, rec).Code)

	rec = do(t, r, http.MethodPost, "/api/sessions/"+id+"/reset", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(runner.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestHandlerCarouselAndArchive(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{})
	id := readyViaHTTP(t, r)

	rec := do(t, r, http.MethodGet, "/api/sessions/"+id+"/carousel/archive", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/sessions/"+id+"/carousel", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Bag    model.BagRecord `json:"bag"`
		Frames []carouselFrame `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Acme", payload.Bag.Brand)
	require.Len(t, payload.Frames, 4)
	assert.Equal(t, "Acme_Big_Tote_frame1.png", payload.Frames[0].Name)
	assert.True(t, strings.HasPrefix(payload.Frames[0].DataURL, "data:image/png;base64,"))

	for _, path := range []string{
		"/api/sessions/" + id + "/carousel/archive",
		"/api/carousels/carousel-1/archive",
	} {
		rec = do(t, r, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=Acme_Big_Tote_carousel.zip", rec.Header().Get("Content-Disposition"))

		zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
		require.NoError(t, err)
		names := make([]string, 0, len(zr.File))
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		assert.ElementsMatch(t, []string{
			"metadata.json",
			"Acme_Big_Tote_frame1.png",
			"Acme_Big_Tote_frame2.png",
			"Acme_Big_Tote_frame3.png",
			"Acme_Big_Tote_frame4.png",
		}, names)
	}

	rec = do(t, r, http.MethodGet, "/api/carousels/unknown/archive", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerOutfitVibes(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{})
	rec := do(t, r, http.MethodGet, "/api/outfit-vibes", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Vibes   []OutfitVibe `json:"vibes"`
		Default string       `json:"default"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Vibes, len(OutfitVibes))
	assert.Equal(t, "Quiet Luxury", body.Default)

	id := createViaHTTP(t, r)
	rec = do(t, r, http.MethodPut, "/api/sessions/"+id+"/outfit-vibe", []byte(`{"vibe":"streetwear-edge"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Streetwear Edge", decode[View](t, rec).OutfitVibe)
}

func TestHandlerWebSocketHello(t *testing.T) {
	r, svc := newTestRouter(&fakeRunner{})
	server := httptest.NewServer(r)
	defer server.Close()

	id := svc.CreateSession().ID
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?session=" + id

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello Message
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, MessageHello, hello.Type)
	assert.Equal(t, model.StatusIdle, hello.Status)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws?session=missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerMetricsAndCleanup(t *testing.T) {
	r, svc := newTestRouter(&fakeRunner{})
	svc.CreateSession()

	rec := do(t, r, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Server Metrics `json:"server"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Server.ActiveSessions)
	assert.Equal(t, "imagen3", body.Server.Strategy)

	rec = do(t, r, http.MethodPost, "/admin/cleanup", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cleanup completed")
}

func TestHandlerArchiveFilenameNonASCII(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{})
	id := createViaHTTP(t, r)
	for _, slot := range model.Slots {
		rec := do(t, r, http.MethodPut, "/api/sessions/"+id+"/references/"+string(slot), pngBytes(string(slot)), "image/png")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/sessions/"+id+"/extract", nil, "").Code)
	rec := do(t, r, http.MethodPut, "/api/sessions/"+id+"/bag?brand=Herm%C3%A8s&model=Birkin", pngBytes("bag"), "image/png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/sessions/"+id+"/generate", nil, "").Code)

	rec = do(t, r, http.MethodGet, "/api/sessions/"+id+"/carousel/archive", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	disposition := rec.Header().Get("Content-Disposition")
	assert.NotContains(t, disposition, `\u`)

	mediaType, params, err := mime.ParseMediaType(disposition)
	require.NoError(t, err)
	assert.Equal(t, "attachment", mediaType)
	assert.Equal(t, "Hermès_Birkin_carousel.zip", params["filename"])
}

func TestHandlerRejectsUnsafeBagLabel(t *testing.T) {
	r, _ := newTestRouter(&fakeRunner{})
	id := createViaHTTP(t, r)

	rec := do(t, r, http.MethodPut, "/api/sessions/"+id+"/bag?brand=..%2F..%2Fetc", pngBytes("bag"), "image/png")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, decode[errorResponse](t, rec).Code)
}
