package studio

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"bagify-server/modules/common/model"
	"bagify-server/modules/common/utils"
	"bagify-server/modules/export"
)

const maxUploadSize = 20 << 20

// Handler - 스튜디오 HTTP 엔드포인트
type Handler struct {
	service *Service
	now     func() time.Time
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

// RegisterRoutes - 라우트 설정
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.handleWebSocket)
	r.HandleFunc("/metrics", h.getMetrics).Methods("GET")
	r.HandleFunc("/admin/cleanup", h.forceCleanup).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/outfit-vibes", h.listOutfitVibes).Methods("GET")
	api.HandleFunc("/carousels/{carouselId}/archive", h.downloadStoredArchive).Methods("GET")
	api.HandleFunc("/carousels/{carouselId}/publication", h.getPublication).Methods("GET")

	api.HandleFunc("/sessions", h.createSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", h.getSession).Methods("GET")
	api.HandleFunc("/sessions/{id}/references/{slot}", h.setReference).Methods("PUT")
	api.HandleFunc("/sessions/{id}/references/{slot}", h.clearReference).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/bag", h.setBag).Methods("PUT")
	api.HandleFunc("/sessions/{id}/bag", h.clearBag).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/outfit-vibe", h.selectOutfitVibe).Methods("PUT")
	api.HandleFunc("/sessions/{id}/extract", h.extract).Methods("POST")
	api.HandleFunc("/sessions/{id}/generate", h.generate).Methods("POST")
	api.HandleFunc("/sessions/{id}/carousel", h.getCarousel).Methods("GET")
	api.HandleFunc("/sessions/{id}/carousel/archive", h.downloadArchive).Methods("GET")
	api.HandleFunc("/sessions/{id}/new-bag", h.newBag).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", h.reset).Methods("POST")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// errorResponse - 에러 뷰 + 가능하면 현재 세션 뷰
type errorResponse struct {
	ErrorView
	Session *View `json:"session,omitempty"`
}

func writeError(w http.ResponseWriter, sessionID string, err error, view *View) {
	resp := errorResponse{ErrorView: Classify(err, sessionID)}
	if view != nil && view.ID != "" {
		resp.Session = view
	}
	writeJSON(w, StatusCode(err), resp)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, view View, err error) {
	if err != nil {
		writeError(w, mux.Vars(r)["id"], err, &view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// readImage - multipart "file" 또는 raw body에서 이미지 읽기
func readImage(w http.ResponseWriter, r *http.Request) (model.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	var (
		data     []byte
		declared string
		err      error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			return model.Image{}, validationf("upload", "multipart field \"file\" is required")
		}
		defer file.Close()
		declared = header.Header.Get("Content-Type")
		data, err = io.ReadAll(file)
	} else {
		declared = r.Header.Get("Content-Type")
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return model.Image{}, validationf("upload", "failed to read image: %v", err)
	}
	if len(data) == 0 {
		return model.Image{}, validationf("upload", "image body is empty")
	}

	mimeType := utils.DetectMIME(data, declared)
	if !utils.IsImageMIME(mimeType) {
		return model.Image{}, validationf("upload", "unsupported image type %q", mimeType)
	}
	return model.Image{Data: data, MIMEType: mimeType}, nil
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.service.CreateSession())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetSession(mux.Vars(r)["id"])
	h.respond(w, r, view, err)
}

func (h *Handler) setReference(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slot, err := model.ParseSlot(vars["slot"])
	if err != nil {
		writeError(w, vars["id"], validationf("upload", "%v", err), nil)
		return
	}
	img, err := readImage(w, r)
	if err != nil {
		writeError(w, vars["id"], err, nil)
		return
	}
	view, err := h.service.SetReference(vars["id"], slot, img)
	h.respond(w, r, view, err)
}

func (h *Handler) clearReference(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slot, err := model.ParseSlot(vars["slot"])
	if err != nil {
		writeError(w, vars["id"], validationf("upload", "%v", err), nil)
		return
	}
	view, err := h.service.ClearReference(vars["id"], slot)
	h.respond(w, r, view, err)
}

func (h *Handler) setBag(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	img, err := readImage(w, r)
	if err != nil {
		writeError(w, id, err, nil)
		return
	}
	label := BagLabel{Brand: r.URL.Query().Get("brand"), Model: r.URL.Query().Get("model")}
	if r.MultipartForm != nil {
		if v := r.FormValue("brand"); v != "" {
			label.Brand = v
		}
		if v := r.FormValue("model"); v != "" {
			label.Model = v
		}
	}
	view, err := h.service.SetBag(id, img, label)
	h.respond(w, r, view, err)
}

func (h *Handler) clearBag(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ClearBag(mux.Vars(r)["id"])
	h.respond(w, r, view, err)
}

func (h *Handler) listOutfitVibes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vibes":   OutfitVibes,
		"default": DefaultOutfitVibe(),
	})
}

func (h *Handler) selectOutfitVibe(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Vibe string `json:"vibe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, id, validationf("selectVibe", "invalid request body: %v", err), nil)
		return
	}
	view, err := h.service.SelectOutfitVibe(id, body.Vibe)
	h.respond(w, r, view, err)
}

func (h *Handler) extract(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("🔍 [Studio] Extract requested - Session: %s", id)
	view, err := h.service.Extract(r.Context(), id)
	if err != nil {
		log.Printf("❌ [Studio] Extract failed - Session: %s: %v", id, err)
	}
	h.respond(w, r, view, err)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("🎨 [Studio] Generate requested - Session: %s", id)
	view, err := h.service.Generate(r.Context(), id)
	if err != nil {
		log.Printf("❌ [Studio] Generate failed - Session: %s: %v", id, err)
	}
	h.respond(w, r, view, err)
}

// carouselFrame - base64 프레임
type carouselFrame struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	DataURL  string `json:"dataUrl"`
}

func (h *Handler) getCarousel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := h.service.Carousel(id)
	if err != nil {
		writeError(w, id, err, nil)
		return
	}

	frames := make([]carouselFrame, len(c.Frames))
	for i, f := range c.Frames {
		frames[i] = carouselFrame{
			Index:    i + 1,
			Name:     export.FrameName(c.Bag, i+1),
			MIMEType: f.MIMEType,
			DataURL:  utils.DataURL(f.MIMEType, f.Data),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":             c.ID,
		"bag":            c.Bag,
		"strategy":       c.Strategy,
		"fallbackFrames": c.FallbackFrames,
		"generatedAt":    c.GeneratedAt,
		"frames":         frames,
	})
}

func (h *Handler) writeArchive(w http.ResponseWriter, sessionID string, c *model.GeneratedCarousel) {
	var buf bytes.Buffer
	if err := export.Write(&buf, c, h.now()); err != nil {
		writeError(w, sessionID, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.ArchiveName(c.Bag)}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("Error writing archive: %v", err)
	}
}

func (h *Handler) downloadArchive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := h.service.Carousel(id)
	if err != nil {
		writeError(w, id, err, nil)
		return
	}
	h.writeArchive(w, id, c)
}

func (h *Handler) downloadStoredArchive(w http.ResponseWriter, r *http.Request) {
	carouselID := mux.Vars(r)["carouselId"]
	c, err := h.service.StoredCarousel(r.Context(), carouselID)
	if err != nil {
		if IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, ErrorView{Kind: KindBanner, Code: CodeNotFound, Error: "carousel not found"})
			return
		}
		writeError(w, "", err, nil)
		return
	}
	h.writeArchive(w, "", c)
}

// 게시 상태 조회 (Supabase 설정 시)
func (h *Handler) getPublication(w http.ResponseWriter, r *http.Request) {
	gen, err := h.service.Publication(r.Context(), mux.Vars(r)["carouselId"])
	if err != nil {
		writeError(w, "", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, gen)
}

func (h *Handler) newBag(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.NewBag(mux.Vars(r)["id"])
	h.respond(w, r, view, err)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Reset(mux.Vars(r)["id"])
	h.respond(w, r, view, err)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		writeError(w, "", validationf("subscribe", "missing session parameter"), nil)
		return
	}
	view, err := h.service.GetSession(sessionID)
	if err != nil {
		writeError(w, sessionID, err, nil)
		return
	}
	log.Printf("🔍 New WebSocket connection - Session: %s", sessionID)
	h.service.Hub().Serve(w, r, sessionID, Message{Type: MessageHello, SessionID: sessionID, Status: view.Status})
}

// 서버 메트릭 조회 엔드포인트
func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"server": h.service.Metrics(),
	})
}

// 만료 세션 강제 정리 (관리자용)
func (h *Handler) forceCleanup(w http.ResponseWriter, r *http.Request) {
	cleaned := h.service.CleanupExpired()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "Cleanup completed",
		"cleaned": cleaned,
	})
}
