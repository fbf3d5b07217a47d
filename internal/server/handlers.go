package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shouni/gemini-style-fusion/pkg/controller"
	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/gemini-style-fusion/pkg/imgutil"
	"github.com/shouni/gemini-style-fusion/pkg/render"
	"github.com/shouni/gemini-style-fusion/pkg/uploader"
)

const (
	// multipart の境界やプロンプト等、ファイル以外に許すぶん
	formOverheadBytes = 1 << 20
	formMemoryBytes   = 8 << 20

	importFailedMessage = "Could not import an image from that URL."
	rateLimitedMessage  = "Too many generation requests. Please wait a moment and try again."
)

type stateResponse struct {
	Phase          string `json:"phase"`
	Message        string `json:"message,omitempty"`
	Notice         string `json:"notice,omitempty"`
	CanSubmit      bool   `json:"can_submit"`
	SubjectPreview string `json:"subject_preview,omitempty"`
	StylePreview   string `json:"style_preview,omitempty"`
	ResultURL      string `json:"result_url,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newStateResponse(v controller.View) stateResponse {
	resp := stateResponse{
		Phase:     v.State.Phase.String(),
		Message:   v.State.Message,
		Notice:    v.Notice,
		CanSubmit: v.CanSubmit,
	}
	if v.Subject != nil {
		resp.SubjectPreview = render.PreviewPath(domain.SlotSubject, v.Subject.PreviewID)
	}
	if v.Style != nil {
		resp.StylePreview = render.PreviewPath(domain.SlotStyle, v.Style.PreviewID)
	}
	if v.State.Phase == domain.PhaseSucceeded {
		resp.ResultURL = "/result"
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.renderer.Page(w, render.NewPageData(ctrl.Snapshot())); err != nil {
		slog.ErrorContext(r.Context(), "ページを描画できませんでした", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// handleUpload はクリック選択・ドロップされたファイルを受け取ります。
// 画像以外や大きすぎるファイルは何も変えずに黙って戻るのだ。
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(w, r)
	if !ok {
		return
	}
	ctrl := controllerFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+formOverheadBytes)
	if err := r.ParseMultipartForm(formMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.DebugContext(r.Context(), "サイズ上限を超えたアップロードを無視しました", "slot", slot, "limit", tooLarge.Limit)
			s.recordUpload(slot, imgutil.Reject("", imgutil.ReasonTooLarge))
			s.done(w, r)
			return
		}
		slog.WarnContext(r.Context(), "アップロードフォームを解析できませんでした", "slot", slot, "error", err)
		s.fail(w, r, http.StatusBadRequest, "invalid_form", "the upload form could not be parsed")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	carryPrompt(ctrl, r)

	up, err := s.newUploader(ctrl, slot)
	if err != nil {
		slog.ErrorContext(r.Context(), "Uploader を作成できませんでした", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	headers := r.MultipartForm.File["file"]
	files := make([]uploader.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploader.FromMultipart(fh))
	}

	var decision imgutil.Decision
	switch {
	case len(files) == 0:
		decision = imgutil.Reject("", imgutil.ReasonNotImage)
	case r.PostFormValue("source") == string(domain.SourceDrop):
		decision = up.Drop(files)
	default:
		decision = up.Pick(files[0])
	}
	s.recordUpload(slot, decision)
	s.done(w, r)
}

// handleImport は URL 指定の画像を取り込みます。
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(w, r)
	if !ok {
		return
	}
	if s.importer == nil {
		http.NotFound(w, r)
		return
	}
	ctrl := controllerFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, formOverheadBytes)
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, http.StatusBadRequest, "invalid_form", "the form could not be parsed")
		return
	}
	carryPrompt(ctrl, r)

	rawURL := strings.TrimSpace(r.PostFormValue("url"))
	if rawURL == "" {
		s.done(w, r)
		return
	}

	up, err := s.newUploader(ctrl, slot)
	if err != nil {
		slog.ErrorContext(r.Context(), "Uploader を作成できませんでした", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	decision, err := s.importer.Import(r.Context(), up, rawURL)
	if err != nil {
		slog.WarnContext(r.Context(), "URL からの画像取り込みに失敗しました", "slot", slot, "url", rawURL, "error", err)
		ctrl.Notify(importFailedMessage)
		s.done(w, r)
		return
	}
	s.recordUpload(slot, decision)
	s.done(w, r)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	slot, ok := slotParam(w, r)
	if !ok {
		return
	}
	data, mimeType, found := controllerFrom(r.Context()).Preview(slot, chi.URLParam(r, "id"))
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctrl := controllerFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, formOverheadBytes)
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, http.StatusBadRequest, "invalid_form", "the form could not be parsed")
		return
	}
	carryPrompt(ctrl, r)
	if r.PostForm.Has("aspect_ratio") || r.PostForm.Has("seed") {
		ctrl.SetOptions(parseAspectRatio(r.PostFormValue("aspect_ratio")), parseSeed(r.PostFormValue("seed")))
	}

	_, err := ctrl.Submit(r.Context())
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		if wantsScript(r) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation_failed", Message: verr.Message})
			return
		}
	case errors.Is(err, domain.ErrGenerationInFlight):
		if wantsScript(r) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "in_flight", Message: err.Error()})
			return
		}
	case err != nil:
		slog.ErrorContext(r.Context(), "生成を開始できませんでした", "error", err)
		s.fail(w, r, http.StatusInternalServerError, "internal", domain.UnknownFailureMessage)
		return
	default:
		if wantsScript(r) {
			writeJSON(w, http.StatusAccepted, newStateResponse(ctrl.Snapshot()))
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	if wantsScript(r) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limit_exceeded", Message: rateLimitedMessage})
		return
	}
	if ctrl := controllerFrom(r.Context()); ctrl != nil {
		ctrl.Notify(rateLimitedMessage)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	controllerFrom(r.Context()).Reset()
	s.done(w, r)
}

// handleResult は生成結果を ai-style-fusion.png としてダウンロードさせます。
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, ok := controllerFrom(r.Context()).Result()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+domain.DownloadFilename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(result.Data)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, newStateResponse(controllerFrom(r.Context()).Snapshot()))
}

// done はフォーム送信ならページに戻し、スクリプトからの送信なら 204 を返します。
func (s *Server) done(w http.ResponseWriter, r *http.Request) {
	if wantsScript(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if wantsScript(r) {
		writeJSON(w, status, errorResponse{Error: code, Message: message})
		return
	}
	http.Error(w, message, status)
}

func slotParam(w http.ResponseWriter, r *http.Request) (domain.Slot, bool) {
	slot, err := domain.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		http.NotFound(w, r)
		return "", false
	}
	return slot, true
}

// carryPrompt はフォームに prompt があれば、入力途中のプロンプトとして保存します。
func carryPrompt(ctrl *controller.Controller, r *http.Request) {
	if values, ok := r.PostForm["prompt"]; ok && len(values) > 0 {
		ctrl.SetPrompt(values[0])
	}
}

func parseAspectRatio(s string) string {
	s = strings.TrimSpace(s)
	if slices.Contains(render.AspectRatios, s) {
		return s
	}
	return ""
}

// parseSeed は Gemini が扱える 0..MaxInt32 のシードだけを受け付けます。
func parseSeed(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	seed, err := strconv.ParseInt(s, 10, 64)
	if err != nil || seed < 0 || seed > math.MaxInt32 {
		return nil
	}
	return &seed
}

func wantsScript(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") != "" ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("JSON レスポンスの書き込みに失敗しました", "error", err)
	}
}
