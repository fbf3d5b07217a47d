// Package server は Style Fusion Board の HTTP 面です。
// セッションごとの Controller をクッキーで引き当て、フォーム送信を Controller の操作に変換します。
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shouni/gemini-style-fusion/pkg/controller"
	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/gemini-style-fusion/pkg/imgutil"
	"github.com/shouni/gemini-style-fusion/pkg/render"
	"github.com/shouni/gemini-style-fusion/pkg/uploader"
)

// Recorder はサーバーが記録するメトリクスです。
type Recorder interface {
	RecordUpload(slot domain.Slot, d imgutil.Decision)
	RecordHTTPRequest(method, route string, status int, elapsed time.Duration)
}

// Options はサーバーの挙動を調整する値です。
type Options struct {
	MaxUploadBytes     int64
	MaxImageDimension  int
	GenerateRatePerMin int
	MetricsHandler     http.Handler
}

// Server は HTTP ハンドラー群です。
type Server struct {
	sessions *controller.Sessions
	renderer *render.Renderer
	importer *uploader.Importer
	recorder Recorder
	opts     Options
}

// New は依存関係を注入して Server を初期化します。importer と recorder は nil を許容します。
func New(sessions *controller.Sessions, renderer *render.Renderer, importer *uploader.Importer, recorder Recorder, opts Options) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("sessions is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = uploader.DefaultMaxBytes
	}
	return &Server{
		sessions: sessions,
		renderer: renderer,
		importer: importer,
		recorder: recorder,
		opts:     opts,
	}, nil
}

// Routes はルーターを組み立てます。ctx はレート制限の後片付けに使います。
func (s *Server) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(s.recorder))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/", s.handleIndex)
		r.Post("/images/{slot}", s.handleUpload)
		r.Post("/images/{slot}/url", s.handleImport)
		r.Get("/previews/{slot}/{id}", s.handlePreview)
		r.With(RateLimiter(ctx, s.opts.GenerateRatePerMin, s.handleRateLimited)).Post("/generate", s.handleGenerate)
		r.Post("/reset", s.handleReset)
		r.Get("/result", s.handleResult)
		r.Get("/api/state", s.handleState)
	})
	return r
}

func (s *Server) newUploader(ctrl *controller.Controller, slot domain.Slot) (*uploader.Uploader, error) {
	return uploader.New(slot, ctrl.Select,
		uploader.WithMaxBytes(s.opts.MaxUploadBytes),
		uploader.WithMaxDimension(s.opts.MaxImageDimension),
	)
}

func (s *Server) recordUpload(slot domain.Slot, d imgutil.Decision) {
	if s.recorder != nil {
		s.recorder.RecordUpload(slot, d)
	}
}
