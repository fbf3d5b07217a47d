// Command stylefusion は AI Style Fusion Board の Web サーバーです。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/gemini-style-fusion/internal/config"
	"github.com/shouni/gemini-style-fusion/internal/metrics"
	"github.com/shouni/gemini-style-fusion/internal/server"
	"github.com/shouni/gemini-style-fusion/pkg/controller"
	"github.com/shouni/gemini-style-fusion/pkg/generator"
	"github.com/shouni/gemini-style-fusion/pkg/render"
	"github.com/shouni/gemini-style-fusion/pkg/uploader"
)

const (
	metricsNamespace = "stylefusion"
	shutdownTimeout  = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("サーバーが異常終了しました", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, err := buildHandler(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP サーバーを起動します", "addr", srv.Addr, "model", cfg.GeminiModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("終了シグナルを受け取りました")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP サーバーの起動に失敗しました: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP サーバーの停止に失敗しました: %w", err)
	}
	slog.Info("HTTP サーバーを停止しました")
	return nil
}

// buildHandler は依存関係を組み立ててルーターを返すのだ。
func buildHandler(ctx context.Context, cfg *config.Config) (http.Handler, error) {
	client, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		return nil, fmt.Errorf("Gemini クライアントの作成に失敗しました: %w", err)
	}
	gen, err := generator.NewGeminiStyleGenerator(client, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(metricsNamespace)

	sessions, err := controller.NewSessions(cfg.SessionTTL, func() (*controller.Controller, error) {
		return controller.New(gen, controller.WithObserver(collector))
	})
	if err != nil {
		return nil, err
	}

	var fetcher uploader.Fetcher = httpkit.New(cfg.FetchTimeout)
	referenceCache := cache.New(cfg.ReferenceCacheTTL, 2*cfg.ReferenceCacheTTL)
	importer, err := uploader.NewImporter(fetcher, referenceCache, cfg.ReferenceCacheTTL)
	if err != nil {
		return nil, err
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		return nil, err
	}

	srv, err := server.New(sessions, renderer, importer, collector, server.Options{
		MaxUploadBytes:     cfg.MaxUploadBytes,
		MaxImageDimension:  cfg.MaxImageDimension,
		GenerateRatePerMin: cfg.GenerateRatePerMin,
		MetricsHandler:     collector.Handler(),
	})
	if err != nil {
		return nil, err
	}
	return srv.Routes(ctx), nil
}

// newLogger は開発環境ではテキスト、それ以外では JSON でログを出すロガーを作ります。
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
