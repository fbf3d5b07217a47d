package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// GeminiStyleGenerator は被写体画像とスタイル画像を Gemini に渡して合成画像を得るジェネレーターです。
type GeminiStyleGenerator struct {
	aiClient ContentGenerator
	model    string
}

// NewGeminiStyleGenerator は GeminiStyleGenerator を初期化するのだ。
// model が空なら DefaultModel を使うのだ。
func NewGeminiStyleGenerator(aiClient ContentGenerator, model string) (*GeminiStyleGenerator, error) {
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient (ContentGenerator) is required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiStyleGenerator{aiClient: aiClient, model: model}, nil
}

// Model は使用中のモデル名を返します。
func (g *GeminiStyleGenerator) Model() string { return g.model }

// GenerateStyled は [プロンプト, 被写体, スタイル] の順でパーツを組み立てて1回だけ生成を要求します。
// 失敗はすべて *domain.RemoteError で返します。
func (g *GeminiStyleGenerator) GenerateStyled(ctx context.Context, req domain.GenerationRequest) (*domain.ImageResponse, error) {
	parts, err := buildParts(req)
	if err != nil {
		return nil, err
	}

	opts := gemini.GenerateOptions{
		AspectRatio: req.AspectRatio,
		Seed:        req.Seed,
	}

	slog.InfoContext(ctx, "Gemini スタイル合成リクエスト送信",
		"model", g.model,
		"prompt_len", len(req.Prompt),
		"aspect_ratio", req.AspectRatio,
	)
	start := time.Now()

	resp, err := g.aiClient.GenerateWithParts(ctx, g.model, parts, opts)
	if err != nil {
		slog.WarnContext(ctx, "Gemini 生成リクエストが失敗しました", "error", err, "elapsed", time.Since(start))
		return nil, toRemoteError(fmt.Errorf("Gemini style generation: %w", err))
	}

	var raw *genai.GenerateContentResponse
	if resp != nil {
		raw = resp.RawResponse
	}
	out, err := parseToResponse(raw, dereferenceSeed(req.Seed))
	if err != nil {
		slog.WarnContext(ctx, "Gemini の応答から画像を取得できませんでした", "error", err)
		return nil, &domain.RemoteError{Message: err.Error(), Err: err}
	}

	slog.InfoContext(ctx, "Gemini スタイル合成完了",
		"mime_type", out.MimeType,
		"bytes", len(out.Data),
		"elapsed", time.Since(start),
	)
	return &domain.ImageResponse{
		Data:     out.Data,
		MimeType: out.MimeType,
		UsedSeed: out.UsedSeed,
	}, nil
}

func buildParts(req domain.GenerationRequest) ([]*genai.Part, error) {
	subject, err := req.Subject.Bytes()
	if err != nil {
		return nil, &domain.EncodingError{Message: "subject image payload is not valid base64", Err: err}
	}
	style, err := req.Style.Bytes()
	if err != nil {
		return nil, &domain.EncodingError{Message: "style image payload is not valid base64", Err: err}
	}
	return []*genai.Part{
		genai.NewPartFromText(req.Prompt),
		genai.NewPartFromBytes(subject, req.Subject.MimeType),
		genai.NewPartFromBytes(style, req.Style.MimeType),
	}, nil
}
