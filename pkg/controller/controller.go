// Package controller は画像選択・プロンプト・生成状態を一か所で保持し、
// エンコード → 生成 → 表示状態の遷移を進めるコントローラーです。
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/gemini-style-fusion/pkg/generator"
	"github.com/shouni/gemini-style-fusion/pkg/imgutil"
)

// DefaultPrompt は初期表示のプロンプトです。
const DefaultPrompt = "Analyze the artistic essence of the style image (focusing on color palette, texture, lighting, and brushstrokes) and apply it to the subject from the subject image. Do not simply copy the background or elements from the style image; the goal is to reimagine the subject in that specific artistic style."

const emptyResultMessage = "The generation service returned an empty image."

// 生成結果の分類（メトリクス用）
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Observer は生成の開始・終了と画像選択を外部に知らせるフックです。
type Observer interface {
	GenerationStarted()
	GenerationFinished(outcome string, elapsed time.Duration)
	ImageSelected(slot domain.Slot, source domain.Source)
}

type nopObserver struct{}

func (nopObserver) GenerationStarted()                       {}
func (nopObserver) GenerationFinished(string, time.Duration) {}
func (nopObserver) ImageSelected(domain.Slot, domain.Source) {}

// Option は Controller の設定を変更します。
type Option func(*Controller)

// WithObserver はメトリクス等のフックを設定します。
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// ImageView は選択済み画像のうち表示に必要な情報です。
type ImageView struct {
	PreviewID string
	Filename  string
	MimeType  string
}

// View は描画用のスナップショットです。描画側は View だけを読みます。
type View struct {
	Subject     *ImageView
	Style       *ImageView
	Prompt      string
	AspectRatio string
	Seed        *int64
	State       domain.GenerationState
	Notice      string
	CanSubmit   bool
}

// Image は枠に応じた選択画像を返します。
func (v View) Image(slot domain.Slot) *ImageView {
	if slot == domain.SlotStyle {
		return v.Style
	}
	return v.Subject
}

// Controller は1セッション分の状態を所有します。状態を変更できるのは Controller だけです。
type Controller struct {
	gen      generator.StyleGenerator
	observer Observer

	mu          sync.Mutex
	images      map[domain.Slot]*domain.SelectedImage
	prompt      string
	aspectRatio string
	seed        *int64
	state       domain.GenerationState
	notice      string
}

// New は依存関係を注入して Controller を初期化します。
func New(gen generator.StyleGenerator, opts ...Option) (*Controller, error) {
	if gen == nil {
		return nil, fmt.Errorf("gen (StyleGenerator) is required")
	}
	c := &Controller{
		gen:      gen,
		observer: nopObserver{},
		images:   make(map[domain.Slot]*domain.SelectedImage, 2),
		prompt:   DefaultPrompt,
		state:    domain.Idle(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Select は枠の画像を置き換えます。以前のプレビュー参照はここで解放されます。
func (c *Controller) Select(img domain.SelectedImage) {
	c.mu.Lock()
	prev := c.images[img.Slot]
	stored := img
	c.images[img.Slot] = &stored
	c.mu.Unlock()

	if prev != nil {
		slog.Debug("プレビュー参照を解放しました", "slot", img.Slot, "preview_id", prev.PreviewID)
	}
	c.observer.ImageSelected(img.Slot, img.Source)
}

// SetPrompt はプロンプトを更新します。
func (c *Controller) SetPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = prompt
}

// SetOptions はアスペクト比とシードを更新します。空文字・nil は未指定です。
func (c *Controller) SetOptions(aspectRatio string, seed *int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspectRatio = strings.TrimSpace(aspectRatio)
	c.seed = seed
}

// Notify はトリガー付近に表示するメッセージを設定します。
func (c *Controller) Notify(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice = msg
}

type job struct {
	subject domain.SelectedImage
	style   domain.SelectedImage
	prompt  string
	aspect  string
	seed    *int64
}

// Submit は入力を検証して Loading に遷移し、生成をバックグラウンドで開始します。
// 戻り値のチャネルは成功・失敗のどちらかに確定した時点で閉じられます。
// 生成中は domain.ErrGenerationInFlight を返し、状態は変わりません。
// 入力不足は *domain.ValidationError を返し、前回の結果やエラーは Idle に戻して通知だけを残します。
func (c *Controller) Submit(ctx context.Context) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.state.Phase == domain.PhaseLoading {
		c.mu.Unlock()
		return nil, domain.ErrGenerationInFlight
	}

	subject, style := c.images[domain.SlotSubject], c.images[domain.SlotStyle]
	if subject == nil || style == nil || strings.TrimSpace(c.prompt) == "" {
		c.state = domain.Idle()
		c.notice = domain.MissingInputMessage
		c.mu.Unlock()
		return nil, &domain.ValidationError{Message: domain.MissingInputMessage}
	}

	j := job{
		subject: *subject,
		style:   *style,
		prompt:  c.prompt,
		aspect:  c.aspectRatio,
		seed:    c.seed,
	}
	c.state = domain.Loading()
	c.notice = ""
	c.mu.Unlock()

	c.observer.GenerationStarted()

	done := make(chan struct{})
	// タイムアウトもキャンセルもしない。HTTP リクエストが終わっても生成は続ける。
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		c.run(runCtx, j)
	}()
	return done, nil
}

func (c *Controller) run(ctx context.Context, j job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "生成処理でパニックが発生しました", "panic", r)
			c.finish(domain.Failed(domain.UnknownFailureMessage), start)
		}
	}()

	result, err := c.generate(ctx, j)
	if err != nil {
		slog.WarnContext(ctx, "画像生成に失敗しました", "error", err)
		c.finish(domain.Failed(domain.UserMessage(err)), start)
		return
	}
	c.finish(domain.Succeeded(result), start)
}

func (c *Controller) generate(ctx context.Context, j job) (*domain.ResultImage, error) {
	subject, err := imgutil.EncodeBytes(j.subject.Data, j.subject.MimeType)
	if err != nil {
		return nil, fmt.Errorf("encode subject image: %w", err)
	}
	style, err := imgutil.EncodeBytes(j.style.Data, j.style.MimeType)
	if err != nil {
		return nil, fmt.Errorf("encode style image: %w", err)
	}

	resp, err := c.gen.GenerateStyled(ctx, domain.GenerationRequest{
		Subject:     subject,
		Style:       style,
		Prompt:      j.prompt,
		AspectRatio: j.aspect,
		Seed:        j.seed,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, &domain.RemoteError{Message: emptyResultMessage}
	}
	return domain.NewResultImage(resp), nil
}

func (c *Controller) finish(state domain.GenerationState, start time.Time) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	outcome := OutcomeSucceeded
	if state.Phase == domain.PhaseFailed {
		outcome = OutcomeFailed
	}
	c.observer.GenerationFinished(outcome, time.Since(start))
}

// Reset は確定状態（Succeeded / Failed）から Idle に戻します。生成中は何もしません。
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == domain.PhaseLoading {
		return
	}
	c.state = domain.Idle()
	c.notice = ""
}

// State は現在の生成状態を返します。
func (c *Controller) State() domain.GenerationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot は描画用の View を返します。
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Subject:     toImageView(c.images[domain.SlotSubject]),
		Style:       toImageView(c.images[domain.SlotStyle]),
		Prompt:      c.prompt,
		AspectRatio: c.aspectRatio,
		Seed:        c.seed,
		State:       c.state,
		Notice:      c.notice,
	}
	v.CanSubmit = c.state.Phase != domain.PhaseLoading && v.Subject != nil && v.Style != nil
	return v
}

// Preview は有効なプレビュー参照に対応する画像を返します。置き換え済みの参照は見つかりません。
func (c *Controller) Preview(slot domain.Slot, previewID string) (data []byte, mimeType string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img := c.images[slot]
	if img == nil || img.PreviewID != previewID {
		return nil, "", false
	}
	return img.Data, img.MimeType, true
}

// Result は生成に成功していればその結果を返します。
func (c *Controller) Result() (*domain.ResultImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != domain.PhaseSucceeded || c.state.Result == nil {
		return nil, false
	}
	return c.state.Result, true
}

func toImageView(img *domain.SelectedImage) *ImageView {
	if img == nil {
		return nil
	}
	return &ImageView{PreviewID: img.PreviewID, Filename: img.Filename, MimeType: img.MimeType}
}
