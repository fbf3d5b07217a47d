package generator

import (
	"context"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// StyleGenerator はコントローラーが利用する生成サービスの窓口です。
// 内部のモデル選択やリトライなどは呼び出し側からは見えません。
type StyleGenerator interface {
	GenerateStyled(ctx context.Context, req domain.GenerationRequest) (*domain.ImageResponse, error)
}

// ContentGenerator は gemini.GenerativeModel のうち、ここで使うメソッドだけを切り出したものです。
// *gemini.Client がそのまま満たします。
type ContentGenerator interface {
	GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
}
