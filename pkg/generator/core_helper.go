package generator

import (
	"errors"
	"fmt"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"google.golang.org/genai"
)

var errNoImageData = errors.New("no image data in Gemini response")

// parseToResponse は Gemini の応答から最初の画像パーツを取り出します。
func parseToResponse(resp *genai.GenerateContentResponse, seed int64) (*ImageOutput, error) {
	if resp == nil {
		return nil, fmt.Errorf("Gemini returned an empty response")
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt was blocked (BlockReason: %s)", resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("Gemini returned no candidates")
	}

	// 現在の仕様では、最初の候補 (Candidate) のみを利用する。
	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &ImageOutput{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MIMEType,
					UsedSeed: seed,
				}, nil
			}
		}
	}

	// 安全フィルター等によるブロックの確認
	switch candidate.FinishReason {
	case "", genai.FinishReasonUnspecified, genai.FinishReasonStop:
	default:
		return nil, fmt.Errorf("image generation stopped abnormally (FinishReason: %s)", candidate.FinishReason)
	}
	return nil, errNoImageData
}

// toRemoteError は SDK のエラーを画面にそのまま出せる RemoteError に包みます。
// genai.APIError の場合は API が返したメッセージを優先します。
func toRemoteError(err error) *domain.RemoteError {
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		return remote
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &domain.RemoteError{Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && apiErrPtr.Message != "" {
		return &domain.RemoteError{Message: apiErrPtr.Message, Err: err}
	}
	return &domain.RemoteError{Message: err.Error(), Err: err}
}
