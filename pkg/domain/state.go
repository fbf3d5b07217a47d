package domain

import (
	"encoding/base64"
	"fmt"
)

// DownloadFilename はダウンロード時の既定ファイル名です。
const DownloadFilename = "ai-style-fusion.png"

const defaultResultMimeType = "image/png"

// Phase は生成リクエストのライフサイクルです。
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ResultImage は表示・ダウンロード可能な生成結果です。
type ResultImage struct {
	Data     []byte
	MimeType string
}

// NewResultImage は ImageResponse を表示用に包みます。MIME が空なら PNG とみなします。
func NewResultImage(resp *ImageResponse) *ResultImage {
	mime := resp.MimeType
	if mime == "" {
		mime = defaultResultMimeType
	}
	data := make([]byte, len(resp.Data))
	copy(data, resp.Data)
	return &ResultImage{Data: data, MimeType: mime}
}

// DataURI は img の src や download リンクにそのまま使える data URI を返します。
func (r *ResultImage) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", r.MimeType, base64.StdEncoding.EncodeToString(r.Data))
}

// GenerationState は常にいずれか一つのフェーズだけを保持します。
// Result は Succeeded、Message は Failed のときだけ意味を持ちます。
type GenerationState struct {
	Phase   Phase
	Result  *ResultImage
	Message string
}

func Idle() GenerationState    { return GenerationState{Phase: PhaseIdle} }
func Loading() GenerationState { return GenerationState{Phase: PhaseLoading} }

func Succeeded(result *ResultImage) GenerationState {
	return GenerationState{Phase: PhaseSucceeded, Result: result}
}

func Failed(message string) GenerationState {
	return GenerationState{Phase: PhaseFailed, Message: message}
}
