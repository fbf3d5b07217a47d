// Package render は生成状態とセッションの View を HTML に描画します。
// 描画は読み取り専用で、状態を変更することはありません。
package render

import (
	"html/template"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
)

// DisplayKind は表示パネルに出すものの種類です。
type DisplayKind string

const (
	DisplayPlaceholder DisplayKind = "placeholder"
	DisplayLoading     DisplayKind = "loading"
	DisplayError       DisplayKind = "error"
	DisplayResult      DisplayKind = "result"
)

// DisplayModel は表示パネル1つ分の描画内容です。
type DisplayModel struct {
	Kind     DisplayKind
	Message  string
	ImageSrc template.URL // data URI。img の src と download リンクで共有する
	Filename string
}

// Display は生成状態から表示パネルの内容を決める純粋関数なのだ。
func Display(state domain.GenerationState) DisplayModel {
	switch state.Phase {
	case domain.PhaseLoading:
		return DisplayModel{Kind: DisplayLoading}
	case domain.PhaseFailed:
		msg := state.Message
		if msg == "" {
			msg = domain.UnknownFailureMessage
		}
		return DisplayModel{Kind: DisplayError, Message: msg}
	case domain.PhaseSucceeded:
		if state.Result == nil {
			return DisplayModel{Kind: DisplayPlaceholder}
		}
		return DisplayModel{
			Kind: DisplayResult,
			// data: スキームは html/template に弾かれるので template.URL で渡す
			ImageSrc: template.URL(state.Result.DataURI()),
			Filename: domain.DownloadFilename,
		}
	default:
		return DisplayModel{Kind: DisplayPlaceholder}
	}
}
