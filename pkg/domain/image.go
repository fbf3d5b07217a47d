package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Slot はアップロード枠（被写体 or スタイル）を表します。
type Slot string

const (
	SlotSubject Slot = "subject"
	SlotStyle   Slot = "style"
)

// ParseSlot は文字列を Slot に変換します。未知の値はエラーです。
func ParseSlot(s string) (Slot, error) {
	switch Slot(strings.ToLower(strings.TrimSpace(s))) {
	case SlotSubject:
		return SlotSubject, nil
	case SlotStyle:
		return SlotStyle, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSlot, s)
}

// Title は画面に表示する枠の見出しです。
func (s Slot) Title() string {
	if s == SlotStyle {
		return "Style Image"
	}
	return "Subject Image"
}

// Source は画像がどの操作で選択されたかを示します。
type Source string

const (
	SourcePicker Source = "picker"
	SourceDrop   Source = "drop"
	SourceURL    Source = "url"
)

// SelectedImage はユーザーが枠に選択した画像とプレビュー参照です。
// 同じ枠に新しい画像が選ばれると、古い PreviewID は解放されます。
type SelectedImage struct {
	Slot      Slot
	Filename  string
	MimeType  string
	Data      []byte
	PreviewID string
	Source    Source
}

// EncodedImage は送信用に base64 テキスト化した画像です。生成ごとに作り直します。
type EncodedImage struct {
	Data     string
	MimeType string
}

// Bytes は base64 ペイロードをバイナリに戻します。
func (e EncodedImage) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Data)
}

// GenerationRequest は被写体・スタイル・プロンプトを揃えた生成要求です。
// AspectRatio と Seed は任意で、未指定ならモデルの既定に任せます。
type GenerationRequest struct {
	Subject     EncodedImage
	Style       EncodedImage
	Prompt      string
	AspectRatio string
	Seed        *int64
}

// ImageResponse は生成された画像データとそのメタデータです。
type ImageResponse struct {
	Data     []byte
	MimeType string
	UsedSeed int64 // 戻り値は情報欠落を防ぐため int64
}
