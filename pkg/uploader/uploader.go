// Package uploader は画像枠へのファイル選択（クリック選択・ドラッグ&ドロップ・URL取り込み）を扱います。
package uploader

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/google/uuid"
	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/gemini-style-fusion/pkg/imgutil"
)

// DefaultMaxBytes はアップロード1件あたりの上限サイズです。
const DefaultMaxBytes int64 = 10 << 20

// DefaultCompressAbove を超える画像は送信前に JPEG へ再圧縮します。
// Gemini へのリクエストは2枚分の base64 がインラインで乗るので、その大きさを抑えるのだ。
const DefaultCompressAbove int64 = 4 << 20

// File は選択されたファイルです。DeclaredType はブラウザが申告した MIME タイプです。
type File struct {
	Name         string
	DeclaredType string
	Open         func() (io.ReadCloser, error)
}

// FromMultipart は multipart のファイルヘッダーを File に変換します。
func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Name:         fh.Filename,
		DeclaredType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes はメモリ上のデータを File に変換します。
func FromBytes(name, declaredType string, data []byte) File {
	return File{
		Name:         name,
		DeclaredType: declaredType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Option は Uploader の設定を変更します。
type Option func(*Uploader)

// WithMaxBytes は受け付ける最大サイズを指定します。
func WithMaxBytes(n int64) Option {
	return func(u *Uploader) { u.maxBytes = n }
}

// WithMaxDimension は長辺の上限を指定します。超える画像は縮小されます。
func WithMaxDimension(px int) Option {
	return func(u *Uploader) { u.maxDim = px }
}

// WithCompressAbove は JPEG 再圧縮を始めるサイズを指定します。0 以下なら再圧縮しません。
func WithCompressAbove(n int64) Option {
	return func(u *Uploader) { u.compressAbove = n }
}

// WithPreviewIDs はプレビュー参照の採番方法を差し替えます。
func WithPreviewIDs(next func() string) Option {
	return func(u *Uploader) { u.newID = next }
}

// Uploader は1つの画像枠に対するアップロード操作です。
// 画像以外は黙って無視し、受け付けたときだけ onSelect を呼びます。
type Uploader struct {
	slot          domain.Slot
	onSelect      func(domain.SelectedImage)
	maxBytes      int64
	maxDim        int
	compressAbove int64
	newID         func() string
}

// New は Uploader を作成します。
func New(slot domain.Slot, onSelect func(domain.SelectedImage), opts ...Option) (*Uploader, error) {
	if onSelect == nil {
		return nil, fmt.Errorf("onSelect callback is required")
	}
	u := &Uploader{
		slot:          slot,
		onSelect:      onSelect,
		maxBytes:      DefaultMaxBytes,
		compressAbove: DefaultCompressAbove,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Pick はファイル選択ダイアログから渡されたファイルを処理します。
func (u *Uploader) Pick(file File) imgutil.Decision {
	return u.accept(file, domain.SourcePicker)
}

// Drop はドロップされたファイル群のうち先頭の1件だけを処理します。
func (u *Uploader) Drop(files []File) imgutil.Decision {
	if len(files) == 0 {
		return imgutil.Reject("", imgutil.ReasonNotImage)
	}
	return u.accept(files[0], domain.SourceDrop)
}

func (u *Uploader) accept(file File, source domain.Source) imgutil.Decision {
	decision := imgutil.ClassifyMediaType(file.DeclaredType)
	if !decision.Accepted {
		slog.Debug("画像以外のファイルを無視しました", "slot", u.slot, "name", file.Name, "declared", file.DeclaredType, "reason", decision.Reason)
		return decision
	}

	data, err := u.read(file)
	if err != nil {
		slog.Warn("アップロードされたファイルを読み込めませんでした", "slot", u.slot, "name", file.Name, "error", err)
		return imgutil.Reject(decision.MediaType, imgutil.ReasonUnreadable)
	}
	if u.maxBytes > 0 && int64(len(data)) > u.maxBytes {
		slog.Debug("サイズ上限を超えたファイルを無視しました", "slot", u.slot, "name", file.Name, "bytes", len(data), "max", u.maxBytes)
		return imgutil.Reject(decision.MediaType, imgutil.ReasonTooLarge)
	}

	mimeType := decision.MediaType
	data, mimeType = imgutil.FitWithin(data, mimeType, u.maxDim)
	data, mimeType = u.compress(data, mimeType)

	u.onSelect(domain.SelectedImage{
		Slot:      u.slot,
		Filename:  file.Name,
		MimeType:  mimeType,
		Data:      data,
		PreviewID: u.newID(),
		Source:    source,
	})
	return imgutil.Accept(mimeType)
}

// compress は大きな画像を JPEG に再圧縮します。小さくならなければ元のまま返します。
func (u *Uploader) compress(data []byte, mimeType string) ([]byte, string) {
	if u.compressAbove <= 0 || int64(len(data)) <= u.compressAbove {
		return data, mimeType
	}
	compressed, err := imgutil.CompressToJPEG(data, imgutil.DefaultJPEGQuality)
	if err != nil || len(compressed) >= len(data) {
		return data, mimeType
	}
	slog.Debug("大きな画像を JPEG に再圧縮しました", "slot", u.slot, "before", len(data), "after", len(compressed))
	return compressed, imgutil.MimeJPEG
}

func (u *Uploader) read(file File) ([]byte, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("file %q has no content", file.Name)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if u.maxBytes > 0 {
		// 上限 +1 バイトまで読めば超過を判定できる
		r = io.LimitReader(rc, u.maxBytes+1)
	}
	return io.ReadAll(r)
}
