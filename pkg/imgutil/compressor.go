package imgutil

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// CompressToJPEG は画像データ（PNG, GIF, JPEG, WebP等）をJPEG形式に圧縮します。
// image.Decodeがサポートするフォーマットに対応しています。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FitWithin は長辺が maxDim を超える画像を縦横比を保って縮小します。
// 収まっている画像、デコードできない画像、maxDim <= 0 のときは入力をそのまま返します。
// 縮小後は JPEG 入力なら JPEG、それ以外は PNG で再エンコードします。
func FitWithin(data []byte, mimeType string, maxDim int) ([]byte, string) {
	if maxDim <= 0 {
		return data, mimeType
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || (cfg.Width <= maxDim && cfg.Height <= maxDim) {
		return data, mimeType
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, mimeType
	}
	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	format, outMime := imaging.PNG, MimePNG
	if mimeType == MimeJPEG {
		format, outMime = imaging.JPEG, MimeJPEG
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, resized, format, imaging.JPEGQuality(DefaultJPEGQuality)); err != nil {
		return data, mimeType
	}
	return buf.Bytes(), outMime
}

// DefaultJPEGQuality は再エンコード時の JPEG 品質です。
const DefaultJPEGQuality = 90
