package imgutil

import (
	"encoding/base64"
	"io"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
)

const encodeFailureMessage = "Failed to convert file to base64."

// Encode は画像バイナリを読み込み、base64 テキストと申告 MIME タイプの組にします。
// 読み込み失敗や空ペイロードは *domain.EncodingError です。型の検証はここでは行いません。
func Encode(r io.Reader, mimeType string) (domain.EncodedImage, error) {
	if r == nil {
		return domain.EncodedImage{}, &domain.EncodingError{Message: encodeFailureMessage}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.EncodedImage{}, &domain.EncodingError{Message: encodeFailureMessage, Err: err}
	}
	return EncodeBytes(data, mimeType)
}

// EncodeBytes は Encode のバイト列版です。
func EncodeBytes(data []byte, mimeType string) (domain.EncodedImage, error) {
	payload := base64.StdEncoding.EncodeToString(data)
	if payload == "" {
		return domain.EncodedImage{}, &domain.EncodingError{Message: encodeFailureMessage}
	}
	return domain.EncodedImage{Data: payload, MimeType: mimeType}, nil
}
