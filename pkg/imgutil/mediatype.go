package imgutil

import (
	"mime"
	"net/http"
	"strings"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
)

// AcceptedMediaTypes はアップロードを受け付ける MIME タイプの一覧です。
var AcceptedMediaTypes = []string{MimePNG, MimeJPEG, MimeWebP}

// RejectReason は受け付けなかった理由です。
type RejectReason string

const (
	ReasonNone        RejectReason = ""
	ReasonNotImage    RejectReason = "not_image"
	ReasonUnsupported RejectReason = "unsupported"
	ReasonTooLarge    RejectReason = "too_large"
	ReasonUnreadable  RejectReason = "unreadable"
)

// Decision は受け付け判定の結果です。
type Decision struct {
	Accepted  bool
	MediaType string
	Reason    RejectReason
}

// Accept は受け付け判定を作ります。
func Accept(mediaType string) Decision {
	return Decision{Accepted: true, MediaType: mediaType}
}

// Reject は拒否判定を作ります。
func Reject(mediaType string, reason RejectReason) Decision {
	return Decision{MediaType: mediaType, Reason: reason}
}

// ClassifyMediaType は申告された MIME タイプを許可リストと照合します。
// パラメータ (;charset=...) と大文字小文字は無視します。
func ClassifyMediaType(declared string) Decision {
	mt := normalizeMediaType(declared)
	if !strings.HasPrefix(mt, "image/") {
		return Reject(mt, ReasonNotImage)
	}
	for _, accepted := range AcceptedMediaTypes {
		if mt == accepted {
			return Accept(mt)
		}
	}
	return Reject(mt, ReasonUnsupported)
}

// SniffMediaType はバイト列の先頭から MIME タイプを推定します。
func SniffMediaType(data []byte) string {
	return normalizeMediaType(http.DetectContentType(data))
}

func normalizeMediaType(s string) string {
	s = strings.TrimSpace(s)
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	return strings.ToLower(s)
}
