package domain

import "errors"

// 入力不足のときに表示するメッセージです。
const MissingInputMessage = "Please provide a subject image, a style image, and a prompt."

// 認識できないエラーのときに表示する汎用メッセージです。
const UnknownFailureMessage = "An unknown error occurred during image generation."

var (
	ErrGenerationInFlight = errors.New("generation already in progress")
	ErrUnknownSlot        = errors.New("unknown image slot")
)

// ValidationError は送信時の入力不足です。リクエストは開始されません。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// EncodingError は選択画像を送信用表現に変換できなかったことを表します。
type EncodingError struct {
	Message string
	Err     error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *EncodingError) Unwrap() error { return e.Err }

// RemoteError は生成サービス側の失敗です。Message はそのままユーザーに見せます。
type RemoteError struct {
	Message string
	Err     error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Err }

// UserMessage はエラーを画面表示用の一文に変換します。
// 既知のエラー型ならそのメッセージ、それ以外は汎用メッセージです。
func UserMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	var rerr *RemoteError
	if errors.As(err, &rerr) && rerr.Message != "" {
		return rerr.Message
	}
	var eerr *EncodingError
	if errors.As(err, &eerr) && eerr.Message != "" {
		return eerr.Message
	}
	return UnknownFailureMessage
}
