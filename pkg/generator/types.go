package generator

// DefaultModel は画像入出力に対応した Gemini モデルの既定値です。
const DefaultModel = "gemini-2.5-flash-image"

// ImageOutput は応答解析の内部結果
type ImageOutput struct {
	Data     []byte
	MimeType string
	UsedSeed int64
}
