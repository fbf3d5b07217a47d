package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/shouni/gemini-style-fusion/pkg/controller"
	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/gemini-style-fusion/pkg/imgutil"
)

//go:embed templates/*.html
var templateFS embed.FS

// RefreshSeconds は生成中にページを再読み込みする間隔です。
const RefreshSeconds = 2

// UploaderModel は画像枠1つ分の描画内容です。
type UploaderModel struct {
	Slot       domain.Slot
	Title      string
	PreviewURL string
	Filename   string
}

// PageData はページ全体の描画に必要な値です。
type PageData struct {
	Uploaders   []UploaderModel
	Prompt      string
	AspectRatio string
	Seed        string
	Notice      string
	CanSubmit   bool
	Loading     bool
	Refresh     int
	Display     DisplayModel
}

// NewPageData は View を描画用の PageData に変換します。
func NewPageData(v controller.View) PageData {
	loading := v.State.Phase == domain.PhaseLoading
	data := PageData{
		Uploaders: []UploaderModel{
			uploaderModel(domain.SlotSubject, v.Subject),
			uploaderModel(domain.SlotStyle, v.Style),
		},
		Prompt:      v.Prompt,
		AspectRatio: v.AspectRatio,
		Notice:      v.Notice,
		CanSubmit:   v.CanSubmit,
		Loading:     loading,
		Display:     Display(v.State),
	}
	if v.Seed != nil {
		data.Seed = fmt.Sprintf("%d", *v.Seed)
	}
	if loading {
		data.Refresh = RefreshSeconds
	}
	return data
}

// PreviewPath はプレビュー参照の URL パスです。
func PreviewPath(slot domain.Slot, previewID string) string {
	return "/previews/" + url.PathEscape(string(slot)) + "/" + url.PathEscape(previewID)
}

func uploaderModel(slot domain.Slot, img *controller.ImageView) UploaderModel {
	m := UploaderModel{Slot: slot, Title: slot.Title()}
	if img != nil {
		m.PreviewURL = PreviewPath(slot, img.PreviewID)
		m.Filename = img.Filename
	}
	return m
}

// AspectRatios は選択肢として出すアスペクト比です。
var AspectRatios = []string{"1:1", "3:4", "4:3", "9:16", "16:9"}

var funcs = template.FuncMap{
	"accept":       func() string { return strings.Join(imgutil.AcceptedMediaTypes, ", ") },
	"aspectRatios": func() []string { return AspectRatios },
}

// Renderer は埋め込みテンプレートでページを描画します。
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer は埋め込みテンプレートを読み込みます。
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("page.html").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("テンプレートの読み込みに失敗しました: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Page はページ全体を w に書き出します。途中で失敗しても半端な HTML は書きません。
func (r *Renderer) Page(w io.Writer, data PageData) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "page.html", data); err != nil {
		return fmt.Errorf("ページの描画に失敗しました: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
