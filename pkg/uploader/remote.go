package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/gemini-style-fusion/pkg/domain"
	"github.com/shouni/gemini-style-fusion/pkg/imgutil"
)

// Fetcher は URL からデータを取得します。go-http-kit のクライアントが満たします。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// ImageCacher は、取得した画像をキャッシュするためのインターフェースです。
type ImageCacher interface {
	Get(key string) (any, bool)
	Set(key string, value any, d time.Duration)
}

const (
	cacheKeyRemoteImage = "remote_image:"
	gcsScheme           = "gs://"
)

var (
	// ErrUnsafeURL は取り込みを許可しない URL です。
	ErrUnsafeURL = errors.New("unsafe url")
	// ErrStorageUnavailable は gs:// を読むリーダーが設定されていないことを示します。
	ErrStorageUnavailable = errors.New("cloud storage reader is not configured")
)

// Importer は URL 指定の画像を取得して Uploader の受け付け処理に流します。
type Importer struct {
	fetcher  Fetcher
	cache    ImageCacher
	cacheTTL time.Duration
	reader   remoteio.InputReader
	urlCheck func(string) (bool, error)
}

// ImporterOption は Importer の任意設定です。
type ImporterOption func(*Importer)

// WithInputReader は gs:// の画像を読むリーダーを設定します。
// 未設定なら gs:// は ErrStorageUnavailable で断るのだ。
func WithInputReader(r remoteio.InputReader) ImporterOption {
	return func(i *Importer) { i.reader = r }
}

// NewImporter は依存関係を注入して Importer を初期化します。cache は nil を許容します。
func NewImporter(fetcher Fetcher, cache ImageCacher, cacheTTL time.Duration, opts ...ImporterOption) (*Importer, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	i := &Importer{
		fetcher:  fetcher,
		cache:    cache,
		cacheTTL: cacheTTL,
		urlCheck: IsSafeURL,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Import は rawURL の画像を取得し、u の枠に選択します。
// 取得できなかった場合はエラー、画像でなかった場合は拒否判定を返します。
func (i *Importer) Import(ctx context.Context, u *Uploader, rawURL string) (imgutil.Decision, error) {
	data, err := i.fetch(ctx, rawURL)
	if err != nil {
		return imgutil.Decision{}, err
	}

	name := path.Base(rawURL)
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Path != "" {
		name = path.Base(parsed.Path)
	}
	return u.accept(FromBytes(name, imgutil.SniffMediaType(data), data), domain.SourceURL), nil
}

func (i *Importer) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	key := cacheKeyRemoteImage + rawURL
	if i.cache != nil {
		if cached, found := i.cache.Get(key); found {
			if data, ok := cached.([]byte); ok {
				return data, nil
			}
			slog.WarnContext(ctx, "キャッシュデータが不正な型です", "url", rawURL, "type", fmt.Sprintf("%T", cached))
		}
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(rawURL, gcsScheme) {
		data, err = i.readStorage(ctx, rawURL)
	} else {
		data, err = i.download(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}
	if i.cache != nil {
		i.cache.Set(key, data, i.cacheTTL)
	}
	return data, nil
}

func (i *Importer) download(ctx context.Context, rawURL string) ([]byte, error) {
	// SSRF対策のバリデーション
	if safe, err := i.urlCheck(rawURL); !safe || err != nil {
		slog.WarnContext(ctx, "不正なURL、またはSSRFの可能性があるURLをブロックしました", "url", rawURL, "error", err)
		if err == nil {
			err = ErrUnsafeURL
		}
		return nil, fmt.Errorf("the image URL is not allowed: %w", err)
	}

	data, err := i.fetcher.FetchBytes(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	return data, nil
}

func (i *Importer) readStorage(ctx context.Context, rawURL string) ([]byte, error) {
	if i.reader == nil {
		return nil, fmt.Errorf("the image URL is not allowed: %w", ErrStorageUnavailable)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || strings.Trim(parsed.Path, "/") == "" {
		return nil, fmt.Errorf("the image URL is not allowed: %w", ErrUnsafeURL)
	}

	rc, err := i.reader.Open(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open stored image: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored image: %w", err)
	}
	return data, nil
}

// IsSafeURL は SSRF 対策として URL を検証します。
// 名前解決されたすべての IP アドレスに対してプライベート IP チェックを行います。
func IsSafeURL(rawURL string) (bool, error) {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolved, err := net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("名前解決失敗: %w", err)
		}
		ips = resolved
	}
	if len(ips) == 0 {
		return false, fmt.Errorf("IPが見つかりません")
	}

	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return false, fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip.String())
		}
	}
	return true, nil
}
