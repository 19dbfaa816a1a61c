package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// ----------------------------------------------------------------------
// 定数とインターフェース
// ----------------------------------------------------------------------

const (
	// DefaultHTTPTimeout は、ページ取得1回あたりのHTTPタイムアウトです。
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultScheme は、スキームが省略されたURLに補完するスキームです。
	DefaultScheme = "https"
)

// Doer は、標準の *http.Client.Do()と互換性のあるHTTPクライアントのインターフェースを定義します。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// InvalidURLError は、取得前にURLとして扱えないと判断された入力を示します。
type InvalidURLError struct {
	URL string
	Err error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("無効なURLです (%s): %v", e.URL, e.Err)
}

func (e *InvalidURLError) Unwrap() error { return e.Err }

// NetworkError は、ページ取得時の通信エラーを示します。HTTPステータスはエラーとして扱いません。
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("URL(%s)の取得に失敗しました: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client は httpkit.Client をラップし、ページ取得のエラーを分類します。
type Client struct {
	*httpkit.Client // httpkit.Client を埋め込み、そのすべてのメソッドを継承
}

// ----------------------------------------------------------------------
// 設定とコンストラクタ
// ----------------------------------------------------------------------

// ClientOption はClientの設定を行うための関数型です。
// 内部の httpkit.Client のオプションを適用するためのラッパーです。
type ClientOption func(*Client)

// WithHTTPClient はカスタムのDoerを設定します。
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) {
		httpkit.WithHTTPClient(doer)(c.Client)
	}
}

// New は新しいClientを初期化します。
// ページ取得はリトライしないため、httpkit のリトライ回数は0に固定します。
func New(timeout time.Duration, options ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		Client: httpkit.New(timeout, httpkit.WithMaxRetries(0)),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// ----------------------------------------------------------------------
// httpkit メソッドの利用
// ----------------------------------------------------------------------

// Response は取得したページの生のボディとステータスコードです。
type Response struct {
	StatusCode int
	Body       []byte
}

// Fetch は URL に GET リクエストを送信し、ステータスコードに関係なくボディを返します。
// 404 などのエラーページもそのまま抽出・要約の対象とするため、非2xxはエラーにしません。
// リダイレクトは追従します。URLが不正な場合は *InvalidURLError、通信に失敗した場合は *NetworkError を返します。
func (c *Client) Fetch(ctx context.Context, rawURL string) (Response, error) {
	if err := validateURL(rawURL); err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, &InvalidURLError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", httpkit.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return Response{}, &NetworkError{URL: rawURL, Err: err}
	}

	// HandleLimitedResponse はステータスを判定せず、ボディを閉じます
	body, err := httpkit.HandleLimitedResponse(resp, httpkit.MaxResponseBodySize)
	if err != nil {
		return Response{}, &NetworkError{URL: rawURL, Err: err}
	}
	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// FetchBytes は Fetch を呼び出し、ボディのみを返します。
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// EnsureScheme は、URLのスキームが存在しない場合に https:// を補完します。
// 既にスキームが存在する場合は、それが http または https であるかをチェックします。
func EnsureScheme(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", &InvalidURLError{URL: rawURL, Err: err}
	}

	if parsedURL.Scheme == "" {
		// スキームなしで入力された場合、HTTPSを優先します。HTTPを意図する場合は明示的に http:// を付与する必要があります。
		return DefaultScheme + "://" + rawURL, nil
	}

	if err := validateURL(rawURL); err != nil {
		return "", err
	}
	return rawURL, nil
}

// validateURL はスキームとホストを検証します。
func validateURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &InvalidURLError{URL: rawURL, Err: err}
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &InvalidURLError{URL: rawURL, Err: fmt.Errorf("httpまたはhttpsを指定してください (スキーム: %q)", parsedURL.Scheme)}
	}
	if parsedURL.Host == "" {
		return &InvalidURLError{URL: rawURL, Err: fmt.Errorf("ホストが含まれていません")}
	}
	return nil
}
