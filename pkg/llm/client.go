package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

const (
	// DefaultBaseURL は OpenAI 互換APIのデフォルトのエンドポイントです。
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel は要約に使用するモデルです。
	DefaultModel = "gpt-4o-mini"
)

// Doer は、標準の *http.Client.Do()と互換性のあるHTTPクライアントのインターフェースを定義します。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config は LLM クライアントの設定です。
type Config struct {
	BaseURL string
	// Timeout が0の場合、タイムアウトは設定しません。
	Timeout time.Duration
}

// Message はチャットメッセージです。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest は chat completions API へのリクエストです。
// Temperature は0でも省略せずに送信します。
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// APIError は、バックエンドが4xx系のステータスを返したことを示します。
// 5xx 系は httpkit のステータスコードエラーとしてそのまま返します。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM APIエラー (ステータスコード %d): %s", e.StatusCode, e.Message)
}

// Client は OpenAI 互換の chat completions API クライアントです。
// 送信とレスポンス処理は httpkit.Client に委譲します。
type Client struct {
	baseURL string
	kit     *httpkit.Client
}

// Option は Client の設定を行うための関数型です。
type Option func(*Client)

// WithHTTPClient はカスタムのDoerを設定します。
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		httpkit.WithHTTPClient(doer)(c.kit)
	}
}

// NewClient は新しい Client を生成します。
func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// リトライは要約側のAPIキー再設定で行うため、httpkit ではリトライしない。
	// httpkit.New はタイムアウト0をデフォルト値に置き換えるため、http.Client を明示的に渡す。
	c := &Client{
		baseURL: baseURL,
		kit: httpkit.New(0,
			httpkit.WithMaxRetries(0),
			httpkit.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat は1回の同期リクエストを送信し、最初の choice のテキストを返します。
// APIキーは呼び出しごとに明示的に渡します。
func (c *Client) Chat(ctx context.Context, apiKey string, chatReq ChatRequest) (string, error) {
	chatReq.Stream = false
	jsonBody, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("リクエストのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	body, err := c.kit.DoRequest(req)
	if err != nil {
		var httpErr *httpkit.NonRetryableHTTPError
		if errors.As(err, &httpErr) {
			return "", newAPIError(httpErr)
		}
		return "", fmt.Errorf("LLM APIへのリクエストに失敗しました: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("レスポンスの解析に失敗しました: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("LLM APIがエラーを返しました: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("レスポンスに choices が含まれていません")
	}

	return parsed.Choices[0].Message.Content, nil
}

// newAPIError は4xx応答のボディから error.message を取り出します。JSONでない場合はボディ全体を使います。
func newAPIError(httpErr *httpkit.NonRetryableHTTPError) *APIError {
	msg := strings.TrimSpace(string(httpErr.Body))
	var parsed chatResponse
	if err := json.Unmarshal(httpErr.Body, &parsed); err == nil && parsed.Error != nil {
		msg = parsed.Error.Message
	}
	return &APIError{StatusCode: httpErr.StatusCode, Message: msg}
}
