package summarize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shouni/go-crawl-pilot/pkg/credential"
	"github.com/shouni/go-crawl-pilot/pkg/llm"
	"github.com/shouni/go-crawl-pilot/pkg/retry"
	"github.com/shouni/go-crawl-pilot/pkg/types"
)

const (
	// DefaultTemperature は決定的な出力を得るためのサンプリング温度です。
	DefaultTemperature = 0.0
	// DefaultMaxCredentialResets は1回の要約で許可するAPIキー再設定の回数です。
	DefaultMaxCredentialResets = 1

	// stuffPromptTemplate は本文全体を1つのプロンプトに詰め込む "stuff" 方式のテンプレートです。
	stuffPromptTemplate = "Write a concise summary of the following:\n\n\n\"%s\"\n\n\nCONCISE SUMMARY:"
	operationName       = "本文の要約"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Backend は要約バックエンドへの1回の同期呼び出しを表します。
type Backend interface {
	Chat(ctx context.Context, apiKey string, req llm.ChatRequest) (string, error)
}

// CredentialSource は APIキーを提供します。forceReset で保存済みのキーを破棄して再入力させます。
type CredentialSource interface {
	LoadOrPrompt(ctx context.Context, forceReset bool) (credential.Credential, error)
}

// BackendFailure は、APIキー再設定の上限に達してもバックエンド呼び出しが成功しなかったことを示します。
// Unwrap は最後のバックエンドエラーを返します。
type BackendFailure struct {
	Attempts int
	Err      error
}

func (e *BackendFailure) Error() string {
	return fmt.Sprintf("要約バックエンドの呼び出しに失敗しました (試行回数: %d): %v", e.Attempts, e.Err)
}

func (e *BackendFailure) Unwrap() error { return e.Err }

// credentialResetError はリトライを即時中止させるための内部エラーです。
type credentialResetError struct {
	err error
}

func (e *credentialResetError) Error() string { return e.err.Error() }

// Summarizer は要約バックエンドをラップし、失敗時にAPIキーを再設定してリトライします。
type Summarizer struct {
	backend     Backend
	creds       CredentialSource
	model       string
	temperature float64
	retryConfig retry.Config
	cacheSize   int
	cache       *lru.Cache[string, string]
	onReset     func()
	out         io.Writer
}

// Option は Summarizer の設定を行うための関数型です。
type Option func(*Summarizer)

// WithModel は使用するモデルを設定します。
func WithModel(model string) Option {
	return func(s *Summarizer) {
		if model != "" {
			s.model = model
		}
	}
}

// WithTemperature はサンプリング温度を設定します。
func WithTemperature(temperature float64) Option {
	return func(s *Summarizer) {
		s.temperature = temperature
	}
}

// WithMaxCredentialResets は1回の要約で許可するAPIキー再設定の回数を設定します。
func WithMaxCredentialResets(n uint64) Option {
	return func(s *Summarizer) {
		s.retryConfig.MaxRetries = n
	}
}

// WithRetryInterval はリトライ間の待機時間を設定します。
func WithRetryInterval(initial, max time.Duration) Option {
	return func(s *Summarizer) {
		s.retryConfig.InitialInterval = initial
		s.retryConfig.MaxInterval = max
	}
}

// WithCacheSize は同一本文の要約結果を保持するLRUキャッシュのサイズを設定します。0以下で無効です。
func WithCacheSize(size int) Option {
	return func(s *Summarizer) {
		s.cacheSize = size
	}
}

// WithResetHook はAPIキーを再設定するたびに呼び出される関数を設定します。
func WithResetHook(fn func()) Option {
	return func(s *Summarizer) {
		s.onReset = fn
	}
}

// WithOutput は再設定時の通知 ("Authentication error") の出力先を設定します。デフォルトは標準出力です。
func WithOutput(w io.Writer) Option {
	return func(s *Summarizer) {
		s.out = w
	}
}

// New は新しい Summarizer を生成します。
func New(backend Backend, creds CredentialSource, opts ...Option) (*Summarizer, error) {
	if backend == nil {
		return nil, fmt.Errorf("summarize.New: Backend cannot be nil")
	}
	if creds == nil {
		return nil, fmt.Errorf("summarize.New: CredentialSource cannot be nil")
	}

	cfg := retry.DefaultConfig()
	cfg.MaxRetries = DefaultMaxCredentialResets

	s := &Summarizer{
		backend:     backend,
		creds:       creds,
		model:       llm.DefaultModel,
		temperature: DefaultTemperature,
		retryConfig: cfg,
		onReset:     func() {},
		out:         os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cacheSize > 0 {
		cache, err := lru.New[string, string](s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("要約キャッシュの初期化に失敗しました: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Summarize は本文全体を1回のリクエストで要約します。
// バックエンドのエラーはすべてAPIキーの不備とみなし、キーを再設定してから再試行します。
// 再設定の上限に達した場合は *BackendFailure を返します。
func (s *Summarizer) Summarize(ctx context.Context, bodyText string) (types.SummaryResult, error) {
	key := s.cacheKey(bodyText)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			log.Printf("同一本文の要約をキャッシュから再利用します (model: %s)", s.model)
			return types.SummaryResult{OutputText: cached}, nil
		}
	}

	cred, err := s.creds.LoadOrPrompt(ctx, false)
	if err != nil {
		return types.SummaryResult{}, fmt.Errorf("APIキーの読み込みに失敗しました: %w", err)
	}

	req := llm.ChatRequest{
		Model:       s.model,
		Temperature: s.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(stuffPromptTemplate, bodyText)},
		},
	}

	var (
		output     string
		attempts   int
		backendErr error
	)

	op := func() error {
		if attempts > 0 {
			fmt.Fprintln(s.out, "\nAuthentication error")
			cred, err = s.creds.LoadOrPrompt(ctx, true)
			if err != nil {
				return &credentialResetError{err: err}
			}
			s.onReset()
		}
		attempts++

		out, err := s.backend.Chat(ctx, cred.Value, req)
		if err != nil {
			backendErr = err
			return err
		}
		output = out
		return nil
	}

	shouldRetry := func(err error) bool {
		var resetErr *credentialResetError
		return !errors.As(err, &resetErr)
	}

	if err := retry.Do(ctx, s.retryConfig, operationName, op, shouldRetry); err != nil {
		var resetErr *credentialResetError
		if errors.As(err, &resetErr) {
			return types.SummaryResult{}, fmt.Errorf("APIキーの再設定に失敗しました: %w", resetErr.err)
		}
		if backendErr == nil || ctx.Err() != nil {
			return types.SummaryResult{}, err
		}
		return types.SummaryResult{}, &BackendFailure{Attempts: attempts, Err: backendErr}
	}

	if s.cache != nil {
		s.cache.Add(key, output)
	}
	return types.SummaryResult{OutputText: output}, nil
}

func (s *Summarizer) cacheKey(bodyText string) string {
	sum := sha256.Sum256([]byte(s.model + "\x00" + bodyText))
	return hex.EncodeToString(sum[:])
}
