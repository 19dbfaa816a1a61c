package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxRetries は最大リトライ回数のデフォルト値です。
	DefaultMaxRetries = 1

	// バックオフのカスタム設定
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーを受け取り、そのエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// NotifyFunc は、リトライ対象のエラーが発生し、次の試行まで待機する直前に呼び出されます。
type NotifyFunc func(err error, next time.Duration)

// Config はリトライ動作を設定するための構造体です。
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Notify          NotifyFunc // 任意
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

// ExhaustedError は、最大リトライ回数に到達しても操作が成功しなかったことを示します。
// Unwrap は最後の試行で発生したエラーを返します。
type ExhaustedError struct {
	Operation string
	Attempts  uint64
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%sに失敗しました: 最大リトライ回数 (%d回) に到達。最終エラー: %v", e.Operation, e.Attempts-1, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// newBackOffPolicy は設定値とコンテキストを適用したバックオフポリシーを生成します。
func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	// 試行回数は MaxRetries のみで制限する
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}

// Do は指数バックオフとカスタムエラー判定を使用して操作をリトライします。
// リトライ対象外のエラーはそのまま返し、リトライ上限に達した場合は *ExhaustedError を返します。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	bo := newBackOffPolicy(ctx, cfg)

	var (
		lastErr   error
		permanent bool
		attempts  uint64
	)

	// リトライ処理内で実行される実際の操作
	retryableOp := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if shouldRetryFn(err) {
			return err
		}

		permanent = true
		return backoff.Permanent(err) // 永続エラーとしてラップし、即時終了
	}

	notify := func(err error, next time.Duration) {
		if cfg.Notify != nil {
			cfg.Notify(err, next)
		}
	}

	err := backoff.RetryNotify(retryableOp, bo, notify)
	if err == nil {
		return nil
	}

	if permanent {
		return lastErr
	}

	// コンテキストキャンセル/タイムアウトのエラー処理
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, err)
	}

	return &ExhaustedError{
		Operation: operationName,
		Attempts:  attempts,
		Err:       lastErr,
	}
}
