package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-crawl-pilot/internal/config"
	"github.com/shouni/go-crawl-pilot/internal/pipeline"
	"github.com/shouni/go-crawl-pilot/internal/prompt"
	"github.com/shouni/go-crawl-pilot/pkg/client"
	"github.com/shouni/go-crawl-pilot/pkg/credential"
	"github.com/shouni/go-crawl-pilot/pkg/extract"
	"github.com/shouni/go-crawl-pilot/pkg/feed"
	"github.com/shouni/go-crawl-pilot/pkg/llm"
	"github.com/shouni/go-crawl-pilot/pkg/store"
	"github.com/shouni/go-crawl-pilot/pkg/summarize"
)

// --- グローバル定数 ---

const (
	appName = "crawl-pilot"

	// 全体処理のタイムアウト (extract, feed コマンドで利用)。対話を含む run コマンドには適用しません。
	overallTimeoutFactor  = 2
	DefaultOverallTimeout = 60 * time.Second
)

// コンパイル時のインターフェース充足チェック
var (
	_ extract.Fetcher            = (*client.Client)(nil)
	_ feed.Fetcher               = (*client.Client)(nil)
	_ credential.Prompter        = (*prompt.Prompter)(nil)
	_ pipeline.Prompter          = (*prompt.Prompter)(nil)
	_ pipeline.Summarizer        = (*summarize.Summarizer)(nil)
	_ pipeline.RecordStore       = (*store.CSVStore)(nil)
	_ summarize.Backend          = (*llm.Client)(nil)
	_ summarize.CredentialSource = (*credential.Manager)(nil)
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	Timeout             time.Duration // --timeout HTTPタイムアウト
	LLMTimeout          time.Duration // --llm-timeout 要約リクエストのタイムアウト
	Model               string        // --model
	BaseURL             string        // --base-url
	EnvFile             string        // --env-file APIキーの保存先
	Output              string        // --output レコードファイル
	MaxCredentialResets int           // --max-credential-resets
	CacheSize           int           // --cache-size
	ContinueOnError     bool          // --continue-on-error
	MetricsAddr         string        // --metrics-addr
}

var Flags AppFlags

// appContainer は PersistentPreRunE で組み立てられる共有の依存性です。
type appContainer struct {
	cfg        *config.Config
	fetcher    *client.Client
	prompter   *prompt.Prompter
	creds      *credential.Manager
	summarizer *summarize.Summarizer
	store      *store.CSVStore
	metrics    *pipeline.Metrics
}

var app *appContainer

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	d := config.DefaultConfig()
	pf := rootCmd.PersistentFlags()

	pf.DurationVar(&Flags.Timeout, "timeout", d.HTTPTimeout, "HTTPリクエストのタイムアウト時間")
	pf.DurationVar(&Flags.LLMTimeout, "llm-timeout", d.LLMTimeout, "要約リクエストのタイムアウト時間 (0 で無制限)")
	pf.StringVar(&Flags.Model, "model", d.Model, "要約に使用するモデル名")
	pf.StringVar(&Flags.BaseURL, "base-url", d.BaseURL, "OpenAI互換APIのベースURL")
	pf.StringVar(&Flags.EnvFile, "env-file", d.EnvFile, "APIキーを保存するファイル")
	pf.StringVarP(&Flags.Output, "output", "o", d.OutputFile, "要約を追記するCSVファイル")
	pf.IntVar(&Flags.MaxCredentialResets, "max-credential-resets", d.MaxCredentialResets, "1回の要約で許可するAPIキー再設定の最大回数")
	pf.IntVar(&Flags.CacheSize, "cache-size", d.CacheSize, "要約結果のLRUキャッシュサイズ (0 で無効)")
	pf.BoolVar(&Flags.ContinueOnError, "continue-on-error", d.ContinueOnError, "バッチ処理ですべてのステージのエラーをスキップする")
	pf.StringVar(&Flags.MetricsAddr, "metrics-addr", d.MetricsAddr, "Prometheusメトリクスを公開するアドレス (例: :9090)")
}

// loadConfig は 設定ファイル → 環境変数 → 明示的に指定されたフラグ の順に設定を決定します。
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadSettingsFile(config.SettingsFile); err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("timeout") {
		cfg.HTTPTimeout = Flags.Timeout
	}
	if changed("llm-timeout") {
		cfg.LLMTimeout = Flags.LLMTimeout
	}
	if changed("model") {
		cfg.Model = Flags.Model
	}
	if changed("base-url") {
		cfg.BaseURL = Flags.BaseURL
	}
	if changed("env-file") {
		cfg.EnvFile = Flags.EnvFile
	}
	if changed("output") {
		cfg.OutputFile = Flags.Output
	}
	if changed("max-credential-resets") {
		cfg.MaxCredentialResets = Flags.MaxCredentialResets
	}
	if changed("cache-size") {
		cfg.CacheSize = Flags.CacheSize
	}
	if changed("continue-on-error") {
		cfg.ContinueOnError = Flags.ContinueOnError
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = Flags.MetricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}
	return cfg, nil
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if clibase.Flags.Verbose {
		log.Printf("HTTPクライアントのタイムアウトを設定しました (Timeout: %s)。", cfg.HTTPTimeout)
		log.Printf("要約モデル: %s (BaseURL: %s)", cfg.Model, cfg.BaseURL)
		log.Printf("APIキーファイル: %s, 出力ファイル: %s", cfg.EnvFile, cfg.OutputFile)
	}

	metrics := pipeline.NewMetrics()
	prompter := prompt.New()

	creds, err := credential.NewManager(cfg.EnvFile, cfg.CredentialName, prompter, credential.WithEnvMirror())
	if err != nil {
		return fmt.Errorf("APIキー管理の初期化エラー: %w", err)
	}

	backend := llm.NewClient(llm.Config{BaseURL: cfg.BaseURL, Timeout: cfg.LLMTimeout})
	summarizer, err := summarize.New(
		backend,
		creds,
		summarize.WithModel(cfg.Model),
		summarize.WithMaxCredentialResets(uint64(cfg.MaxCredentialResets)),
		summarize.WithCacheSize(cfg.CacheSize),
		summarize.WithResetHook(metrics.IncCredentialReset),
		summarize.WithOutput(cmd.OutOrStdout()),
	)
	if err != nil {
		return fmt.Errorf("Summarizerの初期化エラー: %w", err)
	}

	app = &appContainer{
		cfg:        cfg,
		fetcher:    client.New(cfg.HTTPTimeout),
		prompter:   prompter,
		creds:      creds,
		summarizer: summarizer,
		store:      store.NewCSVStore(cfg.OutputFile),
		metrics:    metrics,
	}

	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr, metrics)
	}
	return nil
}

// startMetricsServer はメトリクスのHTTPエンドポイントをバックグラウンドで公開します。
func startMetricsServer(addr string, m *pipeline.Metrics) {
	srv := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("メトリクスサーバーが停止しました: %v", err)
		}
	}()
	if clibase.Flags.Verbose {
		log.Printf("メトリクスサーバーを起動しました (Addr: %s)", addr)
	}
}

// getApp は初期化済みの依存性を返します。
func getApp() (*appContainer, error) {
	if app == nil {
		return nil, fmt.Errorf("アプリケーションが初期化されていません")
	}
	return app, nil
}

// newRunner は共有の依存性から Runner を組み立てます。
func (a *appContainer) newRunner(cmd *cobra.Command) (*pipeline.Runner, error) {
	policy := pipeline.DefaultBatchPolicy()
	if a.cfg.ContinueOnError {
		policy = pipeline.ContinueOnErrorPolicy()
	}

	return pipeline.New(
		pipeline.Deps{
			Fetcher:    a.fetcher,
			Summarizer: a.summarizer,
			Store:      a.store,
			Prompter:   a.prompter,
		},
		pipeline.WithOutput(cmd.OutOrStdout()),
		pipeline.WithPolicy(policy),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithVerbose(clibase.Flags.Verbose),
	)
}

// overallTimeout は非対話コマンドの全体タイムアウトを返します。
func (a *appContainer) overallTimeout() time.Duration {
	if a.cfg.HTTPTimeout <= 0 {
		return DefaultOverallTimeout
	}
	return a.cfg.HTTPTimeout * overallTimeoutFactor
}

// signalContext は SIGINT/SIGTERM でキャンセルされるコンテキストを返します。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// --- エントリポイント ---

// Execute は、clibase を使ってルートコマンドを実行します。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		runCmd,
		extractCmd,
		feedCmd,
	)
}
