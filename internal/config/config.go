package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/shouni/go-crawl-pilot/pkg/client"
	"github.com/shouni/go-crawl-pilot/pkg/credential"
	"github.com/shouni/go-crawl-pilot/pkg/llm"
	"github.com/shouni/go-crawl-pilot/pkg/store"
	"github.com/shouni/go-crawl-pilot/pkg/summarize"
)

const (
	// SettingsFile は任意の設定ファイルです。存在する場合のみ読み込みます。
	SettingsFile = "crawl-pilot.env"
	envPrefix    = "CRAWL_PILOT_"
)

// Config はアプリケーション全体の設定を保持します。
type Config struct {
	HTTPTimeout         time.Duration
	LLMTimeout          time.Duration // 0 の場合はタイムアウトなし
	Model               string
	BaseURL             string
	EnvFile             string
	CredentialName      string
	OutputFile          string
	MaxCredentialResets int
	CacheSize           int
	ContinueOnError     bool
	MetricsAddr         string
}

// DefaultConfig はデフォルト設定を返します。
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout:         client.DefaultHTTPTimeout,
		LLMTimeout:          0,
		Model:               llm.DefaultModel,
		BaseURL:             llm.DefaultBaseURL,
		EnvFile:             credential.DefaultPath,
		CredentialName:      credential.DefaultName,
		OutputFile:          store.DefaultPath,
		MaxCredentialResets: summarize.DefaultMaxCredentialResets,
		CacheSize:           128,
		ContinueOnError:     false,
		MetricsAddr:         "",
	}
}

// LoadSettingsFile は設定ファイルを環境変数に読み込みます。既存の環境変数は上書きしません。
func LoadSettingsFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("設定ファイル(%s)の読み込みに失敗しました: %w", path, err)
	}
	return nil
}

// ApplyEnv は CRAWL_PILOT_* 環境変数の値で設定を上書きします。
func (c *Config) ApplyEnv() error {
	if v, ok := lookup("MODEL"); ok {
		c.Model = v
	}
	if v, ok := lookup("BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := lookup("ENV_FILE"); ok {
		c.EnvFile = v
	}
	if v, ok := lookup("OUTPUT"); ok {
		c.OutputFile = v
	}
	if v, ok := lookup("METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT の値が不正です: %w", envPrefix, err)
		}
		c.HTTPTimeout = d
	}
	if v, ok := lookup("MAX_CREDENTIAL_RESETS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_CREDENTIAL_RESETS の値が不正です: %w", envPrefix, err)
		}
		c.MaxCredentialResets = n
	}
	if v, ok := lookup("CACHE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCACHE_SIZE の値が不正です: %w", envPrefix, err)
		}
		c.CacheSize = n
	}
	if v, ok := lookup("CONTINUE_ON_ERROR"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCONTINUE_ON_ERROR の値が不正です: %w", envPrefix, err)
		}
		c.ContinueOnError = b
	}
	return nil
}

// Validate は設定値の整合性を検証します。
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTPタイムアウトは正の値である必要があります")
	}
	if c.LLMTimeout < 0 {
		return fmt.Errorf("LLMタイムアウトは負の値にできません")
	}
	if c.Model == "" {
		return fmt.Errorf("モデル名は空にできません")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("ベースURLが不正です: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("ベースURLには http(s) スキームとホストが必要です: %s", c.BaseURL)
	}
	if c.EnvFile == "" {
		return fmt.Errorf("キーファイルのパスは空にできません")
	}
	if c.CredentialName == "" {
		return fmt.Errorf("APIキーのキー名は空にできません")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("出力ファイルのパスは空にできません")
	}
	if c.MaxCredentialResets < 0 {
		return fmt.Errorf("APIキー再設定の最大回数は負の値にできません")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("キャッシュサイズは負の値にできません")
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
