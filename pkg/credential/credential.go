package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
)

const (
	// DefaultPath は APIキーを保存するファイルです。
	DefaultPath = ".env"
	// DefaultName は APIキーのキー名です。
	DefaultName = "OPENAI_API_KEY"

	promptLabel = "Enter api key"
	fileMode    = 0o600
)

// Credential は、固定のキー名に紐づく1つの秘密文字列です。
type Credential struct {
	Name  string
	Value string
}

// Prompter は、対話的に文字列を入力させる機能のインターフェースです。
type Prompter interface {
	Input(label string) (string, error)
}

// Manager は、ローカルのキー・バリューファイルに APIキーを読み書きします。
type Manager struct {
	path      string
	name      string
	prompter  Prompter
	mirrorEnv bool
}

// Option は Manager の設定を行うための関数型です。
type Option func(*Manager)

// WithEnvMirror は、読み込んだ値をプロセスの環境変数にも反映させます。
func WithEnvMirror() Option {
	return func(m *Manager) {
		m.mirrorEnv = true
	}
}

// NewManager は新しい Manager を生成します。path と name が空の場合はデフォルト値を使用します。
func NewManager(path, name string, prompter Prompter, opts ...Option) (*Manager, error) {
	if prompter == nil {
		return nil, fmt.Errorf("credential.NewManager: Prompter cannot be nil")
	}
	if path == "" {
		path = DefaultPath
	}
	if name == "" {
		name = DefaultName
	}
	m := &Manager{
		path:     path,
		name:     name,
		prompter: prompter,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Path はキーファイルのパスを返します。
func (m *Manager) Path() string { return m.path }

// LoadOrPrompt はキーファイルから APIキーを読み込みます。
// forceReset が true の場合は先にファイルを空にするため、必ず再入力を求めます。
// キーが存在しない場合は空でない文字列が入力されるまで繰り返し入力を求め、
// "NAME = value" をファイルの唯一の行として書き込みます。
func (m *Manager) LoadOrPrompt(ctx context.Context, forceReset bool) (Credential, error) {
	if forceReset {
		if err := os.WriteFile(m.path, nil, fileMode); err != nil {
			return Credential{}, fmt.Errorf("キーファイル(%s)の初期化に失敗しました: %w", m.path, err)
		}
	}

	values, err := m.read()
	if err != nil {
		return Credential{}, err
	}

	value, ok := values[m.name]
	if !ok {
		value, err = m.promptUntilNonEmpty(ctx)
		if err != nil {
			return Credential{}, err
		}

		line := fmt.Sprintf("%s = %s", m.name, value)
		if err := os.WriteFile(m.path, []byte(line), fileMode); err != nil {
			return Credential{}, fmt.Errorf("キーファイル(%s)への書き込みに失敗しました: %w", m.path, err)
		}
	}

	if m.mirrorEnv {
		// ファイル内のすべてのキーを環境変数へ反映する
		if err := godotenv.Overload(m.path); err != nil {
			return Credential{}, fmt.Errorf("キーファイル(%s)から環境変数への反映に失敗しました: %w", m.path, err)
		}
	}

	return Credential{Name: m.name, Value: value}, nil
}

// read はキーファイルを読み込みます。ファイルが存在しない場合は空として扱います。
func (m *Manager) read() (map[string]string, error) {
	values, err := godotenv.Read(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("キーファイル(%s)の読み込みに失敗しました: %w", m.path, err)
	}
	return values, nil
}

func (m *Manager) promptUntilNonEmpty(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		input, err := m.prompter.Input(promptLabel)
		if err != nil {
			return "", fmt.Errorf("APIキーの入力に失敗しました: %w", err)
		}
		if input != "" {
			return input, nil
		}
		log.Println("APIキーが空です。もう一度入力してください。")
	}
}
