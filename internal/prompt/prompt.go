package prompt

import (
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
)

// Prompter は promptui を使った対話的な入力です。
type Prompter struct {
	stdin  io.ReadCloser
	stdout io.WriteCloser
}

// Option は Prompter の設定を行うための関数型です。
type Option func(*Prompter)

// WithIO は入出力先を差し替えます。nil の場合は標準入出力を使用します。
func WithIO(stdin io.ReadCloser, stdout io.WriteCloser) Option {
	return func(p *Prompter) {
		p.stdin = stdin
		p.stdout = stdout
	}
}

// New は新しい Prompter を生成します。
func New(opts ...Option) *Prompter {
	p := &Prompter{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Select は選択肢から1つを選ばせ、選ばれた項目を返します。
func (p *Prompter) Select(label string, items []string) (string, error) {
	s := promptui.Select{
		Label:    label,
		Items:    items,
		HideHelp: true,
		Stdin:    p.stdin,
		Stdout:   p.stdout,
	}
	_, result, err := s.Run()
	if err != nil {
		return "", fmt.Errorf("選択肢の入力に失敗しました (%s): %w", label, err)
	}
	return result, nil
}

// Input は1行の自由入力を受け付けます。空文字列もそのまま返します。
func (p *Prompter) Input(label string) (string, error) {
	in := promptui.Prompt{
		Label:  label,
		Stdin:  p.stdin,
		Stdout: p.stdout,
	}
	result, err := in.Run()
	if err != nil {
		return "", fmt.Errorf("入力に失敗しました (%s): %w", label, err)
	}
	return result, nil
}
