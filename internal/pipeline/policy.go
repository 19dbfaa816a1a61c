package pipeline

import (
	"errors"
	"fmt"
)

// Stage は1URLの処理におけるステージです。
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageExtract   Stage = "extract"
	StageSummarize Stage = "summarize"
	StageStore     Stage = "store"
)

// Action はステージでエラーが発生した場合のバッチ処理の振る舞いです。
type Action int

const (
	// Abort はバッチ全体を中止し、エラーを返します。
	Abort Action = iota
	// Skip はエラーを報告し、次のURLへ進みます。
	Skip
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	default:
		return "abort"
	}
}

// ErrorPolicy はステージごとのエラー時の振る舞いを定義します。未定義のステージは Abort です。
type ErrorPolicy map[Stage]Action

// DefaultBatchPolicy は取得エラーのみをスキップし、それ以外のエラーでバッチを中止します。
func DefaultBatchPolicy() ErrorPolicy {
	return ErrorPolicy{
		StageFetch:     Skip,
		StageExtract:   Abort,
		StageSummarize: Abort,
		StageStore:     Abort,
	}
}

// ContinueOnErrorPolicy はすべてのステージのエラーをスキップします。
func ContinueOnErrorPolicy() ErrorPolicy {
	return ErrorPolicy{
		StageFetch:     Skip,
		StageExtract:   Skip,
		StageSummarize: Skip,
		StageStore:     Skip,
	}
}

// ActionFor はステージに対応する振る舞いを返します。
func (p ErrorPolicy) ActionFor(stage Stage) Action {
	if action, ok := p[stage]; ok {
		return action
	}
	return Abort
}

// StageError は、どのステージで処理が失敗したかを保持するエラーです。
type StageError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s ステージでエラーが発生しました (URL: %s): %v", e.Stage, e.URL, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf はエラーが発生したステージを返します。StageError でない場合は false を返します。
func StageOf(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
