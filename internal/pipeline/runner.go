package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	textUtils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-crawl-pilot/pkg/client"
	"github.com/shouni/go-crawl-pilot/pkg/extract"
	"github.com/shouni/go-crawl-pilot/pkg/source"
	"github.com/shouni/go-crawl-pilot/pkg/types"
)

// 対話プロンプトの文言と選択肢
const (
	InputTypeLabel  = "Choose input type"
	InputSingleURL  = "Single URL"
	InputCSVFile    = "CSV file with URLs"
	SaveLabel       = "Save summary?"
	SaveYes         = "yes"
	SaveNo          = "no"
	URLLabel        = "Enter url"
	CSVPathLabel    = "Enter the path to your CSV file"
	previewMaxRunes = 120
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Summarizer は本文を要約します。
type Summarizer interface {
	Summarize(ctx context.Context, bodyText string) (types.SummaryResult, error)
}

// RecordStore は要約レコードを追記します。
type RecordStore interface {
	Append(ctx context.Context, record types.StoredRecord) error
}

// Prompter は対話的な入力を提供します。
type Prompter interface {
	Select(label string, items []string) (string, error)
	Input(label string) (string, error)
}

// Deps は Runner が必要とする外部の協調者です。
type Deps struct {
	Fetcher    extract.Fetcher
	Summarizer Summarizer
	Store      RecordStore
	Prompter   Prompter
}

// Runner は 取得 → 抽出 → 要約 → 表示 → 保存 を1URLずつ順番に実行します。
type Runner struct {
	fetcher    extract.Fetcher
	summarizer Summarizer
	store      RecordStore
	prompter   Prompter

	out     io.Writer
	now     func() time.Time
	policy  ErrorPolicy
	metrics *Metrics
	verbose bool
}

// Option は Runner の設定を行うための関数型です。
type Option func(*Runner)

// WithOutput はユーザー向けの出力先を設定します。
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.out = w
	}
}

// WithClock は保存時刻の取得関数を設定します。
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithPolicy はバッチ処理のエラーポリシーを設定します。
func WithPolicy(policy ErrorPolicy) Option {
	return func(r *Runner) {
		r.policy = policy
	}
}

// WithMetrics はメトリクスの記録先を設定します。
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithVerbose は詳細ログの出力を切り替えます。
func WithVerbose(verbose bool) Option {
	return func(r *Runner) {
		r.verbose = verbose
	}
}

// New は新しい Runner を生成します。
func New(deps Deps, opts ...Option) (*Runner, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("pipeline.New: Fetcher cannot be nil")
	case deps.Summarizer == nil:
		return nil, fmt.Errorf("pipeline.New: Summarizer cannot be nil")
	case deps.Store == nil:
		return nil, fmt.Errorf("pipeline.New: Store cannot be nil")
	case deps.Prompter == nil:
		return nil, fmt.Errorf("pipeline.New: Prompter cannot be nil")
	}

	r := &Runner{
		fetcher:    deps.Fetcher,
		summarizer: deps.Summarizer,
		store:      deps.Store,
		prompter:   deps.Prompter,
		out:        os.Stdout,
		now:        time.Now,
		policy:     DefaultBatchPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ----------------------------------------------------------------------
// エントリポイント
// ----------------------------------------------------------------------

// RunInteractive は入力方法を選択させ、単一URLモードまたはCSVバッチモードを実行します。
func (r *Runner) RunInteractive(ctx context.Context) error {
	choice, err := r.prompter.Select(InputTypeLabel, []string{InputSingleURL, InputCSVFile})
	if err != nil {
		return err
	}

	if choice == InputSingleURL {
		_, err := r.RunSingle(ctx)
		return err
	}

	path, err := r.prompter.Input(CSVPathLabel)
	if err != nil {
		return err
	}
	return r.RunCSV(ctx, path)
}

// RunSingle は取得に成功するまでURLの入力を求め、そのURLを処理します。
// 取得後のエラーはすべて呼び出し元に返します。
func (r *Runner) RunSingle(ctx context.Context) (types.URLResult, error) {
	pageURL, body, err := r.promptAndFetch(ctx)
	if err != nil {
		return types.URLResult{}, err
	}
	result, err := r.processFetched(ctx, pageURL, body)
	r.recordOutcome(err)
	return result, err
}

// RunCSV はCSVファイルからURLを読み込み、バッチ処理を実行して結果を表示します。
func (r *Runner) RunCSV(ctx context.Context, path string) error {
	urls, err := source.ReadURLsFromCSV(path)
	if err != nil {
		return err
	}
	results, err := r.RunBatch(ctx, urls)
	WriteReport(r.out, results)
	return err
}

// RunBatch はURLを1件ずつ順番に処理します。
// 各ステージのエラーは ErrorPolicy に従い、Skip なら報告して次へ進み、Abort ならその時点で返します。
func (r *Runner) RunBatch(ctx context.Context, urls []string) ([]types.URLResult, error) {
	results := make([]types.URLResult, 0, len(urls))

	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		fmt.Fprintf(r.out, "\nProcessing URL: %s\n", u)

		result, err := r.ProcessURL(ctx, u)
		results = append(results, result)
		r.recordOutcome(err)
		if err == nil {
			continue
		}

		stage, _ := StageOf(err)
		if r.policy.ActionFor(stage) == Skip {
			fmt.Fprintf(r.out, "Error processing URL %s: %v\n", u, err)
			continue
		}
		return results, err
	}
	return results, nil
}

// ProcessURL は1つのURLについて 取得 → 抽出 → 要約 → 表示 → 保存 を実行します。
func (r *Runner) ProcessURL(ctx context.Context, pageURL string) (types.URLResult, error) {
	body, err := r.fetch(ctx, pageURL)
	if err != nil {
		return types.URLResult{URL: pageURL, Err: err}, err
	}
	return r.processFetched(ctx, pageURL, body)
}

// ----------------------------------------------------------------------
// ステージ
// ----------------------------------------------------------------------

func (r *Runner) promptAndFetch(ctx context.Context) (string, []byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		input, err := r.prompter.Input(URLLabel)
		if err != nil {
			return "", nil, err
		}

		pageURL, err := client.EnsureScheme(input)
		if err == nil {
			var body []byte
			if body, err = r.fetch(ctx, pageURL); err == nil {
				return pageURL, body, nil
			}
		}
		if r.verbose {
			log.Printf("URLの取得に失敗しました: %v", err)
		}
		fmt.Fprint(r.out, "\nInvalid url\n\n")
	}
}

func (r *Runner) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	start := time.Now()
	body, err := r.fetcher.FetchBytes(ctx, pageURL)
	r.metrics.ObserveStage(StageFetch, time.Since(start))
	if err != nil {
		return nil, r.stageError(StageFetch, pageURL, err)
	}
	return body, nil
}

func (r *Runner) processFetched(ctx context.Context, pageURL string, body []byte) (types.URLResult, error) {
	result := types.URLResult{URL: pageURL}

	start := time.Now()
	extraction, err := extract.Extract(body)
	r.metrics.ObserveStage(StageExtract, time.Since(start))
	if err != nil {
		result.Err = r.stageError(StageExtract, pageURL, err)
		return result, result.Err
	}
	if r.verbose {
		log.Printf("抽出結果 (URL: %s): タイトル=%q, 本文=%d文字, プレビュー=%q",
			pageURL, extraction.Title, len([]rune(extraction.BodyText)), preview(extraction.BodyText))
	}

	start = time.Now()
	summary, err := r.summarizer.Summarize(ctx, extraction.BodyText)
	r.metrics.ObserveStage(StageSummarize, time.Since(start))
	if err != nil {
		result.Err = r.stageError(StageSummarize, pageURL, err)
		return result, result.Err
	}

	page := types.NewScrapedPage(extraction, summary)
	result.Page = &page
	fmt.Fprintln(r.out, page)

	saved, err := r.offerSave(ctx, page)
	if err != nil {
		result.Err = r.stageError(StageStore, pageURL, err)
		return result, result.Err
	}
	result.Saved = saved
	return result, nil
}

// offerSave は保存するかを確認し、yes の場合のみレコードを追記します。
func (r *Runner) offerSave(ctx context.Context, page types.ScrapedPage) (bool, error) {
	choice, err := r.prompter.Select(SaveLabel, []string{SaveYes, SaveNo})
	if err != nil {
		return false, err
	}
	if choice != SaveYes {
		return false, nil
	}

	if err := r.store.Append(ctx, types.NewStoredRecord(page, r.now())); err != nil {
		return false, err
	}
	r.metrics.IncStored()
	fmt.Fprint(r.out, "\nDone!!\n\n")
	return true, nil
}

func (r *Runner) stageError(stage Stage, pageURL string, err error) error {
	r.metrics.IncStageError(stage)
	return &StageError{Stage: stage, URL: pageURL, Err: err}
}

func (r *Runner) recordOutcome(err error) {
	if err != nil {
		r.metrics.IncURL("failed")
		return
	}
	r.metrics.IncURL("success")
}

// preview はログ用に本文の空白を正規化し、先頭部分だけを返します。
func preview(text string) string {
	runes := []rune(textUtils.NormalizeText(text))
	if len(runes) > previewMaxRunes {
		return string(runes[:previewMaxRunes]) + "..."
	}
	return string(runes)
}
