package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"github.com/shouni/go-crawl-pilot/internal/pipeline"
	"github.com/shouni/go-crawl-pilot/pkg/feed"
)

var (
	feedURL       string // 解析対象のフィードURL
	feedSummarize bool   // 記事を要約するかどうか
	feedLimit     int    // 要約する記事数の上限
)

// printFeed はフィードのタイトルと記事一覧を表示します。
func printFeed(cmd *cobra.Command, parsedFeed *gofeed.Feed) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "--- フィード解析結果 ---\n")
	fmt.Fprintf(out, "フィードタイトル: %s\n", parsedFeed.Title)
	if parsedFeed.Link != "" {
		fmt.Fprintf(out, "リンク: %s\n", parsedFeed.Link)
	}
	fmt.Fprintf(out, "合計記事数: %d\n", len(parsedFeed.Items))
	fmt.Fprintln(out, "-----------------------")

	for i, item := range parsedFeed.Items {
		fmt.Fprintf(out, "[%d] %s\n", i+1, item.Title)
		fmt.Fprintf(out, "    URL: %s\n", item.Link)
		if item.PublishedParsed != nil {
			fmt.Fprintf(out, "    公開日: %s\n", item.PublishedParsed.Local().Format("2006-01-02 15:04:05"))
		}
	}
	fmt.Fprintln(out)
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "RSS/Atomフィードを解析し、記事一覧の表示または各記事の要約を行います",
	Long: `指定されたURLからRSSまたはAtomフィードを取得して記事一覧を表示します。
--summarize を指定すると、各記事のリンクを run --csv と同じバッチ処理で要約します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		parser, err := feed.NewParser(a.fetcher)
		if err != nil {
			return fmt.Errorf("Parserの初期化エラー: %w", err)
		}

		ctx, stop := signalContext()
		defer stop()

		timeout := a.overallTimeout()
		log.Printf("処理対象フィードURL: %s (全体タイムアウト: %s)", feedURL, timeout)

		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		parsedFeed, err := parser.FetchAndParse(fetchCtx, feedURL)
		cancel()
		if err != nil {
			return fmt.Errorf("フィード解析パイプラインの実行エラー: %w", err)
		}

		printFeed(cmd, parsedFeed)
		if !feedSummarize {
			return nil
		}

		links := feed.GetAllLinks(feed.NewFeedAdapter(parsedFeed))
		if feedLimit > 0 && len(links) > feedLimit {
			links = links[:feedLimit]
		}
		if len(links) == 0 {
			return fmt.Errorf("フィードに要約対象のリンクがありません")
		}

		if _, err := a.creds.LoadOrPrompt(ctx, false); err != nil {
			return fmt.Errorf("APIキーの読み込みエラー: %w", err)
		}

		runner, err := a.newRunner(cmd)
		if err != nil {
			return fmt.Errorf("Runnerの初期化エラー: %w", err)
		}

		results, err := runner.RunBatch(ctx, links)
		pipeline.WriteReport(cmd.OutOrStdout(), results)
		return err
	},
}

func init() {
	feedCmd.Flags().StringVarP(&feedURL, "url", "u", "", "解析対象のフィード (RSS/Atom) URL")
	feedCmd.Flags().BoolVarP(&feedSummarize, "summarize", "s", false, "各記事を要約する")
	feedCmd.Flags().IntVarP(&feedLimit, "limit", "n", 0, "要約する記事数の上限 (0 で無制限)")

	feedCmd.MarkFlagRequired("url")
}
