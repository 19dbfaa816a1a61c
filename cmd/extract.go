package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/shouni/go-crawl-pilot/pkg/client"
	"github.com/shouni/go-crawl-pilot/pkg/extract"
	"github.com/shouni/go-crawl-pilot/pkg/types"
)

var extractURL string

// runExtractionPipeline は、ページを取得してタイトルと本文を抽出します。
func runExtractionPipeline(ctx context.Context, rawURL string, extractor *extract.Extractor) (types.ExtractionResult, error) {
	result, err := extractor.FetchAndExtract(ctx, rawURL)
	if err != nil {
		return types.ExtractionResult{}, fmt.Errorf("コンテンツ抽出エラー (URL: %s): %w", rawURL, err)
	}
	return result, nil
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "指定されたURLからタイトルと本文を抽出して表示します (要約は行いません)",
	Long:  `指定されたURLまたは標準入力から読み込んだURLのページを取得し、最初の h1 (なければ title) と p 要素の本文を表示します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		// 1. 処理対象URLの決定 (フラグ優先)
		urlToProcess := extractURL
		if urlToProcess == "" {
			log.Println("URLが指定されていないため、標準入力からURLを読み込みます...")
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("処理するURLを入力してください: ")

			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("標準入力の読み取りエラー: %w", err)
				}
				return fmt.Errorf("URLが入力されていません")
			}
			urlToProcess = scanner.Text()
		}

		// 2. URLのスキーム補完とバリデーション
		processedURL, err := client.EnsureScheme(urlToProcess)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}

		timeout := a.overallTimeout()
		log.Printf("処理対象URL: %s (全体タイムアウト: %s)\n", processedURL, timeout)

		extractor, err := extract.NewExtractor(a.fetcher)
		if err != nil {
			return fmt.Errorf("Extractorの初期化エラー: %w", err)
		}

		ctx, stop := signalContext()
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := runExtractionPipeline(ctx, processedURL, extractor)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "タイトル: %s\n", result.Title)
		if result.BodyText == "" {
			fmt.Fprintln(out, "本文は見つかりませんでした。")
			return nil
		}
		fmt.Fprintln(out, "--- 抽出された本文 ---")
		fmt.Fprintln(out, result.BodyText)
		fmt.Fprintln(out, "-----------------------")
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractURL, "url", "u", "", "抽出対象のURL")
}
