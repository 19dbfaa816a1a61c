package cmd

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/shouni/go-crawl-pilot/pkg/client"
)

const bannerText = "Crawl  Pilot"

var (
	runURL     string // --url 単一URLを対話なしで指定
	runCSVPath string // --csv URL一覧のCSVファイルを指定
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Webページを取得・要約し、必要に応じてCSVに保存します",
	Long: `Webページのタイトルと本文を抽出し、LLMで要約して表示します。
--url または --csv を省略した場合は、入力方法を対話的に選択します。
要約ごとに保存するかを確認し、yes の場合のみ出力ファイルに追記します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		if runURL != "" && runCSVPath != "" {
			return fmt.Errorf("--url と --csv は同時に指定できません")
		}

		a, err := getApp()
		if err != nil {
			return err
		}

		figure.NewFigure(bannerText, "", true).Print()

		ctx, stop := signalContext()
		defer stop()

		// 要約の前にAPIキーを用意しておく
		if _, err := a.creds.LoadOrPrompt(ctx, false); err != nil {
			return fmt.Errorf("APIキーの読み込みエラー: %w", err)
		}

		runner, err := a.newRunner(cmd)
		if err != nil {
			return fmt.Errorf("Runnerの初期化エラー: %w", err)
		}

		switch {
		case runURL != "":
			pageURL, err := client.EnsureScheme(runURL)
			if err != nil {
				return fmt.Errorf("URLスキームの処理エラー: %w", err)
			}
			_, err = runner.ProcessURL(ctx, pageURL)
			return err
		case runCSVPath != "":
			return runner.RunCSV(ctx, runCSVPath)
		default:
			return runner.RunInteractive(ctx)
		}
	},
}

func init() {
	runCmd.Flags().StringVarP(&runURL, "url", "u", "", "処理対象のURL (省略時は対話的に入力)")
	runCmd.Flags().StringVar(&runCSVPath, "csv", "", "処理対象URLを1列目に記載したCSVファイル")
}
