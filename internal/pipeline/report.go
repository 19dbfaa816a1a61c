package pipeline

import (
	"fmt"
	"io"

	"github.com/shouni/go-crawl-pilot/pkg/types"
)

// WriteReport はバッチ処理の結果を一覧で出力します。結果が空の場合は何も出力しません。
func WriteReport(w io.Writer, results []types.URLResult) {
	if len(results) == 0 {
		return
	}

	fmt.Fprintln(w, "--- バッチ処理結果 ---")

	successCount, savedCount, errorCount := 0, 0, 0
	for i, res := range results {
		if res.Err != nil {
			errorCount++
			fmt.Fprintf(w, "❌ [%d] %s\n", i+1, res.URL)
			fmt.Fprintf(w, "     エラー: %v\n", res.Err)
			continue
		}

		successCount++
		status := "未保存"
		if res.Saved {
			savedCount++
			status = "保存済み"
		}
		fmt.Fprintf(w, "✅ [%d] %s (%s)\n", i+1, res.URL, status)
		if res.Page != nil {
			fmt.Fprintf(w, "     タイトル: %s\n", res.Page.Title)
		}
	}

	fmt.Fprintln(w, "-----------------------")
	fmt.Fprintf(w, "完了: 成功 %d 件 (保存 %d 件), 失敗 %d 件\n", successCount, savedCount, errorCount)
}
