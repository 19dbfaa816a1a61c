package types

import (
	"fmt"
	"time"
)

// ExtractionResult は、1ページのHTMLから抽出されたタイトルと本文を保持します。
// Extractor によって生成され、生成後は変更されません。
type ExtractionResult struct {
	Title    string // 最初の h1、なければ title 要素のテキスト (前後の空白を除去)
	BodyText string // すべての p 要素のテキストを文書順に区切りなしで連結したもの
}

// SummaryResult は、要約バックエンドが返した要約テキストです。
type SummaryResult struct {
	OutputText string
}

// ScrapedPage は、表示と保存の単位です。
type ScrapedPage struct {
	Title   string
	Summary string
}

// NewScrapedPage は、抽出結果と要約結果から ScrapedPage を組み立てます。
func NewScrapedPage(extraction ExtractionResult, summary SummaryResult) ScrapedPage {
	return ScrapedPage{
		Title:   extraction.Title,
		Summary: summary.OutputText,
	}
}

func (p ScrapedPage) String() string {
	return fmt.Sprintf("\nTitle- %s\nSummary- %s\n", p.Title, p.Summary)
}

// StoredRecord は、レコードファイルに追記される1行です。
type StoredRecord struct {
	Title   string
	Summary string
	Date    time.Time
}

// NewStoredRecord は、ScrapedPage と保存時刻からレコードを生成します。
func NewStoredRecord(page ScrapedPage, date time.Time) StoredRecord {
	return StoredRecord{
		Title:   page.Title,
		Summary: page.Summary,
		Date:    date,
	}
}

// URLResult は、バッチ処理における1URLの処理結果、またはその処理中に発生したエラーを保持します。
type URLResult struct {
	URL   string       // 処理対象のURL
	Page  *ScrapedPage // 要約まで成功した場合のみ設定
	Saved bool         // レコードファイルに保存されたかどうか
	Err   error        // 処理中に発生したエラー
}
