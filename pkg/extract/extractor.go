package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/shouni/go-crawl-pilot/pkg/types"
)

// ErrMalformedDocument は、h1 要素も title 要素も存在せず、タイトルを決定できない場合のエラーです。
var ErrMalformedDocument = errors.New("h1要素もtitle要素も見つからないため、タイトルを決定できません")

// Extractor は、Fetcher を使ってコンテンツ抽出プロセスを管理します。
type Extractor struct {
	fetcher Fetcher
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(fetcher Fetcher) (*Extractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("extract.NewExtractor: Fetcher cannot be nil")
	}
	return &Extractor{
		fetcher: fetcher,
	}, nil
}

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	headingSelector   = "h1"
	titleSelector     = "title"
	paragraphSelector = "p"
)

// ----------------------------------------------------------------------
// メイン関数
// ----------------------------------------------------------------------

// FetchAndExtract は指定されたURLからコンテンツを取得し、タイトルと本文を抽出します。
func (e *Extractor) FetchAndExtract(ctx context.Context, url string) (types.ExtractionResult, error) {
	// 1. Fetcherから生のバイト配列を取得 (通信の責務)
	htmlBytes, err := e.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return types.ExtractionResult{}, err
	}

	// 2. 解析の責務
	return Extract(htmlBytes)
}

// Extract は生のHTMLバイト配列からタイトルと本文を抽出します。副作用はありません。
func Extract(htmlBytes []byte) (types.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(decode(htmlBytes))
	if err != nil {
		return types.ExtractionResult{}, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}
	return extractFromDocument(doc)
}

// extractFromDocument はgoquery.Documentからタイトルと本文を抽出します。
func extractFromDocument(doc *goquery.Document) (types.ExtractionResult, error) {
	title, err := resolveTitle(doc)
	if err != nil {
		return types.ExtractionResult{}, err
	}

	// 段落は区切り文字なしで文書順に連結する
	var body strings.Builder
	doc.Find(paragraphSelector).Each(func(i int, s *goquery.Selection) {
		body.WriteString(s.Text())
	})

	return types.ExtractionResult{
		Title:    title,
		BodyText: body.String(),
	}, nil
}

// resolveTitle は最初の h1 を優先し、なければ title 要素をタイトルとして使用します。
func resolveTitle(doc *goquery.Document) (string, error) {
	if heading := doc.Find(headingSelector).First(); heading.Length() > 0 {
		return strings.TrimSpace(heading.Text()), nil
	}
	if title := doc.Find(titleSelector).First(); title.Length() > 0 {
		return strings.TrimSpace(title.Text()), nil
	}
	return "", ErrMalformedDocument
}

// decode はUTF-8として不正なバイト列のみ、metaタグ等から文字コードを推定してUTF-8に変換します。
func decode(htmlBytes []byte) io.Reader {
	if utf8.Valid(htmlBytes) {
		return bytes.NewReader(htmlBytes)
	}
	r, err := charset.NewReader(bytes.NewReader(htmlBytes), "")
	if err != nil {
		// 推定に失敗した場合はそのままパーサーに渡す
		return bytes.NewReader(htmlBytes)
	}
	return r
}
