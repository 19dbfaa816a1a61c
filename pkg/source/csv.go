package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadURLsFromCSV は、CSVファイルの各行の1列目をURLとして読み込みます。
func ReadURLsFromCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("CSVファイル(%s)を開けませんでした: %w", path, err)
	}
	defer f.Close()

	urls, err := ReadURLs(f)
	if err != nil {
		return nil, fmt.Errorf("CSVファイル(%s)の読み込みに失敗しました: %w", path, err)
	}
	return urls, nil
}

// ReadURLs は、区切り形式の入力から各行の1列目を順に返します。
// 空行のみをスキップし、1列目はトリムせずにそのまま返します。1列目が空のURLは取得時のエラーとして扱われます。
// 列数は行ごとに異なっていても構いません。
func ReadURLs(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var urls []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		urls = append(urls, row[0])
	}
	return urls, nil
}
