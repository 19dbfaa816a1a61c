package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFetcher はテスト対象の Parser.client が依存する Fetcher インターフェースのモックです。
type MockFetcher struct {
	FetchBytesFunc func(ctx context.Context, url string) ([]byte, error)
}

// FetchBytes は MockFetcher の核となるメソッドで、設定された関数を実行します。
func (m *MockFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return m.FetchBytesFunc(ctx, url)
}

const testURL = "http://example.com/feed"

// 最小限の有効なRSS XML
const validRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>http://example.com/</link>
    <item>
      <title>Test Item</title>
      <link>http://example.com/item1</link>
    </item>
    <item>
      <title>No Link</title>
    </item>
    <item>
      <title>Second Item</title>
      <link>http://example.com/item2</link>
    </item>
  </channel>
</rss>`

func TestNewParser(t *testing.T) {
	p, err := NewParser(nil)
	assert.Nil(t, p)
	assert.ErrorContains(t, err, "Fetcher cannot be nil")
}

func TestFetchAndParse(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		mockFetchFunc func(ctx context.Context, url string) ([]byte, error)
		expectedTitle string
		errorContains string
	}{
		{
			name: "成功ケース_有効なRSS",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				if url != testURL {
					t.Fatalf("予期せぬURLが呼び出されました: %s", url)
				}
				return []byte(validRSS), nil
			},
			expectedTitle: "Test Feed",
		},
		{
			name: "エラーケース_フィード取得失敗",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return nil, errors.New("HTTPエラー: 500 Internal Server Error")
			},
			errorContains: "フィードの取得失敗",
		},
		{
			name: "エラーケース_パース失敗",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return []byte(`<invalid><tag>`), nil
			},
			errorContains: "RSSフィードのパース失敗",
		},
		{
			name: "エッジケース_空ボディ",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return []byte(""), nil
			},
			errorContains: "RSSフィードのパース失敗",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParser(&MockFetcher{FetchBytesFunc: tt.mockFetchFunc})
			require.NoError(t, err)

			parsed, err := p.FetchAndParse(ctx, testURL)

			if tt.errorContains != "" {
				assert.ErrorContains(t, err, tt.errorContains)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, parsed)
			assert.Equal(t, tt.expectedTitle, parsed.Title)
		})
	}
}

// TestFeedAdapter_GetLinks は FeedAdapter が gofeed.Feed から正しくリンクを抽出できるかをテストします。
func TestFeedAdapter_GetLinks(t *testing.T) {
	tests := []struct {
		name     string
		feed     *gofeed.Feed
		expected []string
	}{
		{
			name: "正常ケース_複数のリンクを含む",
			feed: &gofeed.Feed{
				Items: []*gofeed.Item{
					{Link: "http://example.com/a"},
					{Link: "http://example.com/b"},
					{Link: ""}, // 空リンクは無視されるべき
					nil,
					{Link: "  http://example.com/c  "},
				},
			},
			expected: []string{
				"http://example.com/a",
				"http://example.com/b",
				"http://example.com/c",
			},
		},
		{
			name:     "エッジケース_アイテムが空",
			feed:     &gofeed.Feed{Items: []*gofeed.Item{}},
			expected: []string{},
		},
		{
			name:     "エッジケース_フィードがnil",
			feed:     nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetAllLinks(NewFeedAdapter(tt.feed)))
		})
	}

	t.Run("エッジケース_ソースがnil", func(t *testing.T) {
		assert.Equal(t, []string{}, GetAllLinks(nil))
	})

	t.Run("エッジケース_アダプタがnil", func(t *testing.T) {
		var a *FeedAdapter
		assert.Equal(t, []string{}, a.GetLinks())
		assert.Equal(t, []string{}, GetAllLinks(a))
	})

	t.Run("フィードの記事リンクを掲載順に取得できる", func(t *testing.T) {
		p, err := NewParser(&MockFetcher{FetchBytesFunc: func(ctx context.Context, url string) ([]byte, error) {
			return []byte(validRSS), nil
		}})
		require.NoError(t, err)

		parsed, err := p.FetchAndParse(context.Background(), testURL)
		require.NoError(t, err)
		assert.Equal(t, []string{"http://example.com/item1", "http://example.com/item2"}, GetAllLinks(NewFeedAdapter(parsed)))
	})
}
