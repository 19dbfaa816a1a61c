package feed

import (
	"strings"

	"github.com/mmcdole/gofeed"
)

// LinkSource は、要約対象URLのリストを提供できる任意の型を表します。
type LinkSource interface {
	GetLinks() []string
}

// FeedAdapter は gofeed.Feed を LinkSource に適合させるためのアダプターです。
type FeedAdapter struct {
	*gofeed.Feed
}

// NewFeedAdapter は gofeed.Feed から新しいアダプターを作成します。
func NewFeedAdapter(feed *gofeed.Feed) *FeedAdapter {
	return &FeedAdapter{Feed: feed}
}

// GetLinks は gofeed.Feed から空でないリンクを掲載順に抽出します。
func (a *FeedAdapter) GetLinks() []string {
	if a == nil || a.Feed == nil || len(a.Items) == 0 {
		return []string{}
	}

	urls := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		if item == nil {
			continue
		}
		if link := strings.TrimSpace(item.Link); link != "" {
			urls = append(urls, link)
		}
	}
	return urls
}

// GetAllLinks は LinkSource からリンクを抽出します。nil の場合は空のスライスを返します。
func GetAllLinks(source LinkSource) []string {
	if source == nil {
		return []string{}
	}
	return source.GetLinks()
}
