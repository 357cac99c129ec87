// Package news scores headline sentiment with a keyword lexicon. It is
// deliberately crude: the scan only needs a coarse [-1,1] tilt plus an
// article count, not NLP.
package news

import (
	"strings"

	"github.com/CodeShali/scalp-bot/internal/types"
)

var positiveKeywords = []string{
	"beat", "surge", "gain", "up", "high", "profit", "growth", "strong",
	"upgrade", "buy", "bullish", "positive", "record", "success", "win",
}

var negativeKeywords = []string{
	"miss", "drop", "fall", "down", "low", "loss", "decline", "weak",
	"downgrade", "sell", "bearish", "negative", "concern", "fail", "lawsuit",
}

// ArticleScore rates one article in [-1,1] from keyword hits in its
// headline and summary. No hits scores neutral 0.
func ArticleScore(a types.NewsArticle) float64 {
	text := strings.ToLower(a.Headline + " " + a.Summary)
	var pos, neg int
	for _, w := range positiveKeywords {
		if strings.Contains(text, w) {
			pos++
		}
	}
	for _, w := range negativeKeywords {
		if strings.Contains(text, w) {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// Score averages ArticleScore over all articles and returns the article
// count. An empty slice is neutral (0, 0).
func Score(articles []types.NewsArticle) (sentiment float64, count int) {
	if len(articles) == 0 {
		return 0, 0
	}
	var sum float64
	for _, a := range articles {
		sum += ArticleScore(a)
	}
	return sum / float64(len(articles)), len(articles)
}
