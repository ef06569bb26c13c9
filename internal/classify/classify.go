// Package classify provides name-based categorisation of apps and keywords.
// Categories feed the behavioral profile and the fallback report; the
// strategies are pluggable so a deployment can swap the bundled rule tables
// for something smarter without touching the aggregation contract.
package classify

// AppCategory labels an application by what it is mostly used for.
type AppCategory string

const (
	AppBrowser       AppCategory = "browser"
	AppSocial        AppCategory = "social"
	AppEducation     AppCategory = "education"
	AppGame          AppCategory = "game"
	AppEntertainment AppCategory = "entertainment"
	AppUnknown       AppCategory = "unknown"
)

// KeywordCategory labels a searched keyword for sentiment purposes.
type KeywordCategory string

const (
	KeywordPositive      KeywordCategory = "positive"
	KeywordEducational   KeywordCategory = "educational"
	KeywordEntertainment KeywordCategory = "entertainment"
	KeywordNeutral       KeywordCategory = "neutral"
	KeywordRisky         KeywordCategory = "risky"
)

// AppClassifier assigns a category to an application name.
type AppClassifier interface {
	ClassifyApp(name string) AppCategory
}

// KeywordClassifier assigns a category to a searched keyword.
type KeywordClassifier interface {
	ClassifyKeyword(keyword string) KeywordCategory
}

// SentimentWeight maps a keyword category onto the [-1, 1] sentiment axis.
func SentimentWeight(c KeywordCategory) float64 {
	switch c {
	case KeywordPositive, KeywordEducational:
		return 1
	case KeywordRisky:
		return -1
	default:
		return 0
	}
}
