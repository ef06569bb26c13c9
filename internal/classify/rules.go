package classify

import "strings"

// RuleBasedClassifier is the default classification strategy. It matches
// lowercase substrings against fixed rule tables and falls back to
// AppUnknown / KeywordNeutral when nothing matches.
type RuleBasedClassifier struct{}

// NewRuleBasedClassifier returns the default rule-table classifier.
func NewRuleBasedClassifier() *RuleBasedClassifier {
	return &RuleBasedClassifier{}
}

// appRules maps name fragments to app categories. First match wins, in the
// order the table is declared.
var appRules = []struct {
	fragment string
	category AppCategory
}{
	{"chrome", AppBrowser},
	{"firefox", AppBrowser},
	{"safari", AppBrowser},
	{"edge", AppBrowser},
	{"browser", AppBrowser},
	{"opera", AppBrowser},
	{"tiktok", AppSocial},
	{"instagram", AppSocial},
	{"snapchat", AppSocial},
	{"whatsapp", AppSocial},
	{"discord", AppSocial},
	{"facebook", AppSocial},
	{"messenger", AppSocial},
	{"telegram", AppSocial},
	{"khan", AppEducation},
	{"duolingo", AppEducation},
	{"classroom", AppEducation},
	{"wikipedia", AppEducation},
	{"kahoot", AppEducation},
	{"minecraft", AppGame},
	{"roblox", AppGame},
	{"fortnite", AppGame},
	{"game", AppGame},
	{"youtube", AppEntertainment},
	{"netflix", AppEntertainment},
	{"spotify", AppEntertainment},
	{"twitch", AppEntertainment},
}

// ClassifyApp implements AppClassifier.
func (c *RuleBasedClassifier) ClassifyApp(name string) AppCategory {
	lower := strings.ToLower(name)
	for _, r := range appRules {
		if strings.Contains(lower, r.fragment) {
			return r.category
		}
	}
	return AppUnknown
}

// keywordRules maps keyword fragments to sentiment categories. Risky rules
// are listed first so they win over broader matches.
var keywordRules = []struct {
	fragment string
	category KeywordCategory
}{
	{"porn", KeywordRisky},
	{"nsfw", KeywordRisky},
	{"nude", KeywordRisky},
	{"gore", KeywordRisky},
	{"violence", KeywordRisky},
	{"weapon", KeywordRisky},
	{"gun", KeywordRisky},
	{"drug", KeywordRisky},
	{"vape", KeywordRisky},
	{"gambling", KeywordRisky},
	{"suicide", KeywordRisky},
	{"self harm", KeywordRisky},
	{"homework", KeywordEducational},
	{"tutorial", KeywordEducational},
	{"how to", KeywordEducational},
	{"science", KeywordEducational},
	{"math", KeywordEducational},
	{"history", KeywordEducational},
	{"learn", KeywordEducational},
	{"study", KeywordEducational},
	{"volunteer", KeywordPositive},
	{"exercise", KeywordPositive},
	{"recipe", KeywordPositive},
	{"book", KeywordPositive},
	{"sport", KeywordPositive},
	{"music", KeywordEntertainment},
	{"movie", KeywordEntertainment},
	{"meme", KeywordEntertainment},
	{"video", KeywordEntertainment},
	{"funny", KeywordEntertainment},
}

// ClassifyKeyword implements KeywordClassifier.
func (c *RuleBasedClassifier) ClassifyKeyword(keyword string) KeywordCategory {
	lower := strings.ToLower(keyword)
	for _, r := range keywordRules {
		if strings.Contains(lower, r.fragment) {
			return r.category
		}
	}
	return KeywordNeutral
}
