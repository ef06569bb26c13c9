package classify_test

import (
	"testing"

	"github.com/limitx/guardian/internal/classify"
)

func TestClassifyApp(t *testing.T) {
	c := classify.NewRuleBasedClassifier()

	cases := []struct {
		name string
		want classify.AppCategory
	}{
		{"Chrome", classify.AppBrowser},
		{"Google Chrome Beta", classify.AppBrowser},
		{"TikTok", classify.AppSocial},
		{"Khan Academy", classify.AppEducation},
		{"Roblox", classify.AppGame},
		{"YouTube Kids", classify.AppEntertainment},
		{"Some Weird App", classify.AppUnknown},
	}
	for _, tc := range cases {
		if got := c.ClassifyApp(tc.name); got != tc.want {
			t.Errorf("ClassifyApp(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestClassifyKeyword(t *testing.T) {
	c := classify.NewRuleBasedClassifier()

	cases := []struct {
		keyword string
		want    classify.KeywordCategory
	}{
		{"math homework", classify.KeywordEducational},
		{"how to build a birdhouse", classify.KeywordEducational},
		{"funny cat", classify.KeywordEntertainment},
		{"NSFW content", classify.KeywordRisky},
		{"weather tomorrow", classify.KeywordNeutral},
		{"soccer sport tryouts", classify.KeywordPositive},
	}
	for _, tc := range cases {
		if got := c.ClassifyKeyword(tc.keyword); got != tc.want {
			t.Errorf("ClassifyKeyword(%q) = %q, want %q", tc.keyword, got, tc.want)
		}
	}
}

func TestSentimentWeight(t *testing.T) {
	if w := classify.SentimentWeight(classify.KeywordRisky); w != -1 {
		t.Errorf("risky weight: got %v, want -1", w)
	}
	if w := classify.SentimentWeight(classify.KeywordEducational); w != 1 {
		t.Errorf("educational weight: got %v, want 1", w)
	}
	if w := classify.SentimentWeight(classify.KeywordNeutral); w != 0 {
		t.Errorf("neutral weight: got %v, want 0", w)
	}
}
