package namer

import "strings"

// Rule is a weighted keyword list of a theme.
type Rule struct {
	Keywords []string
	Weight   float64
}

// ThemeRules is an ordered list of themes with their rules.
type ThemeRules []struct {
	Theme string
	Rules []Rule
}

// DefaultThemeRules are the document classifier rules.
var DefaultThemeRules = ThemeRules{
	{"спорт", []Rule{
		{[]string{"хоккей", "матч", "гол", "команда"}, 2.0},
		{[]string{"футбол", "гол", "пенальти", "офсайд"}, 2.0},
		{[]string{"баскетбол", "трехочковый", "данк", "подбор"}, 2.0},
		{[]string{"теннис", "эйс", "сет", "гейм"}, 2.0},
		{[]string{"олимпийский", "медаль", "рекорд", "соревнование"}, 1.5},
	}},
	{"технологии", []Rule{
		{[]string{"искусственный интеллект", "нейросеть", "машинное обучение"}, 3.0},
		{[]string{"смартфон", "гаджет", "приложение", "обновление"}, 2.0},
		{[]string{"программирование", "алгоритм", "код", "разработка"}, 2.0},
		{[]string{"интернет", "сеть", "онлайн", "цифровой"}, 1.5},
	}},
	{"финансы", []Rule{
		{[]string{"акция", "биржа", "инвестиция", "трейдер"}, 2.5},
		{[]string{"банк", "кредит", "ипотека", "вклад"}, 2.0},
		{[]string{"криптовалюта", "биткоин", "блокчейн"}, 2.5},
		{[]string{"экономика", "инфляция", "валюта", "рынок"}, 2.0},
	}},
}

// classifyThreshold is the normalized score a theme must exceed.
const classifyThreshold = 0.1

// Classification is the outcome of Classify.
type Classification struct {
	Theme      string             `json:"main_theme"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"all_scores"`
	// Matched is false when no theme passed the threshold.
	Matched bool `json:"-"`
}

// Classifier assigns a document to a theme by weighted keyword rules.
type Classifier struct {
	rules ThemeRules
}

// NewClassifier creates a Classifier. Nil rules use DefaultThemeRules.
func NewClassifier(rules ThemeRules) *Classifier {
	if rules == nil {
		rules = DefaultThemeRules
	}
	return &Classifier{rules: rules}
}

// Classify scores text against every theme: each rule keyword found in the
// lowercased text adds the rule weight, and each of the first ten extra
// keywords containing a rule keyword adds one. Scores are normalized to sum
// to one. The best theme wins when its share exceeds 0.1; otherwise the
// result is OtherTheme with confidence 1.
func (c *Classifier) Classify(text string, keywords []string) Classification {
	lower := strings.ToLower(text)
	window := keywords[:min(len(keywords), themeWindow)]

	scores := make(map[string]float64, len(c.rules))
	var total float64
	for _, tr := range c.rules {
		var score float64
		for _, r := range tr.Rules {
			for _, kw := range r.Keywords {
				if strings.Contains(lower, kw) {
					score += r.Weight
				}
			}
		}
		for _, kw := range window {
			for _, r := range tr.Rules {
				if containsAny(kw, r.Keywords) {
					score++
				}
			}
		}
		scores[tr.Theme] = score
		total += score
	}

	if total > 0 {
		best, bestScore := "", -1.0
		for _, tr := range c.rules {
			scores[tr.Theme] /= total
			if scores[tr.Theme] > bestScore {
				best, bestScore = tr.Theme, scores[tr.Theme]
			}
		}
		if bestScore > classifyThreshold {
			return Classification{Theme: best, Confidence: bestScore, Scores: scores, Matched: true}
		}
	}
	return Classification{Theme: OtherTheme, Confidence: 1, Scores: map[string]float64{OtherTheme: 1}}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
