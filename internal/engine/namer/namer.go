// Package namer derives display names and coarse categories for topics and
// provides the rule-based fallback used when statistical modeling fails.
package namer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/topicdex/internal/domain/topic"
	"github.com/kailas-cloud/topicdex/internal/engine/textnorm"
)

// OtherTheme is the theme reported when no dictionary dominates.
const OtherTheme = "другое"

const (
	themeWindow     = 10
	themeCandidates = 3
	nameTerms       = 3
)

// Category is an entry of the ordered category table. Keywords are matched
// as substrings of the lowercased name, keywords and description.
type Category struct {
	Name     string
	Keywords []string
}

// DefaultCategories is the ordered category table.
var DefaultCategories = []Category{
	{"спорт", []string{"хоккей", "футбол", "матч", "команда", "игрок", "гол", "спорт", "соревнование"}},
	{"технологии", []string{"технолог", "искусствен", "интеллект", "программ", "алгоритм", "данные", "цифровой"}},
	{"финансы", []string{"финанс", "экономик", "рынок", "инвестиц", "банк", "акция", "деньги"}},
	{"политика", []string{"политик", "правительств", "президент", "закон", "выборы", "международный"}},
	{"медицина", []string{"медицин", "врач", "здоровье", "лечение", "заболевание", "больница"}},
	{"образование", []string{"образовани", "университет", "студент", "обучение", "школа", "курс"}},
	{"культура", []string{"культур", "искусство", "кино", "музыка", "театр", "литература"}},
}

// Namer names and categorizes topics. It is safe for concurrent use.
type Namer struct {
	lex        *textnorm.Lexicon
	categories []Category
}

// New creates a Namer. A nil lex uses the default lexicon; nil categories
// use DefaultCategories.
func New(lex *textnorm.Lexicon, categories []Category) *Namer {
	if lex == nil {
		lex = textnorm.DefaultLexicon()
	}
	if categories == nil {
		categories = DefaultCategories
	}
	return &Namer{lex: lex, categories: categories}
}

// GuessTheme scores every lexicon theme by the number of the first ten
// keywords containing one of its terms. OtherTheme scores 10 minus the best
// theme score; the first highest score wins.
func (n *Namer) GuessTheme(keywords []string) string {
	window := keywords[:min(len(keywords), themeWindow)]
	best, bestScore := "", -1
	maxTheme := 0
	for _, t := range n.lex.Themes {
		score := 0
		for _, kw := range window {
			if t.Matches(kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = t.Name, score
		}
		maxTheme = max(maxTheme, score)
	}
	if other := max(0, themeWindow-maxTheme); other > bestScore {
		best = OtherTheme
	}
	return best
}

// NameTopic builds "{Theme}: first, middle, theme-term". With fewer than
// three keywords the available ones are joined.
func (n *Namer) NameTopic(keywords []string) string {
	theme := n.GuessTheme(keywords)
	if len(keywords) < nameTerms {
		return fmt.Sprintf("%s: %s", capitalize(theme), strings.Join(keywords, ", "))
	}

	words := []string{keywords[0], keywords[len(keywords)/2]}
	if t, ok := n.lex.Theme(theme); ok {
		joined := strings.ToLower(strings.Join(words, " "))
		for _, tw := range t.Keywords[:min(len(t.Keywords), themeCandidates)] {
			if !strings.Contains(joined, tw) {
				words = append(words, tw)
				break
			}
		}
	}
	return fmt.Sprintf("%s: %s", capitalize(theme), strings.Join(words, ", "))
}

// Categorize returns the first category with a keyword occurring in the
// lowercased name, keywords and description, or topic.GeneralCategory.
func (n *Namer) Categorize(keywords []string, name, description string) string {
	blob := strings.ToLower(name + " " + strings.Join(keywords, " ") + " " + description)
	for _, c := range n.categories {
		for _, kw := range c.Keywords {
			if strings.Contains(blob, kw) {
				return c.Name
			}
		}
	}
	return topic.GeneralCategory
}

// Label builds a fully labeled topic from its id and keywords.
func (n *Namer) Label(id int, keywords []string) topic.Topic {
	name := n.NameTopic(keywords)
	return topic.Topic{
		ID:       id,
		Keywords: keywords,
		Name:     name,
		Category: n.Categorize(keywords, name, ""),
	}
}

// NumberedLabel builds a topic named "Тема N: a, b, c" with N = id+1.
func (n *Namer) NumberedLabel(id int, keywords []string) topic.Topic {
	name := fmt.Sprintf("Тема %d: %s", id+1, strings.Join(keywords[:min(len(keywords), nameTerms)], ", "))
	return topic.Topic{
		ID:       id,
		Keywords: keywords,
		Name:     name,
		Category: n.Categorize(keywords, name, ""),
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
