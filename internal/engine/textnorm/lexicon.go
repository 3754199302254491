package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Theme is a named domain dictionary. Keywords are matched as substrings (stems).
type Theme struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Synonym maps a whole-word surface form to its canonical form.
type Synonym struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Lexicon holds the language resources shared by the normalizer, the
// vectorizer and the namer. Theme order is significant.
type Lexicon struct {
	StopWords []string  `yaml:"stop_words"`
	Themes    []Theme   `yaml:"themes"`
	Synonyms  []Synonym `yaml:"synonyms"`

	stops map[string]struct{}
}

// IsStopWord reports whether w is a stop word.
func (l *Lexicon) IsStopWord(w string) bool {
	if l.stops == nil {
		for _, s := range l.StopWords {
			if s == w {
				return true
			}
		}
		return false
	}
	_, ok := l.stops[w]
	return ok
}

// Theme returns the theme with the given name.
func (l *Lexicon) Theme(name string) (Theme, bool) {
	for _, t := range l.Themes {
		if t.Name == name {
			return t, true
		}
	}
	return Theme{}, false
}

// MatchesAnyTheme reports whether token contains a keyword of any theme.
func (l *Lexicon) MatchesAnyTheme(token string) bool {
	for _, t := range l.Themes {
		if t.Matches(token) {
			return true
		}
	}
	return false
}

// Matches reports whether token contains any of the theme keywords.
func (t Theme) Matches(token string) bool {
	for _, kw := range t.Keywords {
		if strings.Contains(token, kw) {
			return true
		}
	}
	return false
}

func (l *Lexicon) index() {
	l.stops = make(map[string]struct{}, len(l.StopWords))
	for _, w := range l.StopWords {
		l.stops[strings.ToLower(w)] = struct{}{}
	}
}

// LoadLexicon reads a YAML lexicon. Sections missing from the file keep
// the built-in defaults.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	var file Lexicon
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}

	lex := DefaultLexicon()
	if len(file.StopWords) > 0 {
		lex.StopWords = file.StopWords
	}
	if len(file.Themes) > 0 {
		for _, t := range file.Themes {
			if t.Name == "" {
				return nil, fmt.Errorf("lexicon %s: theme without name", path)
			}
		}
		lex.Themes = file.Themes
	}
	if len(file.Synonyms) > 0 {
		lex.Synonyms = file.Synonyms
	}
	lex.index()
	return lex, nil
}

// Fingerprint hashes the lexicon content. Stop word, theme and synonym
// order all participate.
func (l *Lexicon) Fingerprint() string {
	h := sha256.New()
	for _, w := range l.StopWords {
		fmt.Fprintf(h, "s\x00%s\x00", w)
	}
	for _, t := range l.Themes {
		fmt.Fprintf(h, "t\x00%s\x00", t.Name)
		for _, k := range t.Keywords {
			fmt.Fprintf(h, "k\x00%s\x00", k)
		}
	}
	for _, syn := range l.Synonyms {
		fmt.Fprintf(h, "y\x00%s\x00%s\x00", syn.From, syn.To)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DefaultLexicon returns the built-in Russian lexicon.
func DefaultLexicon() *Lexicon {
	lex := &Lexicon{
		StopWords: append([]string(nil), defaultStopWords...),
		Themes:    make([]Theme, len(defaultThemes)),
		Synonyms:  append([]Synonym(nil), defaultSynonyms...),
	}
	for i, t := range defaultThemes {
		lex.Themes[i] = Theme{Name: t.Name, Keywords: append([]string(nil), t.Keywords...)}
	}
	lex.index()
	return lex
}

var defaultThemes = []Theme{
	{Name: "спорт", Keywords: []string{
		"хоккей", "футбол", "баскетбол", "теннис", "волейбол", "матч", "гол",
		"команда", "игрок", "счет", "победа", "турнир", "чемпионат", "олимпиада",
		"спортсмен", "тренер", "стадион", "лига", "первенство", "соревнование",
		"результат", "тактика", "стратегия", "нападающий", "защитник", "вратарь",
	}},
	{Name: "технологии", Keywords: []string{
		"технология", "искусственный", "интеллект", "программа", "алгоритм",
		"компьютер", "смартфон", "приложение", "интернет", "данные", "облачный",
		"цифровой", "автоматизация", "робот", "сеть", "сервер", "база", "разработка",
		"программирование", "инновация", "гаджет", "устройство", "операционная",
	}},
	{Name: "финансы", Keywords: []string{
		"финанс", "экономик", "рынок", "инвестиц", "деньги", "банк", "кредит",
		"акция", "биржа", "валюта", "инфляция", "бюджет", "капитал", "прибыль",
		"убыток", "курс", "дивиденд", "облигация", "трейдер", "брокер", "инвестор",
		"ликвидность", "волатильность", "дефолт", "криптовалют",
	}},
	{Name: "политика", Keywords: []string{
		"правительство", "президент", "министр", "парламент", "выборы",
		"закон", "реформа", "демократия", "дипломатия", "международный",
		"санкция", "переговоры", "конституция", "бюрократия", "оппозиция",
	}},
	{Name: "медицина", Keywords: []string{
		"медицин", "врач", "пациент", "лечение", "диагноз", "больница",
		"заболевание", "симптом", "терапия", "операция", "рецепт", "вирус",
		"иммунитет", "вакцина", "эпидемия", "пандемия", "здоровье",
	}},
}

var defaultSynonyms = []Synonym{
	{From: "айфон", To: "смартфон"},
	{From: "ии", To: "искусственный интеллект"},
	{From: "ai", To: "искусственный интеллект"},
	{From: "блог", To: "блоггер"},
	{From: "ксб", To: "банк"},
	{From: "мобильник", To: "смартфон"},
	{From: "ноут", To: "ноутбук"},
	{From: "пк", To: "компьютер"},
	{From: "соцсеть", To: "социальная сеть"},
	{From: "фин", To: "финанс"},
	{From: "экон", To: "экономик"},
	{From: "инвест", To: "инвестиц"},
}

var defaultStopWords = []string{
	"и", "в", "во", "не", "что", "он", "на", "я", "с", "со", "как", "а", "то", "все",
	"она", "так", "его", "но", "да", "ты", "к", "у", "же", "вы", "за", "бы", "по",
	"только", "ее", "мне", "было", "вот", "от", "меня", "еще", "нет", "о", "из",
	"ему", "теперь", "когда", "даже", "ну", "вдруг", "ли", "если", "уже", "или",
	"ни", "быть", "был", "него", "до", "вас", "нибудь", "опять", "уж", "вам",
	"ведь", "там", "потом", "себя", "ничего", "ей", "может", "они", "тут", "где",
	"есть", "надо", "ней", "для", "мы", "тебя", "их", "чем", "была", "сам", "чтоб",
	"без", "будто", "чего", "раз", "тоже", "себе", "под", "будет", "ж", "тогда",
	"кто", "этот", "того", "потому", "этого", "какой", "совсем", "ним", "здесь",
	"этом", "один", "почти", "мой", "тем", "чтобы", "нее", "сейчас", "были", "куда",
	"зачем", "всех", "никогда", "можно", "при", "наконец", "два", "об", "другой",
	"хоть", "после", "над", "больше", "тот", "через", "эти", "нас", "про", "всего",
	"них", "какая", "много", "разве", "три", "эту", "моя", "впрочем", "хорошо",
	"свою", "этой", "перед", "иногда", "лучше", "чуть", "том", "нельзя", "такой",
	"им", "более", "всегда", "конечно", "всю", "между",
}
