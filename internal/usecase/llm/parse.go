package llm

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	structuredConfidence = 0.8
	maxHeadingLength     = 100
)

var errNoTopics = errors.New("no topics in response")

// rawTopic is one topic as returned by the model.
type rawTopic struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Confidence  *float64 `json:"confidence"`
	DocumentIDs []docRef `json:"document_ids"`
}

// docRef accepts document references given either as strings or numbers.
type docRef string

func (r *docRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = docRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = docRef(n.String())
	return nil
}

// parseTopics extracts topics from a model response: the span between the
// first '{' and the last '}' as JSON, or else a line-oriented heuristic.
func parseTopics(resp string) ([]rawTopic, error) {
	if topics, err := parseJSONTopics(resp); err == nil && len(topics) > 0 {
		return topics, nil
	}
	topics := parseStructured(resp)
	if len(topics) == 0 {
		return nil, errNoTopics
	}
	return topics, nil
}

func parseJSONTopics(resp string) ([]rawTopic, error) {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end < start {
		return nil, errNoTopics
	}
	var payload struct {
		Topics []rawTopic `json:"topics"`
	}
	if err := json.Unmarshal([]byte(resp[start:end+1]), &payload); err != nil {
		return nil, err
	}
	return payload.Topics, nil
}

// parseStructured reads free text: a heading line starts a topic and a
// "keywords" line fills the current topic's keywords.
func parseStructured(text string) []rawTopic {
	var (
		topics  []rawTopic
		current *rawTopic
	)
	flush := func() {
		if current != nil && current.Name != "" {
			topics = append(topics, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "ключевые слова") || strings.Contains(lower, "keywords"):
			if current != nil {
				current.Keywords = splitKeywords(line)
			}
		case strings.HasPrefix(line, "Тема") || strings.HasPrefix(line, "Topic") ||
			(strings.Contains(line, ":") && utf8.RuneCountInString(line) < maxHeadingLength):
			flush()
			name := line
			if i := strings.LastIndex(line, ":"); i >= 0 {
				name = strings.TrimSpace(line[i+1:])
			}
			name = strings.Trim(name, "*#\" ")
			conf := structuredConfidence
			current = &rawTopic{Name: name, Confidence: &conf}
		}
	}
	flush()
	return topics
}

func splitKeywords(line string) []string {
	if i := strings.Index(line, ":"); i >= 0 {
		line = line[i+1:]
	}
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".*\"'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// resolveRef maps a reference to a document index: a known document id, or
// "docN"/"doc_N"/"N" with 1-based N.
func resolveRef(ref string, ids map[string]int, n int) (int, bool) {
	ref = strings.TrimSpace(ref)
	if idx, ok := ids[ref]; ok {
		return idx, true
	}
	num := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(ref), "doc"), "_")
	i, err := strconv.Atoi(num)
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}
