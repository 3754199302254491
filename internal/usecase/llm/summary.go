package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
	"github.com/kailas-cloud/topicdex/internal/domain/topic"
	"github.com/kailas-cloud/topicdex/internal/logger"
)

const activeTopicDocuments = 5

// Summarize writes a report on st over docs. Without a completer, or when
// the model fails, a template report is returned.
func (s *Service) Summarize(
	ctx context.Context, st topic.Stat, docs []corpus.Document, start, end time.Time,
) analysis.Narrative {
	n := analysis.Narrative{TopicID: st.ID, Start: start, End: end, Documents: len(docs)}
	if s.completer != nil {
		resp, err := s.completer.Complete(ctx, s.summaryPrompt(st, docs, start, end))
		if err == nil {
			if text := cleanMarkdown(resp); text != "" {
				n.Text, n.Generated = text, true
				return n
			}
		} else {
			logger.FromContext(ctx).Warn("LLM summary failed, using template",
				zap.Int("topic_id", st.ID), zap.Error(err))
		}
	}
	n.Text = templateSummary(st, docs, start, end)
	return n
}

func (s *Service) summaryPrompt(st topic.Stat, docs []corpus.Document, start, end time.Time) string {
	var b strings.Builder
	for i, d := range docs[:min(len(docs), summaryDocs)] {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, dateOrUnknown(d), d.Preview(summaryPreview))
	}
	return fmt.Sprintf(summaryPrompt,
		st.Name, orUnknown(st.Description),
		start.Format(corpus.DateLayout), end.Format(corpus.DateLayout),
		strings.Join(st.Keywords[:min(len(st.Keywords), summaryKeywords)], ", "),
		len(docs), strings.TrimRight(b.String(), "\n"))
}

// cleanMarkdown strips a surrounding code fence from a model answer.
func cleanMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		} else {
			s = ""
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func templateSummary(st topic.Stat, docs []corpus.Document, start, end time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Аналитическая справка по теме: %s\n\n", st.Name)
	fmt.Fprintf(&b, "## Период анализа: %s - %s\n\n",
		start.Format(corpus.DateLayout), end.Format(corpus.DateLayout))
	fmt.Fprintf(&b, "## Количество документов: %d\n\n", len(docs))

	b.WriteString("## Основные ключевые слова:\n")
	for _, kw := range st.Keywords[:min(len(st.Keywords), summaryKeywords)] {
		fmt.Fprintf(&b, "- %s\n", kw)
	}

	b.WriteString("\n## Распределение по датам:\n")
	perDay := make(map[string]int)
	for _, d := range docs {
		if d.HasDate() {
			perDay[d.Date().Format(corpus.DateLayout)]++
		}
	}
	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	slices.Sort(days)
	for _, day := range days {
		fmt.Fprintf(&b, "- %s: %d документов\n", day, perDay[day])
	}

	b.WriteString("\n## Выводы:\n")
	if len(docs) > activeTopicDocuments {
		b.WriteString("Тема активно обсуждалась в указанный период.\n")
	} else {
		b.WriteString("Тема обсуждалась ограниченно.\n")
	}
	return b.String()
}
