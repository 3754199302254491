package llm

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/topicdex/internal/domain/corpus"
)

const (
	documentPreview = 200
	summaryPreview  = 100
	summaryDocs     = 10
	summaryKeywords = 5
)

const topicExtractionPrompt = `Ты аналитик новостных текстов. Выдели в документах ниже от 3 до 5 основных тем.

Документы:
%s

Для каждой темы укажи название, краткое описание, ключевые слова, уверенность от 0 до 1
и идентификаторы относящихся к ней документов.

Ответ верни строго в формате JSON без пояснений:
{"topics": [{"id": 1, "name": "Название", "description": "Описание", "keywords": ["слово"], "confidence": 0.9, "document_ids": ["id"]}]}`

const summaryPrompt = `Составь аналитическую справку по теме "%s".

Описание темы: %s
Период анализа: %s - %s
Ключевые слова: %s
Количество документов: %d

Документы:
%s

Опиши основные события, тенденции и выводы. Ответ оформи в Markdown.`

// formatDocuments renders docs for a prompt. Documents are numbered from
// offset+1 so "docN" references stay global across batches.
func formatDocuments(docs []corpus.Document, offset, preview int) string {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "Документ %d (ID: %s, Дата: %s, Тема: %s):\n%s\n\n",
			offset+i+1, d.ID(), dateOrUnknown(d), orUnknown(d.Theme()), d.Preview(preview))
	}
	return strings.TrimRight(b.String(), "\n")
}

func dateOrUnknown(d corpus.Document) string {
	if !d.HasDate() {
		return "не указана"
	}
	return d.Date().Format(corpus.DateLayout)
}

func orUnknown(s string) string {
	if s == "" {
		return "не указана"
	}
	return s
}

func topicPrompt(docs []corpus.Document, offset int) string {
	return fmt.Sprintf(topicExtractionPrompt, formatDocuments(docs, offset, documentPreview))
}
