// Package topicdex embeds the topicdex topic-discovery engine in a Go
// program. No server is needed; a Valkey or Redis cache and an
// OpenAI-compatible chat model are optional.
//
//	a, _ := topicdex.New(topicdex.WithSeed(7), topicdex.WithMaxTopics(6))
//	defer a.Close()
//	res, _ := a.AnalyzeTexts(ctx, texts...)
//	for _, t := range res.Topics {
//	    fmt.Println(t.Name, t.DocumentCount, t.Keywords)
//	}
//
// Documents carry an optional id, date and theme:
//
//	res, _ := a.Analyze(ctx, []topicdex.Document{
//	    {ID: "n1", Text: "...", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
//	})
//
// The hybrid strategy fits LDA and NMF and reconciles them; Single fits LDA
// only; Fallback scores documents against the theme dictionaries; LLM asks
// the configured chat model (see WithOpenAI).
package topicdex
