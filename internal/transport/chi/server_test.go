package chi

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	domanalysis "github.com/kailas-cloud/topicdex/internal/domain/analysis"
	"github.com/kailas-cloud/topicdex/internal/engine/ksel"
)

func TestAnalyze_PersistsSession(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, "POST", "/api/v1/analyze", hockeyRequest())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[AnalyzeResponse](t, rr)
	if resp.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if len(resp.SampleDocuments) != 3 || resp.SampleDocuments[0].TopicID == nil || *resp.SampleDocuments[0].TopicID != 0 {
		t.Errorf("unexpected samples: %+v", resp.SampleDocuments)
	}
	if resp.SampleDocuments[2].ID == "" {
		t.Error("document without id must get one")
	}
	if env.engine.opts.Strategy != domanalysis.Hybrid {
		t.Errorf("expected hybrid strategy, got %s", env.engine.opts.Strategy)
	}

	rr = env.do(t, "GET", "/api/v1/sessions/"+resp.SessionID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	sess := decodeBody[SessionResponse](t, rr)
	if sess.Name != "weekly" || sess.TotalDocuments != 3 || sess.Topics != 1 || len(sess.Documents) != 3 {
		t.Errorf("unexpected session: %+v", sess.SessionSummary)
	}

	rr = env.do(t, "GET", "/api/v1/sessions", nil)
	list := decodeBody[SessionListResponse](t, rr)
	if len(list.Items) != 1 || list.Items[0].ID != resp.SessionID {
		t.Errorf("unexpected session list: %+v", list.Items)
	}
}

func TestAnalyzeQuick_NotPersisted(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, "POST", "/api/v1/analyze/quick", AnalyzeRequest{
		Texts:     []string{"первый текст про хоккей", "второй текст про матч"},
		MaxTopics: 4,
		Selection: string(ksel.PerplexityMethod),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[AnalyzeResponse](t, rr)
	if resp.SessionID != "" {
		t.Errorf("quick analysis must not persist, got session %q", resp.SessionID)
	}
	opts := env.engine.opts
	if opts.Strategy != domanalysis.Single || opts.MaxTopics != 4 || opts.Selection != ksel.PerplexityMethod {
		t.Errorf("request options not applied: %+v", opts)
	}

	rr = env.do(t, "GET", "/api/v1/sessions", nil)
	if list := decodeBody[SessionListResponse](t, rr); len(list.Items) != 0 {
		t.Errorf("expected no sessions, got %d", len(list.Items))
	}
}

func TestAnalyzeLLM(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, "POST", "/api/v1/analyze/llm", hockeyRequest())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[AnalyzeResponse](t, rr)
	if resp.Result.Metadata.Strategy != domanalysis.LLMFallback {
		t.Errorf("expected llm_fallback without a provider, got %s", resp.Result.Metadata.Strategy)
	}
	if env.engine.calls != 0 {
		t.Error("LLM analysis must not run the engine")
	}
	if resp.SessionID == "" {
		t.Error("LLM analysis must be persisted")
	}
}

func TestAnalyzeLLM_Disabled(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, "POST", "/api/v1/analyze/llm", hockeyRequest())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if resp := decodeBody[ErrorResponse](t, rr); resp.Code != ErrorCodeValidationFailed {
		t.Errorf("unexpected code %s", resp.Code)
	}
}

func TestAnalyze_Validation(t *testing.T) {
	tests := []struct {
		name string
		body any
		code ErrorCode
	}{
		{"malformed json", `{"documents": [`, ErrorCodeBadRequest},
		{"no documents", AnalyzeRequest{}, ErrorCodeValidationFailed},
		{"empty text", AnalyzeRequest{Texts: []string{"  "}}, ErrorCodeValidationFailed},
		{"bad date", AnalyzeRequest{Documents: []DocumentInput{{Text: "текст", Date: "01.02.2024"}}}, ErrorCodeValidationFailed},
		{"duplicate ids", AnalyzeRequest{Documents: []DocumentInput{{ID: "1", Text: "первый"}, {ID: "1", Text: "второй"}}}, ErrorCodeValidationFailed},
		{"too many", AnalyzeRequest{Texts: []string{"a", "b", "c", "d", "e", "f"}}, ErrorCodeValidationFailed},
		{"unknown strategy", AnalyzeRequest{Texts: []string{"a"}, Strategy: "magic"}, ErrorCodeValidationFailed},
		{"unknown weighting", AnalyzeRequest{Texts: []string{"a"}, Weighting: "bm25"}, ErrorCodeValidationFailed},
		{"negative topics", AnalyzeRequest{Texts: []string{"a"}, NumTopics: -1}, ErrorCodeValidationFailed},
		{"long name", AnalyzeRequest{Texts: []string{"a"}, Name: strings.Repeat("x", 201)}, ErrorCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			rr := env.do(t, "POST", "/api/v1/analyze", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if resp := decodeBody[ErrorResponse](t, rr); resp.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, resp.Code)
			}
		})
	}
}

func TestAnalyze_EngineErrorIsInternal(t *testing.T) {
	env := newTestEnv(t, false)
	env.engine.err = errors.New("matrix exploded")

	rr := env.do(t, "POST", "/api/v1/analyze", hockeyRequest())
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	resp := decodeBody[ErrorResponse](t, rr)
	if resp.Code != ErrorCodeInternalError || strings.Contains(resp.Message, "matrix") {
		t.Errorf("internal details must not leak: %+v", resp)
	}
}

func TestUploadDocuments(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, "POST", "/api/v1/documents", UploadRequest{Documents: []DocumentInput{
		{ID: "u1", Text: "Новости спорта", Date: "2024-02-01"},
		{Text: "Без идентификатора"},
	}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[UploadResponse](t, rr)
	if resp.Count != 2 || resp.Documents[0].ID != "u1" || resp.Documents[1].ID == "" {
		t.Errorf("unexpected upload response: %+v", resp)
	}

	rr = env.do(t, "POST", "/api/v1/documents", UploadRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty upload: expected 400, got %d", rr.Code)
	}

	rr = env.do(t, "POST", "/api/v1/documents", UploadRequest{Documents: []DocumentInput{
		{ID: "u1", Text: "раз"}, {ID: "u1", Text: "два"},
	}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("duplicate ids: expected 400, got %d", rr.Code)
	}
}

func TestSessionSummary(t *testing.T) {
	env := newTestEnv(t, false)
	resp := decodeBody[AnalyzeResponse](t, env.do(t, "POST", "/api/v1/analyze", hockeyRequest()))

	rr := env.do(t, "GET", "/api/v1/sessions/"+resp.SessionID+"/summary?start=2024-01-01&end=2024-01-02", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	p := decodeBody[domanalysis.Period](t, rr)
	if p.TotalDocuments != 2 || len(p.Topics) != 1 || p.Topics[0].Percentage != 100 {
		t.Errorf("unexpected period: %+v", p)
	}
	if p.Dominant == nil || p.Dominant.TopicID != 0 {
		t.Errorf("unexpected dominant topic: %+v", p.Dominant)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing dates", "/api/v1/sessions/" + resp.SessionID + "/summary", http.StatusBadRequest},
		{"reversed", "/api/v1/sessions/" + resp.SessionID + "/summary?start=2024-02-01&end=2024-01-01", http.StatusBadRequest},
		{"unknown session", "/api/v1/sessions/missing/summary?start=2024-01-01&end=2024-01-02", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := env.do(t, "GET", tt.path, nil); rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestTopicNarrative(t *testing.T) {
	env := newTestEnv(t, false)
	resp := decodeBody[AnalyzeResponse](t, env.do(t, "POST", "/api/v1/analyze", hockeyRequest()))
	base := "/api/v1/sessions/" + resp.SessionID + "/topics/"

	rr := env.do(t, "GET", base+"0/narrative?start=2024-01-01&end=2024-01-31", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	n := decodeBody[domanalysis.Narrative](t, rr)
	if n.SessionID != resp.SessionID || n.Documents != 3 || n.Generated {
		t.Errorf("unexpected narrative: %+v", n)
	}
	if !strings.Contains(n.Text, "Спорт: хоккей") {
		t.Errorf("narrative must name the topic: %s", n.Text)
	}

	if rr := env.do(t, "GET", base+"x/narrative?start=2024-01-01&end=2024-01-31", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("non-numeric topic: expected 400, got %d", rr.Code)
	}
	if rr := env.do(t, "GET", base+"7/narrative?start=2024-01-01&end=2024-01-31", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown topic: expected 404, got %d", rr.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, "GET", "/api/v1/sessions/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if resp := decodeBody[ErrorResponse](t, rr); resp.Code != ErrorCodeNotFound {
		t.Errorf("unexpected code %s", resp.Code)
	}
}

func TestPurgeCache(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, "DELETE", "/api/v1/cache", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp := decodeBody[PurgeResponse](t, rr); resp.Deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", resp.Deleted)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody[HealthResponse](t, rr)
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}
}
