package topicdex

import (
	"context"

	"github.com/kailas-cloud/topicdex/internal/engine"
	"github.com/kailas-cloud/topicdex/internal/engine/namer"
	analysisuc "github.com/kailas-cloud/topicdex/internal/usecase/analysis"
	healthuc "github.com/kailas-cloud/topicdex/internal/usecase/health"
)

// --- analysisUseCase mock ---

type mockAnalysisUC struct {
	analyzeFn func(ctx context.Context, req analysisuc.Request) (analysisuc.Outcome, error)
	last      analysisuc.Request
}

func (m *mockAnalysisUC) Analyze(ctx context.Context, req analysisuc.Request) (analysisuc.Outcome, error) {
	m.last = req
	return m.analyzeFn(ctx, req)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

// --- helpers ---

func testAnalyzer(svc analysisUseCase) *Analyzer {
	return &Analyzer{
		svc:        svc,
		healthSvc:  &mockHealthUC{report: healthuc.Report{Status: healthuc.Healthy}},
		classifier: namer.NewClassifier(nil),
		opts:       engine.DefaultOptions(),
	}
}
