package summary

import (
	"context"
	"fmt"
	"time"

	"subtitle-pipeline/internal/model"
)

// MockService stands in for Service when no LLM endpoint is configured, so
// the pipeline can be exercised end-to-end during development.
type MockService struct{}

// NewMockService creates a mock summarizer.
func NewMockService() *MockService {
	return &MockService{}
}

// Summarize returns a deterministic placeholder summary derived from the
// document's cue count, never calling out to a real LLM.
func (m *MockService) Summarize(ctx context.Context, doc model.SrtDocument) *Result {
	return &Result{
		Summary:     fmt.Sprintf("Mock summary covering %d subtitle cues.", len(doc.Cues)),
		GeneratedAt: time.Now(),
	}
}
