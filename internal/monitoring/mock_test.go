package monitoring

import (
	"context"

	"github.com/sells-group/leadgen/internal/model"
)

type mockRuns struct {
	runs  []model.AutoPilotRun
	err   error
	limit int
}

func (m *mockRuns) ListRuns(_ context.Context, limit int) ([]model.AutoPilotRun, error) {
	m.limit = limit
	return m.runs, m.err
}
