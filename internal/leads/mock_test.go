package leads

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/salesforce"
)

// mockStore is an in-memory Store keyed by identity.
type mockStore struct {
	mu         sync.Mutex
	byKey      map[string]model.LeadRecord
	insertErrs []error
	inserts    int
	listErr    error
	statuses   map[string]model.LeadStatus
}

func newMockStore() *mockStore {
	return &mockStore{
		byKey:    make(map[string]model.LeadRecord),
		statuses: make(map[string]model.LeadStatus),
	}
}

func (m *mockStore) InsertLeads(_ context.Context, leads []model.LeadRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if len(m.insertErrs) > 0 {
		err := m.insertErrs[0]
		m.insertErrs = m.insertErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	created := 0
	for _, l := range leads {
		if _, ok := m.byKey[l.IdentityKey]; ok {
			continue
		}
		m.byKey[l.IdentityKey] = l
		created++
	}
	return created, nil
}

func (m *mockStore) ListLeads(_ context.Context, f LeadFilter) ([]model.LeadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make(map[string]bool, len(f.IDs))
	for _, id := range f.IDs {
		ids[id] = true
	}
	var out []model.LeadRecord
	for _, l := range m.byKey {
		if len(ids) > 0 && !ids[l.ID] {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	// Same bounds as the real stores.
	limit := f.Limit
	switch {
	case limit <= 0:
		limit = 100
	case limit > 1000:
		limit = 1000
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) UpdateLeadStatus(_ context.Context, id string, status model.LeadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, l := range m.byKey {
		if l.ID == id {
			l.Status = status
			m.byKey[k] = l
			m.statuses[id] = status
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) CountLeadsByStatus(context.Context) (map[model.LeadStatus]int, error) {
	return map[model.LeadStatus]int{}, nil
}

func (m *mockStore) LeadBreakdown(context.Context, Dimension) (map[string]model.Breakdown, error) {
	return map[string]model.Breakdown{}, nil
}

func (m *mockStore) RecordDiscoveries(context.Context, string, string, []model.Candidate) (int, error) {
	return 0, nil
}

func (m *mockStore) CountDiscoveries(context.Context) (int, error) { return 0, nil }

func (m *mockStore) RecordAssignments(_ context.Context, a []model.CampaignAssignment) (int, error) {
	return len(a), nil
}

func (m *mockStore) CountAssignments(context.Context) (int, error) { return 0, nil }

func (m *mockStore) SaveRun(context.Context, model.AutoPilotRun) error { return nil }

func (m *mockStore) GetRun(context.Context, string) (*model.AutoPilotRun, error) {
	return nil, ErrNotFound
}

func (m *mockStore) ListRuns(context.Context, int) ([]model.AutoPilotRun, error) { return nil, nil }

func (m *mockStore) Migrate(context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }

// mockSF records calls made by the mirror.
type mockSF struct {
	mu       sync.Mutex
	inserted []map[string]any
	queryFn  func(soql string, out any) error
	updates  map[string]map[string]any
	fail     error
}

func (m *mockSF) Query(_ context.Context, soql string, out any) error {
	if m.queryFn != nil {
		return m.queryFn(soql, out)
	}
	return nil
}

func (m *mockSF) InsertCollection(_ context.Context, _ string, records []map[string]any) ([]salesforce.CollectionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	m.inserted = append(m.inserted, records...)
	out := make([]salesforce.CollectionResult, len(records))
	for i := range out {
		out[i] = salesforce.CollectionResult{Success: true}
	}
	return out, nil
}

func (m *mockSF) UpdateOne(_ context.Context, _ string, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updates == nil {
		m.updates = make(map[string]map[string]any)
	}
	m.updates[id] = fields
	return nil
}
