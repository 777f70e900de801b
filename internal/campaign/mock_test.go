package campaign

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jomei/notionapi"

	"github.com/sells-group/leadgen/internal/model"
)

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []model.CampaignAssignment
	err      error
}

func (f *fakeRecorder) RecordAssignments(_ context.Context, a []model.CampaignAssignment) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.recorded = append(f.recorded, a...)
	return len(a), nil
}

// fakeDispatcher assigns every lead it receives, up to limit when set.
type fakeDispatcher struct {
	got        []model.CandidateWithScore
	limit      int
	err        error
	needsEmail bool
}

func (f *fakeDispatcher) Name() string { return "fake" }

func (f *fakeDispatcher) RequiresEmail() bool { return f.needsEmail }

func (f *fakeDispatcher) Dispatch(_ context.Context, c Campaign, cands []model.CandidateWithScore) ([]model.CampaignAssignment, error) {
	f.got = cands
	n := len(cands)
	if f.limit > 0 && f.limit < n {
		n = f.limit
	}
	out := make([]model.CampaignAssignment, n)
	for i := range out {
		out[i] = model.CampaignAssignment{CampaignID: c.ID, PlaceID: cands[i].PlaceID}
	}
	return out, f.err
}

type fakeSES struct {
	lists      []*sesv2.CreateContactListInput
	contacts   []*sesv2.CreateContactInput
	listErr    error
	contactErr map[string]error
}

func (f *fakeSES) CreateContactList(_ context.Context, in *sesv2.CreateContactListInput, _ ...func(*sesv2.Options)) (*sesv2.CreateContactListOutput, error) {
	f.lists = append(f.lists, in)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &sesv2.CreateContactListOutput{}, nil
}

func (f *fakeSES) CreateContact(_ context.Context, in *sesv2.CreateContactInput, _ ...func(*sesv2.Options)) (*sesv2.CreateContactOutput, error) {
	f.contacts = append(f.contacts, in)
	if err := f.contactErr[*in.EmailAddress]; err != nil {
		return nil, err
	}
	return &sesv2.CreateContactOutput{}, nil
}

type fakeNotion struct {
	queued  []notionapi.Page
	created []*notionapi.PageCreateRequest
	failAt  int
}

func (f *fakeNotion) QueryDatabase(context.Context, string, *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{Results: f.queued}, nil
}

func (f *fakeNotion) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if f.failAt > 0 && len(f.created)+1 == f.failAt {
		return nil, context.DeadlineExceeded
	}
	f.created = append(f.created, req)
	return &notionapi.Page{ID: "page"}, nil
}
