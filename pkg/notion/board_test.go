package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func queuedFilter(req *notionapi.DatabaseQueryRequest) bool {
	pf, ok := req.Filter.(notionapi.PropertyFilter)
	return ok && pf.Property == PropStatus && pf.Status != nil && pf.Status.Equals == StatusQueued
}

func placePage(id, placeID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropPlaceID: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: placeID}},
			},
		},
	}
}

func TestLeadPage_Properties(t *testing.T) {
	props := LeadPage{
		Name: "Pizzeria Da Michele", Email: "info@damichele.it", Score: 82.5,
		Grade: "B", Campaign: "spring", PlaceID: "p1",
	}.Properties()

	title, ok := props[PropName].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "Pizzeria Da Michele", title.Title[0].Text.Content)

	status, ok := props[PropStatus].(notionapi.StatusProperty)
	require.True(t, ok)
	assert.Equal(t, StatusQueued, status.Status.Name)

	score, ok := props[PropScore].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, 82.5, score.Number, 0.001)

	assert.Contains(t, props, PropEmail)
	assert.NotContains(t, props, PropPhone)
	assert.NotContains(t, props, PropWebsite)
	assert.Equal(t, "p1", plainText(props[PropPlaceID]))
}

func TestNewLeadPageRequest(t *testing.T) {
	req := NewLeadPageRequest("db-1", LeadPage{Name: "Acme"})
	assert.Equal(t, notionapi.ParentTypeDatabaseID, req.Parent.Type)
	assert.Equal(t, notionapi.DatabaseID("db-1"), req.Parent.DatabaseID)
}

func TestQueuedPlaceIDs_Paginates(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return queuedFilter(req) && req.StartCursor == ""
	})).Return(&notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{placePage("a", "p1"), placePage("b", "")},
		HasMore:    true,
		NextCursor: notionapi.Cursor("cur-2"),
	}, nil).Once()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return queuedFilter(req) && req.StartCursor == notionapi.Cursor("cur-2")
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{placePage("c", "p3")},
	}, nil).Once()

	ids, err := QueuedPlaceIDs(ctx, mc, "db-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"p1": true, "p3": true}, ids)
	mc.AssertExpectations(t)
}

func TestQueuedPlaceIDs_Error(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-err", mock.Anything).Return(nil, assert.AnError).Once()

	ids, err := QueuedPlaceIDs(ctx, mc, "db-err")
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.Contains(t, err.Error(), "notion: query queued leads")
}

func TestCreateLeadPages(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Return(&notionapi.Page{ID: "x"}, nil).Twice()

	n, err := CreateLeadPages(ctx, mc, "db-1", []LeadPage{{Name: "A", PlaceID: "p1"}, {Name: "B", PlaceID: "p2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	mc.AssertExpectations(t)
}

func TestCreateLeadPages_StopsOnError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Return(&notionapi.Page{ID: "x"}, nil).Once()
	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Return(nil, assert.AnError).Once()

	n, err := CreateLeadPages(ctx, mc, "db-1", []LeadPage{{PlaceID: "p1"}, {PlaceID: "p2"}, {PlaceID: "p3"}})
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "p2")
}

func TestCreateLeadPages_Cancelled(t *testing.T) {
	mc := new(MockClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := CreateLeadPages(ctx, mc, "db-1", []LeadPage{{PlaceID: "p1"}})
	require.Error(t, err)
	assert.Zero(t, n)
	mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
}
