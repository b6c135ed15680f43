package journal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openhistory/journalkit/internal/domain"
)

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, journableType string, journableID int64) (domain.Journable, error) {
	if journableType != domain.WorkItemType {
		return nil, fmt.Errorf("unknown journable type %s", journableType)
	}
	return domain.WorkItem{ID: journableID}, nil
}

func TestHandleRecordCreatesJournal(t *testing.T) {
	repo := &stubRepo{createJournal: &domain.Journal{
		ID: 1, JournableID: 5, JournableType: domain.WorkItemType,
		Version: 1, UserID: 2, Notes: "note", CreatedAt: time.Now(),
	}}
	handler := NewHTTPHandler(newTestService(t, repo), stubResolver{})

	body := `{"journableType":"WorkItem","journableId":5,"userId":2,"notes":"note"}`
	req := httptest.NewRequest(http.MethodPost, "/journals", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"created":true`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleRecordReportsNoop(t *testing.T) {
	repo := &stubRepo{}
	handler := NewHTTPHandler(newTestService(t, repo), stubResolver{})

	body := `{"journableType":"WorkItem","journableId":5,"userId":2}`
	req := httptest.NewRequest(http.MethodPost, "/journals", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"created":false`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleRecordRequiresUser(t *testing.T) {
	handler := NewHTTPHandler(newTestService(t, &stubRepo{}), stubResolver{})

	body := `{"journableType":"WorkItem","journableId":5}`
	req := httptest.NewRequest(http.MethodPost, "/journals", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a user, got %d", rec.Code)
	}
}

func TestHandlePendingChanges(t *testing.T) {
	repo := &stubRepo{pending: true}
	handler := NewHTTPHandler(newTestService(t, repo), stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/journals/pending?journableType=WorkItem&journableId=5", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"pendingChanges":true`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandleHistoryRejectsBadParams(t *testing.T) {
	handler := NewHTTPHandler(newTestService(t, &stubRepo{}), stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/journals?journableId=5", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing journableType, got %d", rec.Code)
	}
}

func TestHandleReassign(t *testing.T) {
	repo := &stubRepo{}
	handler := NewHTTPHandler(newTestService(t, repo), stubResolver{})

	body := `{"fromUserId":4,"toUserId":9}`
	req := httptest.NewRequest(http.MethodPost, "/journals/reassign", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.reassignedFrom != 4 || repo.reassignedTo != 9 {
		t.Fatalf("reassign did not reach the repository: %d -> %d", repo.reassignedFrom, repo.reassignedTo)
	}
}
