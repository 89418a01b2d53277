package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"brims/libs/listview"
	"brims/libs/mailer"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkspaceID = "4f6f1d5e-1c1a-4d0a-9b39-2f6a3c1d7e11"

// fakeBackend is an in-memory BRIMS API behind the App hooks.
type fakeBackend struct {
	mu         sync.Mutex
	users      []PendingUser
	incidents  []Incident
	population []PopulationRecord
	profile    Profile

	approveErr map[string]error
	rejectErr  error
	approved   []string
	rejected   map[string]string
	added      []PopulationEntry
	updates    []Profile
	// release blocks approve calls until closed when set
	release chan struct{}
	entered chan string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users: []PendingUser{
			{ID: "1", FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com", Role: "staff", Barangay: "Poblacion", CreatedAt: "2024-03-01T08:00:00Z"},
			{ID: "2", FirstName: "Ben", LastName: "Cruz", Email: "ben@example.com", Role: "captain", Barangay: "San Isidro", CreatedAt: "2024-03-02T08:00:00Z"},
			{ID: "3", FirstName: "Cora", LastName: "Diaz", Email: "cora@example.com", Role: "staff", Barangay: "Poblacion", CreatedAt: "2024-03-03T08:00:00Z"},
		},
		incidents: []Incident{
			{ID: "10", Title: "Flooded road", Type: "flood", Barangay: "Poblacion", Status: incidentStatusReported, Severity: "high", ReportedAt: "2024-03-05T10:00:00Z"},
			{ID: "11", Title: "House fire", Type: "fire", Barangay: "San Isidro", Status: incidentStatusInvestigating, Severity: "critical", ReportedAt: "2024-04-01T10:00:00Z"},
		},
		population: []PopulationRecord{
			{ID: "100", IncidentID: "10", IncidentTitle: "Flooded road", IncidentType: "flood", Barangay: "Poblacion", Families: 3, Individuals: 12, Male: 6, Female: 6, RecordedAt: "2024-03-06T10:00:00Z"},
		},
		profile:    Profile{FirstName: "Oscar", LastName: "Ramos", Email: "oscar@example.com", Role: "admin"},
		approveErr: map[string]error{},
		rejected:   map[string]string{},
	}
}

func (f *fakeBackend) wire(app *App) {
	app.consoleListPendingUsers = func(context.Context) ([]PendingUser, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		pending := make([]PendingUser, 0, len(f.users))
		for _, user := range f.users {
			if user.IsPending() {
				pending = append(pending, user)
			}
		}
		return pending, nil
	}
	app.consoleApproveUser = func(_ context.Context, id string) error {
		if f.entered != nil {
			f.entered <- id
		}
		if f.release != nil {
			<-f.release
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := f.approveErr[id]; err != nil {
			return err
		}
		f.approved = append(f.approved, id)
		f.setUserStatus(id, userStatusApproved)
		return nil
	}
	app.consoleRejectUser = func(_ context.Context, id, reason string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.rejectErr != nil {
			return f.rejectErr
		}
		f.rejected[id] = reason
		f.setUserStatus(id, userStatusRejected)
		return nil
	}
	app.consoleListIncidents = func(context.Context) ([]Incident, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return append([]Incident(nil), f.incidents...), nil
	}
	app.consoleUpdateIncidentStatus = func(_ context.Context, id, status, remarks string) (*Incident, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.incidents {
			if f.incidents[i].ID.String() == id {
				f.incidents[i].Status = status
				f.incidents[i].Remarks = remarks
				updated := f.incidents[i]
				return &updated, nil
			}
		}
		return nil, &apiError{Status: http.StatusNotFound, Message: "Incident not found."}
	}
	archive := func(archived bool) func(context.Context, string, string) (*Incident, error) {
		return func(_ context.Context, id, reason string) (*Incident, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i := range f.incidents {
				if f.incidents[i].ID.String() == id {
					f.incidents[i].IsArchived = archived
					f.incidents[i].ArchiveReason = reason
					updated := f.incidents[i]
					return &updated, nil
				}
			}
			return nil, &apiError{Status: http.StatusNotFound, Message: "Incident not found."}
		}
	}
	app.consoleArchiveIncident = archive(true)
	app.consoleUnarchiveIncident = archive(false)
	app.consoleListPopulation = func(context.Context) ([]PopulationRecord, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return append([]PopulationRecord(nil), f.population...), nil
	}
	app.consoleListIncidentPopulation = func(_ context.Context, incidentID string) ([]PopulationRecord, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if incidentID == "missing" {
			return nil, &apiError{Status: http.StatusNotFound, Message: "Incident not found."}
		}
		records := make([]PopulationRecord, 0)
		for _, record := range f.population {
			if record.IncidentID.String() == incidentID {
				records = append(records, record)
			}
		}
		return records, nil
	}
	app.consoleAddIncidentPopulation = func(_ context.Context, incidentID string, entry PopulationEntry) (*PopulationRecord, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.added = append(f.added, entry)
		record := PopulationRecord{
			ID:          backendID("new-" + incidentID),
			IncidentID:  backendID(incidentID),
			Barangay:    entry.Barangay,
			Families:    entry.Families,
			Individuals: entry.Individuals,
			Male:        entry.Male,
			Female:      entry.Female,
		}
		f.population = append(f.population, record)
		return &record, nil
	}
	app.consoleGetProfile = func(context.Context) (*Profile, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		profile := f.profile
		return &profile, nil
	}
	app.consoleUpdateProfile = func(_ context.Context, profile Profile) (*Profile, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.updates = append(f.updates, profile)
		f.profile = profile
		return &profile, nil
	}
}

func (f *fakeBackend) setUserStatus(id, status string) {
	for i := range f.users {
		if f.users[i].ID.String() == id {
			f.users[i].Status = status
		}
	}
}

func newConsoleTestServer(t *testing.T) (*App, *fakeBackend, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := &App{
		cfg: &Config{
			Env:              "test",
			AppSigningSecret: "0123456789abcdef",
			ExportEmailTo:    "ops@example.com",
			WorkspaceIdleTTL: time.Hour,
			Settings:         defaultConsoleSettings(),
		},
		log:       logger,
		mailer:    mailer.New(mailer.NewLogProvider(logger), "noreply@example.com"),
		journal:   newLogJournal(logger, 50),
		templates: newConsoleTemplateRenderer("test"),
	}
	backend := newFakeBackend()
	backend.wire(app)
	app.workspaces = newWorkspaceRegistry(app.cfg.WorkspaceIdleTTL, app.newWorkspace)

	router, err := app.newRouter()
	require.NoError(t, err)
	return app, backend, router
}

func consoleRequest(t *testing.T, app *App, method, target string, form url.Values) *http.Request {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("content-type", "application/x-www-form-urlencoded")
	}
	token, err := app.createWorkspaceToken(testWorkspaceID)
	if err != nil {
		t.Fatalf("create workspace token: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: workspaceCookieName, Value: token, Path: "/"})
	return req
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func redirectQuery(t *testing.T, recorder *httptest.ResponseRecorder) (string, url.Values) {
	t.Helper()
	if recorder.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d: %s", recorder.Code, recorder.Body.String())
	}
	location, err := url.Parse(recorder.Header().Get("Location"))
	require.NoError(t, err)
	return location.Path, location.Query()
}

func testWorkspace(t *testing.T, app *App) *workspace {
	t.Helper()
	ws, _ := app.workspaces.Acquire(testWorkspaceID)
	return ws
}

func TestConsoleIssuesWorkspaceCookie(t *testing.T) {
	_, _, router := newConsoleTestServer(t)

	recorder := serve(router, httptest.NewRequest(http.MethodGet, "/console/approvals", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	response := recorder.Result()
	var cookie *http.Cookie
	for _, candidate := range response.Cookies() {
		if candidate.Name == workspaceCookieName {
			cookie = candidate
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected workspace cookie to be set")
	}
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
}

func TestConsoleRootRedirectsToDashboard(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console", nil))
	path, _ := redirectQuery(t, recorder)
	assert.Equal(t, consoleLandingPath, path)
}

func TestConsoleApprovalsRendersPendingUsers(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals?q=poblacion", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "ana@example.com")
	assert.Contains(t, body, "cora@example.com")
	assert.NotContains(t, body, "ben@example.com")
}

func TestConsoleApprovalsKeepsListStateAcrossVisits(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals?role=captain", nil))
	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "ben@example.com")
	assert.NotContains(t, body, "ana@example.com")
}

func TestConsoleApproveRemovesRecordAndNotifies(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))

	form := url.Values{returnParam: {"/console/approvals?per_page=10"}}
	recorder := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/1/approve", form))
	path, query := redirectQuery(t, recorder)

	assert.Equal(t, consoleApprovalsPath, path)
	assert.Equal(t, consoleText("en", "notice_user_approved"), query.Get(flashKeySuccess))
	assert.Equal(t, []string{"1"}, backend.approved)

	ws := testWorkspace(t, app)
	for _, user := range ws.approvals.Derived() {
		if user.ID.String() == "1" {
			t.Fatalf("approved user still listed")
		}
	}

	entries, err := app.journal.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "approve", entries[0].Action)
	assert.Equal(t, journalOutcomeSucceeded, entries[0].Outcome)
}

func TestConsoleApproveFailureShowsBackendMessage(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)
	backend.approveErr["2"] = &apiError{Status: http.StatusUnprocessableEntity, Message: "User cannot be approved."}

	recorder := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/2/approve", url.Values{}))
	_, query := redirectQuery(t, recorder)

	assert.Equal(t, consoleText("en", "error_approve_failed"), query.Get(flashKeyAlertTitle))
	assert.Equal(t, "User cannot be approved.", query.Get(flashKeyAlert))
	ws := testWorkspace(t, app)
	_, stillListed := ws.approvals.Store().Find("2")
	assert.True(t, stillListed)
}

func TestConsoleApproveDeniedWhileAnotherActionRuns(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)
	backend.release = make(chan struct{})
	backend.entered = make(chan string, 1)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))

	first := consoleRequest(t, app, http.MethodPost, "/console/approvals/1/approve", url.Values{})
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- serve(router, first)
	}()
	<-backend.entered

	denied := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/2/approve", url.Values{}))
	_, query := redirectQuery(t, denied)
	assert.Equal(t, consoleText("en", "flash_busy"), query.Get(flashKeyWarning))

	page := serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))
	assert.Contains(t, page.Body.String(), consoleText("en", "busy_banner"))

	close(backend.release)
	settled := <-done
	_, firstQuery := redirectQuery(t, settled)
	assert.Equal(t, consoleText("en", "notice_user_approved"), firstQuery.Get(flashKeySuccess))
	assert.Equal(t, []string{"1"}, backend.approved)
}

func TestConsoleRejectFlowValidatesReason(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))

	form := serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals/1/reject", nil))
	require.Equal(t, http.StatusOK, form.Code)
	assert.Contains(t, form.Body.String(), `name="reason"`)

	short := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/1/reject", url.Values{"reason": {"no"}}))
	require.Equal(t, http.StatusUnprocessableEntity, short.Code)
	assert.Contains(t, short.Body.String(), consoleText("en", "field_reason"))
	assert.Empty(t, backend.rejected)

	ws := testWorkspace(t, app)
	assert.Equal(t, listview.FlowCollecting, ws.rejectFlow.State())
	assert.Equal(t, "no", ws.rejectFlow.Input().Reason)
}

func TestConsoleRejectFlowConfirmsAndSubmits(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))
	reason := "Duplicate registration for the same barangay office"

	submit := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/1/reject", url.Values{"reason": {reason}}))
	path, _ := redirectQuery(t, submit)
	assert.Equal(t, "/console/approvals/1/reject/confirm", path)

	confirmPage := serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals/1/reject/confirm", nil))
	require.Equal(t, http.StatusOK, confirmPage.Code)
	assert.Contains(t, confirmPage.Body.String(), reason)

	confirmed := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/1/reject/confirm", url.Values{"action": {"confirm"}}))
	path, query := redirectQuery(t, confirmed)
	assert.Equal(t, consoleApprovalsPath, path)
	assert.Equal(t, consoleText("en", "notice_user_rejected"), query.Get(flashKeySuccess))
	assert.Equal(t, reason, backend.rejected["1"])

	ws := testWorkspace(t, app)
	assert.Equal(t, listview.FlowClosed, ws.rejectFlow.State())
}

func TestConsoleRejectFlowCancelKeepsInput(t *testing.T) {
	app, _, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))
	reason := "Applicant is not a barangay official"

	serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/1/reject", url.Values{"reason": {reason}}))
	cancelled := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/1/reject/confirm", url.Values{"action": {"cancel"}}))
	path, _ := redirectQuery(t, cancelled)
	assert.Equal(t, "/console/approvals/1/reject", path)

	form := serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals/1/reject", nil))
	require.Equal(t, http.StatusOK, form.Code)
	assert.Contains(t, form.Body.String(), reason)
}

func TestConsoleRejectFailureClosesFlowWithAlert(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)
	backend.rejectErr = &apiError{Status: http.StatusUnprocessableEntity, Fields: map[string][]string{"reason": {"Reason is too vague."}}}
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))

	serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/1/reject", url.Values{"reason": {"Not a resident of this municipality"}}))
	confirmed := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/1/reject/confirm", url.Values{}))
	_, query := redirectQuery(t, confirmed)

	assert.Equal(t, "Reason is too vague.", query.Get(flashKeyAlert))
	ws := testWorkspace(t, app)
	assert.Equal(t, listview.FlowClosed, ws.rejectFlow.State())
	_, stillListed := ws.approvals.Store().Find("1")
	assert.True(t, stillListed)
}

func TestConsoleConfirmWithoutOpenFlowExpires(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals/1/reject/confirm", nil))
	_, query := redirectQuery(t, recorder)
	assert.Equal(t, consoleText("en", "error_flow_expired"), query.Get(flashKeyWarning))
}

func TestConsoleRejectUnknownUserIsNotFound(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals/999/reject", nil))
	_, query := redirectQuery(t, recorder)
	assert.Equal(t, consoleText("en", "error_not_found"), query.Get(flashKeyWarning))
}

func TestConsoleBulkApprovePartialFailureReloads(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)
	backend.approveErr["2"] = errors.New("boom")
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))

	selection := url.Values{"ids": {"1", "2", "1"}}
	submit := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/bulk", selection))
	path, _ := redirectQuery(t, submit)
	assert.Equal(t, "/console/approvals/bulk/confirm", path)

	ws := testWorkspace(t, app)
	assert.Equal(t, []string{"1", "2"}, ws.bulkFlow.Input().IDs)

	confirmed := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/bulk/confirm", url.Values{}))
	_, query := redirectQuery(t, confirmed)
	assert.Equal(t, "1 of 2 requests failed. The list was reloaded.", query.Get(flashKeyAlert))

	ids := make([]string, 0)
	for _, user := range ws.approvals.Derived() {
		ids = append(ids, user.ID.String())
	}
	assert.ElementsMatch(t, []string{"2", "3"}, ids)
}

func TestConsoleBulkApproveRequiresSelection(t *testing.T) {
	app, _, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals", nil))

	recorder := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/bulk", url.Values{}))
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
}

func TestConsoleBulkApproveCurrentPage(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/approvals?role=staff", nil))

	serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/bulk", url.Values{"scope": {"page"}}))
	confirmed := serve(router, consoleRequest(t, app, http.MethodPost, "/console/approvals/bulk/confirm", url.Values{}))
	_, query := redirectQuery(t, confirmed)

	assert.Equal(t, "2 records updated.", query.Get(flashKeySuccess))
	assert.ElementsMatch(t, []string{"1", "3"}, backend.approved)
}

func TestConsoleIncidentStatusFlowRejectsSameStatus(t *testing.T) {
	app, _, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/incidents", nil))

	form := url.Values{"status": {incidentStatusReported}, "remarks": {"Team dispatched to the area"}}
	recorder := serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/10/status", form))
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
}

func TestConsoleIncidentStatusFlowUpdatesRecord(t *testing.T) {
	app, _, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/incidents", nil))

	form := url.Values{"status": {incidentStatusResolved}, "remarks": {"Road cleared by the DPWH crew"}}
	serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/10/status", form))
	confirmed := serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/10/status/confirm", url.Values{}))
	path, query := redirectQuery(t, confirmed)

	assert.Equal(t, consoleIncidentsPath, path)
	assert.Equal(t, consoleText("en", "notice_status_updated"), query.Get(flashKeySuccess))
	ws := testWorkspace(t, app)
	incident, ok := ws.incidents.Store().Find("10")
	require.True(t, ok)
	assert.Equal(t, incidentStatusResolved, incident.Status)
}

func TestConsoleArchiveAndUnarchiveIncident(t *testing.T) {
	app, _, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/incidents", nil))
	ws := testWorkspace(t, app)

	serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/11/archive", url.Values{"reason": {"Duplicate of an earlier report"}}))
	serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/11/archive/confirm", url.Values{}))
	incident, _ := ws.incidents.Store().Find("11")
	assert.True(t, incident.IsArchived)

	again := serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/11/archive", url.Values{"reason": {"Duplicate of an earlier report"}}))
	assert.Equal(t, http.StatusUnprocessableEntity, again.Code)
	require.NoError(t, ws.archiveFlow.Close())

	serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/11/unarchive", url.Values{"reason": {"Reopened after new reports"}}))
	serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/11/unarchive/confirm", url.Values{}))
	incident, _ = ws.incidents.Store().Find("11")
	assert.False(t, incident.IsArchived)
}

func TestConsoleIncidentExportCSVFollowsListState(t *testing.T) {
	app, _, router := newConsoleTestServer(t)
	serve(router, consoleRequest(t, app, http.MethodGet, "/console/incidents?type=fire", nil))

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/incidents/export?format=csv", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Disposition"), ".csv")
	body := recorder.Body.String()
	assert.Contains(t, body, "House fire")
	assert.NotContains(t, body, "Flooded road")
}

func TestConsoleIncidentExportPDF(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/incidents/export?format=pdf", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/pdf", recorder.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(recorder.Body.String(), "%PDF"))
}

func TestConsoleIncidentEmailExport(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	invalid := serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/export/email", url.Values{"to": {"not-an-address"}}))
	_, query := redirectQuery(t, invalid)
	assert.NotEmpty(t, query.Get(flashKeyWarning))

	sent := serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/export/email", url.Values{}))
	_, query = redirectQuery(t, sent)
	assert.Equal(t, "Export sent to ops@example.com.", query.Get(flashKeySuccess))
}

func TestConsoleAffectedPopulationFlowAddsEntry(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)

	page := serve(router, consoleRequest(t, app, http.MethodGet, "/console/incidents/10/affected", nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Flooded road")

	invalid := url.Values{"barangay": {"Poblacion"}, "families": {"2"}, "individuals": {"8"}, "male": {"3"}, "female": {"3"}}
	rejected := serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/10/affected/new", invalid))
	assert.Equal(t, http.StatusUnprocessableEntity, rejected.Code)

	valid := url.Values{"barangay": {"Poblacion"}, "families": {"2"}, "individuals": {"8"}, "male": {"4"}, "female": {"4"}, "children": {"3"}}
	serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/10/affected/new", valid))
	confirmed := serve(router, consoleRequest(t, app, http.MethodPost, "/console/incidents/10/affected/new/confirm", url.Values{}))
	path, query := redirectQuery(t, confirmed)

	assert.Equal(t, "/console/incidents/10/affected", path)
	assert.Equal(t, consoleText("en", "notice_population_added"), query.Get(flashKeySuccess))
	require.Len(t, backend.added, 1)
	assert.Equal(t, 3, backend.added[0].Children)

	ws := testWorkspace(t, app)
	assert.Len(t, ws.affectedFor("10").Derived(), 2)
}

func TestConsoleAffectedUnknownIncidentRedirects(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/incidents/missing/affected", nil))
	path, query := redirectQuery(t, recorder)
	assert.Equal(t, consoleIncidentsPath, path)
	assert.Equal(t, consoleText("en", "error_not_found"), query.Get(flashKeyWarning))
}

func TestConsolePopulationShowsTotals(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/population", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "<strong>12</strong>")
}

func TestConsoleAnalyticsRendersSummary(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/analytics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "2024-03")
	assert.Contains(t, body, consoleText("en", "analytics_no_actions"))
}

func TestConsoleAnalyticsMarksPartialOnLoadFailure(t *testing.T) {
	app, _, router := newConsoleTestServer(t)
	app.consoleListPopulation = func(context.Context) ([]PopulationRecord, error) {
		return nil, errors.New("backend down")
	}

	recorder := serve(router, consoleRequest(t, app, http.MethodGet, "/console/analytics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), consoleText("en", "analytics_partial"))
}

func TestConsoleProfileUpdate(t *testing.T) {
	app, backend, router := newConsoleTestServer(t)

	page := serve(router, consoleRequest(t, app, http.MethodGet, "/console/profile", nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "oscar@example.com")

	missing := serve(router, consoleRequest(t, app, http.MethodPost, "/console/profile", url.Values{"first_name": {"Oscar"}}))
	assert.Equal(t, http.StatusUnprocessableEntity, missing.Code)
	assert.Empty(t, backend.updates)

	noAt := url.Values{"first_name": {"Oscar"}, "last_name": {"Ramos"}, "email": {"oscar"}}
	rejected := serve(router, consoleRequest(t, app, http.MethodPost, "/console/profile", noAt))
	assert.Equal(t, http.StatusUnprocessableEntity, rejected.Code)
	assert.Empty(t, backend.updates)

	form := url.Values{"first_name": {"Oscar"}, "last_name": {"Ramos"}, "email": {"oscar.ramos@example.com"}}
	saved := serve(router, consoleRequest(t, app, http.MethodPost, "/console/profile", form))
	_, query := redirectQuery(t, saved)
	assert.Equal(t, consoleText("en", "notice_profile_updated"), query.Get(flashKeySuccess))
	require.Len(t, backend.updates, 1)
	assert.Equal(t, "oscar.ramos@example.com", backend.updates[0].Email)
}

func TestConsoleLanguageSelectionLocalizesNotices(t *testing.T) {
	app, _, router := newConsoleTestServer(t)

	switched := serve(router, consoleRequest(t, app, http.MethodPost, "/console/language", url.Values{"language": {"fil"}, "next": {"/console/approvals"}}))
	path, _ := redirectQuery(t, switched)
	assert.Equal(t, consoleApprovalsPath, path)

	var languageCookie *http.Cookie
	for _, cookie := range switched.Result().Cookies() {
		if cookie.Name == consoleLanguageCookieName {
			languageCookie = cookie
		}
	}
	require.NotNil(t, languageCookie)
	assert.Equal(t, "fil", languageCookie.Value)

	req := consoleRequest(t, app, http.MethodPost, "/console/approvals/1/approve", url.Values{})
	req.AddCookie(languageCookie)
	approved := serve(router, req)
	_, query := redirectQuery(t, approved)
	assert.Equal(t, consoleText("fil", "notice_user_approved"), query.Get(flashKeySuccess))
}

func TestSanitizeConsoleRedirectTarget(t *testing.T) {
	cases := map[string]string{
		"":                                    consoleLandingPath,
		"https://evil.example.com/console":    consoleLandingPath,
		"//evil.example.com/console":          consoleLandingPath,
		"/other":                              consoleLandingPath,
		"/console/language":                   consoleLandingPath,
		"/console/approvals?q=ana&notice=hi":  "/console/approvals?q=ana",
		"/console/incidents":                  "/console/incidents",
	}
	for input, expected := range cases {
		if got := sanitizeConsoleRedirectTarget(input); got != expected {
			t.Fatalf("sanitize %q: expected %q, got %q", input, expected, got)
		}
	}
}

func TestConsoleTextFallsBackToEnglishThenKey(t *testing.T) {
	assert.Equal(t, "Approvals", consoleText("xx", "nav_approvals"))
	assert.Equal(t, "Mga pag-apruba", consoleText("fil", "nav_approvals"))
	assert.Equal(t, "missing_key", consoleText("fil", "missing_key"))
	assert.Equal(t, "escalated", consoleStatusLabel("en", "escalated"))
}

func TestConsoleValidationMessageUsesFieldLabel(t *testing.T) {
	err := &listview.ValidationError{Field: "reason", Message: "must be at least 10 characters"}
	assert.Equal(t, "Dahilan must be at least 10 characters", consoleValidationMessage("fil", err))
	assert.Equal(t, consoleText("en", "error_generic"), consoleValidationMessage("en", errors.New("other")))
}

func TestBuildListControlsSortHeadersToggle(t *testing.T) {
	view := listview.View[Incident]{
		Sort:       listview.SortSpec{Field: "title", Direction: listview.Ascending},
		Page:       listview.PageSpec{ItemsPerPage: 10, CurrentPage: 2},
		TotalPages: 3,
		Total:      25,
		StartIndex: 10,
		EndIndex:   20,
		Window:     listview.PageWindow(3, 2),
		Presets:    []int{10, 25},
		Filter:     listview.FilterSpec{Categories: map[string]string{}},
	}
	controls := buildListControls("en", consoleIncidentsPath, view, nil, incidentsSchema(), incidentsCategories, incidentsColumns)

	require.Len(t, controls.Headers, len(incidentsColumns))
	title := controls.Headers[0]
	assert.True(t, title.Active)
	assert.Contains(t, title.URL, "dir=desc")
	assert.NotContains(t, title.URL, "page=")
	assert.Contains(t, controls.Headers[1].URL, "dir=asc")

	assert.True(t, controls.Pagination.HasPrev)
	assert.True(t, controls.Pagination.HasNext)
	assert.Equal(t, 11, controls.Pagination.Start)
	assert.Equal(t, 20, controls.Pagination.End)
	assert.Contains(t, controls.ReturnPath, "page=2")
	for _, preset := range controls.PerPage {
		assert.NotContains(t, preset.URL, "page=")
	}
}

func TestHealthzReportsWorkspaceCount(t *testing.T) {
	app, _, router := newConsoleTestServer(t)
	testWorkspace(t, app)

	recorder := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok","workspaces":1}`, recorder.Body.String())
}

func TestUnknownRouteIsJSONNotFound(t *testing.T) {
	_, _, router := newConsoleTestServer(t)

	recorder := serve(router, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, recorder.Code)
	assert.JSONEq(t, `{"error":"not_found","message":"route not found"}`, recorder.Body.String())
}
