package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"brims/libs/listview"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	workspaceCookieName = "brims_console_workspace"
	workspaceContextKey = "consoleWorkspace"
	workspaceClaim      = "workspace_id"
)

// workspace owns the screen instances of one browser session. Every screen
// shares the workspace gate, so one action in flight freezes every action
// control of the session.
type workspace struct {
	id   string
	gate *listview.Gate

	approvals  *listview.Controller[PendingUser]
	incidents  *listview.Controller[Incident]
	population *listview.Controller[PopulationRecord]

	rejectFlow     *listview.Flow[reasonInput]
	bulkFlow       *listview.Flow[bulkSelection]
	statusFlow     *listview.Flow[incidentActionInput]
	archiveFlow    *listview.Flow[incidentActionInput]
	unarchiveFlow  *listview.Flow[incidentActionInput]
	populationFlow *listview.Flow[PopulationEntry]

	affectedMu  sync.Mutex
	affected    map[string]*listview.Controller[PopulationRecord]
	newAffected func(incidentID string) *listview.Controller[PopulationRecord]

	// guarded by the registry mutex
	lastSeen time.Time
}

// affectedFor returns the affected-population screen of one incident,
// creating it on first use.
func (w *workspace) affectedFor(incidentID string) *listview.Controller[PopulationRecord] {
	w.affectedMu.Lock()
	defer w.affectedMu.Unlock()
	if controller, ok := w.affected[incidentID]; ok {
		return controller
	}
	controller := w.newAffected(incidentID)
	w.affected[incidentID] = controller
	return controller
}

// localize switches every controller of the workspace to the texts of lang.
func (w *workspace) localize(lang string) {
	messages := consoleListMessages(lang)
	w.approvals.SetMessages(messages)
	w.incidents.SetMessages(messages)
	w.population.SetMessages(messages)

	w.affectedMu.Lock()
	defer w.affectedMu.Unlock()
	for _, controller := range w.affected {
		controller.SetMessages(messages)
	}
}

// newWorkspace builds the screens of a fresh workspace.
func (a *App) newWorkspace(id string) *workspace {
	settings := a.cfg.Settings
	gate := listview.NewGate(listview.WithReleaseHook(func(target string) {
		a.log.Debug("workspace gate released", "workspace", id, "target", target)
	}))

	options := []listview.ControllerOption{
		listview.WithGate(gate),
		listview.WithPresets(settings.Lists.PerPagePresets, settings.Lists.DefaultPerPage),
		listview.WithObserver(func(outcome listview.Outcome) {
			a.recordOutcome(id, outcome)
		}),
	}

	ws := &workspace{
		id:             id,
		gate:           gate,
		approvals:      mustController(newApprovalsController(a.fetchPendingUsers, options...)),
		incidents:      mustController(newIncidentsController(a.fetchIncidents, options...)),
		population:     mustController(newPopulationController(a.fetchPopulation, options...)),
		rejectFlow:     listview.NewFlow(validateReason(settings.Reasons.RejectMin)),
		bulkFlow:       listview.NewFlow(validateBulkSelection),
		statusFlow:     listview.NewFlow(validateStatusChange(settings.Reasons.StatusRemarksMin)),
		archiveFlow:    listview.NewFlow(validateArchiveChange(settings.Reasons.ArchiveMin)),
		unarchiveFlow:  listview.NewFlow(validateUnarchiveChange(settings.Reasons.UnarchiveMin)),
		populationFlow: listview.NewFlow(validatePopulationEntry),
		affected:       map[string]*listview.Controller[PopulationRecord]{},
	}
	ws.newAffected = func(incidentID string) *listview.Controller[PopulationRecord] {
		fetch := func(ctx context.Context) ([]PopulationRecord, error) {
			return a.consoleListIncidentPopulation(ctx, incidentID)
		}
		return mustController(newAffectedController(incidentID, fetch, options...))
	}
	return ws
}

// mustController panics on schema wiring mistakes, which are programming
// errors caught by the first test that builds a workspace.
func mustController[T any](controller *listview.Controller[T], err error) *listview.Controller[T] {
	if err != nil {
		panic(err)
	}
	return controller
}

func (a *App) fetchPendingUsers(ctx context.Context) ([]PendingUser, error) {
	return a.consoleListPendingUsers(ctx)
}

func (a *App) fetchIncidents(ctx context.Context) ([]Incident, error) {
	return a.consoleListIncidents(ctx)
}

func (a *App) fetchPopulation(ctx context.Context) ([]PopulationRecord, error) {
	return a.consoleListPopulation(ctx)
}

type workspaceRegistry struct {
	mu    sync.Mutex
	ttl   time.Duration
	build func(id string) *workspace
	items map[string]*workspace
	now   func() time.Time
}

func newWorkspaceRegistry(ttl time.Duration, build func(id string) *workspace) *workspaceRegistry {
	return &workspaceRegistry{
		ttl:   ttl,
		build: build,
		items: map[string]*workspace{},
		now:   time.Now,
	}
}

// Acquire returns the workspace for id, creating it when it is unknown or
// has expired. A blank id always creates a workspace with a fresh id.
func (r *workspaceRegistry) Acquire(id string) (*workspace, bool) {
	id = strings.TrimSpace(id)
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if id != "" {
		if ws, ok := r.items[id]; ok {
			ws.lastSeen = now
			return ws, false
		}
	} else {
		id = uuid.NewString()
	}

	ws := r.build(id)
	ws.lastSeen = now
	r.items[id] = ws
	return ws, true
}

func (r *workspaceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Prune drops workspaces idle for longer than the ttl. A workspace with an
// action in flight is kept until the action settles.
func (r *workspaceRegistry) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for id, ws := range r.items {
		if now.Sub(ws.lastSeen) < r.ttl {
			continue
		}
		if _, busy := ws.gate.Busy(); busy {
			continue
		}
		delete(r.items, id)
		pruned++
	}
	return pruned
}

func (r *workspaceRegistry) startPruning(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if pruned := r.Prune(now); pruned > 0 {
					logger.Info("pruned idle workspaces", "count", pruned)
				}
			}
		}
	}()
}

// workspaceTokenTTL is the registry idle ttl, used for both the token exp
// and the cookie MaxAge.
func (a *App) workspaceTokenTTL() time.Duration {
	if a.cfg.WorkspaceIdleTTL > 0 {
		return a.cfg.WorkspaceIdleTTL
	}
	return defaultWorkspaceIdleTTL
}

func (a *App) createWorkspaceToken(id string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		workspaceClaim: id,
		"iat":          now.Unix(),
		"exp":          now.Add(a.workspaceTokenTTL()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.AppSigningSecret))
}

func (a *App) verifyWorkspaceToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(a.cfg.AppSigningSecret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid workspace token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	id, _ := claims[workspaceClaim].(string)
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid workspace id")
	}
	return id, nil
}

// workspaceMiddleware attaches the caller's workspace, issuing a cookie when
// the request carries none or an invalid one.
func (a *App) workspaceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if token, err := c.Cookie(workspaceCookieName); err == nil {
			if verified, verifyErr := a.verifyWorkspaceToken(token); verifyErr == nil {
				id = verified
			}
		}

		ws, created := a.workspaces.Acquire(id)
		if created {
			a.log.Info("workspace created", "workspace", ws.id)
		}
		if id == "" {
			token, err := a.createWorkspaceToken(ws.id)
			if err != nil {
				a.log.Error("create workspace token failed", "error", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			secure := strings.EqualFold(a.cfg.Env, "production")
			c.SetCookie(workspaceCookieName, token, int(a.workspaceTokenTTL().Seconds()), "/", "", secure, true)
		}

		ws.localize(a.consoleLanguageFromRequest(c))
		c.Set(workspaceContextKey, ws)
		c.Next()
	}
}

func workspaceFromContext(c *gin.Context) *workspace {
	value, ok := c.Get(workspaceContextKey)
	if !ok {
		return nil
	}
	ws, _ := value.(*workspace)
	return ws
}
