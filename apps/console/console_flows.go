package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"brims/libs/listview"

	"github.com/gin-gonic/gin"
)

const flowConfirmSuffix = "/confirm"

// errFlowTargetMissing is returned by flow openers when the record the flow
// acts on is not in the current collection.
var errFlowTargetMissing = errors.New("flow target not found")

// flowScreen is the HTTP surface of one reason-capture flow: a form page, a
// confirmation page and the submission.
type flowScreen[I any] struct {
	headingKey string
	confirmKey string
	nav        string
	// returnPath is the default page to return to when the request names
	// none.
	returnPath func(c *gin.Context) string

	flow    func(ws *workspace) *listview.Flow[I]
	target  func(c *gin.Context) string
	open    func(c *gin.Context, ws *workspace, target string) (I, error)
	fields  func(lang string, input I) []consoleFormFieldView
	bind    func(c *gin.Context, ws *workspace, current I) I
	summary func(lang string, ws *workspace, target string, input I) []consoleSummaryLine
	submit  func(ctx context.Context, ws *workspace, lang string, n listview.Notifier, target string, input I) error
}

func registerFlowRoutes[I any](group *gin.RouterGroup, path string, screen flowScreen[I]) {
	group.GET(path, screen.showForm)
	group.POST(path, screen.submitForm)
	group.GET(path+flowConfirmSuffix, screen.showConfirm)
	group.POST(path+flowConfirmSuffix, screen.confirm)
}

func flowBasePath(c *gin.Context) string {
	return strings.TrimSuffix(c.Request.URL.Path, flowConfirmSuffix)
}

func (s flowScreen[I]) appFrom(c *gin.Context) (*App, *workspace, string, bool) {
	ws := workspaceFromContext(c)
	app := appFromContext(c)
	if ws == nil || app == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return nil, nil, "", false
	}
	return app, ws, app.consoleLanguageFromRequest(c), true
}

func (s flowScreen[I]) showForm(c *gin.Context) {
	app, ws, lang, ok := s.appFrom(c)
	if !ok {
		return
	}
	base := flowBasePath(c)
	returnPath := returnTarget(c, s.returnPath(c))
	flow := s.flow(ws)
	target := s.target(c)

	if flow.Target() == target {
		switch flow.State() {
		case listview.FlowConfirming:
			c.Redirect(http.StatusSeeOther, withReturn(base+flowConfirmSuffix, returnPath))
			return
		case listview.FlowCollecting:
			s.renderForm(c, app, ws, lang, http.StatusOK, target, flow.Input(), returnPath)
			return
		}
	}

	if ws.gate.Disabled(target) {
		redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "flash_busy"))
		return
	}
	initial, err := s.open(c, ws, target)
	if err != nil {
		s.redirectOpenFailure(c, lang, returnPath, err)
		return
	}
	if err := flow.Open(target, initial); err != nil {
		redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "flash_busy"))
		return
	}
	s.renderForm(c, app, ws, lang, http.StatusOK, target, initial, returnPath)
}

func (s flowScreen[I]) submitForm(c *gin.Context) {
	app, ws, lang, ok := s.appFrom(c)
	if !ok {
		return
	}
	base := flowBasePath(c)
	returnPath := returnTarget(c, s.returnPath(c))
	flow := s.flow(ws)
	target := s.target(c)

	if c.PostForm("action") == "close" {
		_ = flow.Close()
		c.Redirect(http.StatusSeeOther, returnPath)
		return
	}
	if ws.gate.Disabled(target) {
		redirectConsoleWithMessage(c, withReturn(base, returnPath), listview.LevelWarning, consoleText(lang, "flash_busy"))
		return
	}

	current := flow.Input()
	if flow.Target() != target || flow.State() != listview.FlowCollecting {
		initial, err := s.open(c, ws, target)
		if err != nil {
			s.redirectOpenFailure(c, lang, returnPath, err)
			return
		}
		if err := flow.Open(target, initial); err != nil {
			redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "flash_busy"))
			return
		}
		current = initial
	}

	input := s.bind(c, ws, current)
	if err := flow.Submit(input); err != nil {
		data := s.formData(c, app, ws, lang, target, input, returnPath)
		data.Flashes = append(data.Flashes, consoleFlashView{
			Level:   string(listview.LevelWarning),
			Message: consoleValidationMessage(lang, err),
		})
		app.renderConsoleTemplate(c, http.StatusUnprocessableEntity, consoleTemplateFlowFormPath, data)
		return
	}
	c.Redirect(http.StatusSeeOther, withReturn(base+flowConfirmSuffix, returnPath))
}

func (s flowScreen[I]) showConfirm(c *gin.Context) {
	app, ws, lang, ok := s.appFrom(c)
	if !ok {
		return
	}
	base := flowBasePath(c)
	returnPath := returnTarget(c, s.returnPath(c))
	flow := s.flow(ws)
	target := s.target(c)

	if flow.Target() != target || flow.State() != listview.FlowConfirming {
		redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "error_flow_expired"))
		return
	}

	input := flow.Input()
	data := consoleConfirmViewData{
		consoleBaseViewData: app.consoleBaseData(c, "confirm_title", s.nav),
		Heading:             consoleText(lang, s.headingKey),
		Body:                consoleText(lang, s.confirmKey),
		Lines:               s.summary(lang, ws, target, input),
		ActionURL:           base + flowConfirmSuffix,
		ReturnPath:          returnPath,
		Disabled:            ws.gate.Disabled(target),
	}
	app.renderConsoleTemplate(c, http.StatusOK, consoleTemplateFlowConfirmPath, data)
}

func (s flowScreen[I]) confirm(c *gin.Context) {
	_, ws, lang, ok := s.appFrom(c)
	if !ok {
		return
	}
	base := flowBasePath(c)
	returnPath := returnTarget(c, s.returnPath(c))
	flow := s.flow(ws)
	target := s.target(c)

	if flow.Target() != target {
		redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "error_flow_expired"))
		return
	}
	if c.PostForm("action") == "cancel" {
		if err := flow.Cancel(); err != nil {
			redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "error_flow_expired"))
			return
		}
		c.Redirect(http.StatusSeeOther, withReturn(base, returnPath))
		return
	}

	recorder := &listview.Recorder{}
	err := flow.Confirm(c.Request.Context(), func(ctx context.Context, target string, input I) error {
		return s.submit(ctx, ws, lang, recorder, target, input)
	})
	switch {
	case errors.Is(err, listview.ErrNotConfirming), errors.Is(err, listview.ErrSubmitting):
		redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "error_flow_expired"))
	case errors.Is(err, listview.ErrBusy):
		redirectConsoleWithNotices(c, withReturn(base+flowConfirmSuffix, returnPath), recorder.Notices())
	default:
		redirectConsoleWithNotices(c, returnPath, recorder.Notices())
	}
}

func (s flowScreen[I]) redirectOpenFailure(c *gin.Context, lang, returnPath string, err error) {
	if errors.Is(err, errFlowTargetMissing) {
		redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "error_not_found"))
		return
	}
	redirectConsoleWithAlert(c, returnPath, consoleText(lang, "error_load_failed"), normalizeConsoleErrorMessage(err, lang, "error_generic"))
}

func (s flowScreen[I]) formData(c *gin.Context, app *App, ws *workspace, lang, target string, input I, returnPath string) consoleFlowFormViewData {
	return consoleFlowFormViewData{
		consoleBaseViewData: app.consoleBaseData(c, s.headingKey, s.nav),
		Heading:             consoleText(lang, s.headingKey),
		Summary:             s.summary(lang, ws, target, input),
		ActionURL:           flowBasePath(c),
		Fields:              s.fields(lang, input),
		ReturnPath:          returnPath,
		Disabled:            ws.gate.Disabled(target),
	}
}

func (s flowScreen[I]) renderForm(c *gin.Context, app *App, ws *workspace, lang string, status int, target string, input I, returnPath string) {
	app.renderConsoleTemplate(c, status, consoleTemplateFlowFormPath, s.formData(c, app, ws, lang, target, input, returnPath))
}

const appContextKey = "consoleApp"

func (a *App) appMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(appContextKey, a)
		c.Next()
	}
}

func appFromContext(c *gin.Context) *App {
	value, ok := c.Get(appContextKey)
	if !ok {
		return nil
	}
	app, _ := value.(*App)
	return app
}
