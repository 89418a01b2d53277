package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"brims/libs/listview"

	"github.com/gin-gonic/gin"
)

const (
	consoleBasePath    = "/console"
	consoleLandingPath = "/console/analytics"
	returnParam        = "return"
)

func (a *App) registerConsoleRoutes(r *gin.Engine) error {
	staticFS, err := consoleStaticFileSystem(a.cfg.Env)
	if err != nil {
		return err
	}
	r.StaticFS("/console/static", staticFS)

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, consoleLandingPath)
	})

	console := r.Group(consoleBasePath, a.appMiddleware(), a.workspaceMiddleware())
	{
		console.GET("", func(c *gin.Context) {
			c.Redirect(http.StatusSeeOther, consoleLandingPath)
		})
		console.POST("/language", a.consoleLanguageHandler)
		console.GET("/analytics", a.consoleAnalyticsPageHandler)

		console.GET("/approvals", a.consoleApprovalsPageHandler)
		console.POST("/approvals/:id/approve", a.consoleApproveUserHandler)
		registerFlowRoutes(console, "/approvals/:id/reject", a.rejectUserFlow())
		registerFlowRoutes(console, "/approvals/bulk", a.bulkApproveFlow())

		console.GET("/incidents", a.consoleIncidentsPageHandler)
		console.GET("/incidents/export", a.consoleIncidentsExportHandler)
		console.POST("/incidents/export/email", a.consoleIncidentsEmailHandler)
		registerFlowRoutes(console, "/incidents/:id/status", a.incidentStatusFlow())
		registerFlowRoutes(console, "/incidents/:id/archive", a.incidentArchiveFlow())
		registerFlowRoutes(console, "/incidents/:id/unarchive", a.incidentUnarchiveFlow())
		console.GET("/incidents/:id/affected", a.consoleAffectedPageHandler)
		registerFlowRoutes(console, "/incidents/:id/affected/new", a.populationEntryFlow())

		console.GET("/population", a.consolePopulationPageHandler)

		console.GET("/profile", a.consoleProfilePageHandler)
		console.POST("/profile", a.consoleProfileSubmitHandler)
	}
	return nil
}

func (a *App) renderConsoleTemplate(c *gin.Context, status int, contentTemplatePath string, data any) {
	templates, err := a.templates.templatesForRender(contentTemplatePath)
	if err != nil {
		c.String(http.StatusInternalServerError, "console template error: %v", err)
		return
	}

	c.Status(status)
	if executeErr := templates.ExecuteTemplate(c.Writer, "layout", data); executeErr != nil {
		a.log.Error("render console template failed", "error", executeErr, "template", contentTemplatePath)
		if !c.Writer.Written() {
			c.String(http.StatusInternalServerError, "render failure")
		}
	}
}

func (a *App) consoleBaseData(c *gin.Context, titleKey, activeNav string) consoleBaseViewData {
	lang := a.consoleLanguageFromRequest(c)
	query := c.Request.URL.Query()
	base := consoleBaseViewData{
		Title:       consoleText(lang, titleKey),
		Lang:        lang,
		Text:        consoleTexts(lang),
		CurrentPath: sanitizeConsoleRedirectTarget(c.Request.URL.RequestURI()),
		ActiveNav:   activeNav,
		Flashes:     flashesFromQuery(query),
		AlertTitle:  strings.TrimSpace(query.Get(flashKeyAlertTitle)),
		AlertBody:   strings.TrimSpace(query.Get(flashKeyAlert)),
		AlertLevel:  strings.TrimSpace(query.Get(flashKeyAlertLevel)),
	}
	if base.AlertBody != "" && base.AlertLevel == "" {
		base.AlertLevel = string(listview.LevelError)
	}
	if ws := workspaceFromContext(c); ws != nil {
		_, base.Busy = ws.gate.Busy()
	}
	return base
}

// withAlert sets the modal alert of a page rendered without a redirect.
func withAlert(base consoleBaseViewData, title, body string) consoleBaseViewData {
	base.AlertTitle = title
	base.AlertBody = body
	base.AlertLevel = string(listview.LevelError)
	return base
}

func (a *App) consoleLanguageHandler(c *gin.Context) {
	language := normalizeConsoleLanguage(c.PostForm("language"))
	a.setConsoleLanguageCookie(c, language)
	if ws := workspaceFromContext(c); ws != nil {
		ws.localize(language)
	}
	c.Redirect(http.StatusSeeOther, sanitizeConsoleRedirectTarget(c.PostForm("next")))
}

func (a *App) setConsoleLanguageCookie(c *gin.Context, language string) {
	secure := strings.EqualFold(a.cfg.Env, "production")
	c.SetCookie(consoleLanguageCookieName, normalizeConsoleLanguage(language), int(consoleLanguageCookieMaxAge.Seconds()), "/", "", secure, true)
}

func (a *App) consoleLanguageFromRequest(c *gin.Context) string {
	cookieValue, err := c.Cookie(consoleLanguageCookieName)
	if err != nil {
		return consoleDefaultLanguage
	}
	return normalizeConsoleLanguage(cookieValue)
}

func normalizeConsoleLanguage(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "fil", "tl":
		return "fil"
	default:
		return consoleDefaultLanguage
	}
}

func consoleTexts(lang string) map[string]string {
	if translations, ok := consoleTranslations[normalizeConsoleLanguage(lang)]; ok {
		return translations
	}
	return consoleTranslations[consoleDefaultLanguage]
}

// consoleText returns the translation of key, falling back to English and
// then to the key itself.
func consoleText(lang, key string) string {
	if value, ok := lookupConsoleText(lang, key); ok {
		return value
	}
	return key
}

func lookupConsoleText(lang, key string) (string, bool) {
	if value, ok := consoleTexts(lang)[key]; ok {
		return value, true
	}
	value, ok := consoleTranslations[consoleDefaultLanguage][key]
	return value, ok
}

func sprintfText(lang, key string, args ...any) string {
	return fmt.Sprintf(consoleText(lang, key), args...)
}

// consoleValidationMessage renders a local validation error with a
// translated field label.
func consoleValidationMessage(lang string, err error) string {
	var validationErr *listview.ValidationError
	if errors.As(err, &validationErr) {
		if validationErr.Field == "" {
			return validationErr.Message
		}
		label, ok := lookupConsoleText(lang, "field_"+validationErr.Field)
		if !ok {
			label = validationErr.Field
		}
		return label + " " + validationErr.Message
	}
	return consoleText(lang, "error_generic")
}

// normalizeConsoleErrorMessage picks the server message of err or the
// translated fallback.
func normalizeConsoleErrorMessage(err error, lang, fallbackKey string) string {
	return listview.MessageFor(err, consoleText(lang, fallbackKey))
}

func sanitizeConsoleRedirectTarget(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return consoleLandingPath
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return consoleLandingPath
	}
	if parsed.IsAbs() || parsed.Host != "" {
		return consoleLandingPath
	}
	if strings.HasPrefix(parsed.Path, "//") {
		return consoleLandingPath
	}
	if parsed.Path != consoleBasePath && !strings.HasPrefix(parsed.Path, consoleBasePath+"/") {
		return consoleLandingPath
	}
	if parsed.Path == consoleBasePath+"/language" || strings.HasPrefix(parsed.Path, consoleBasePath+"/static") {
		return consoleLandingPath
	}

	query := parsed.Query()
	stripFlashKeys(query)
	if encoded := query.Encode(); encoded != "" {
		return parsed.Path + "?" + encoded
	}
	return parsed.Path
}

// redirectConsoleWithNotices redirects to target with notices as flash
// parameters.
func redirectConsoleWithNotices(c *gin.Context, target string, notices []listview.Notice) {
	parsed, err := url.Parse(sanitizeConsoleRedirectTarget(target))
	if err != nil {
		c.Redirect(http.StatusSeeOther, consoleLandingPath)
		return
	}
	query := parsed.Query()
	applyNotices(query, notices)
	parsed.RawQuery = query.Encode()

	redirectURL := parsed.Path
	if parsed.RawQuery != "" {
		redirectURL += "?" + parsed.RawQuery
	}
	c.Redirect(http.StatusSeeOther, redirectURL)
}

func redirectConsoleWithMessage(c *gin.Context, target string, level listview.Level, message string) {
	redirectConsoleWithNotices(c, target, []listview.Notice{{Level: level, Body: message}})
}

func redirectConsoleWithAlert(c *gin.Context, target, title, body string) {
	redirectConsoleWithNotices(c, target, []listview.Notice{{Level: listview.LevelError, Title: title, Body: body, Modal: true}})
}

// returnTarget reads the list page an action should return to.
func returnTarget(c *gin.Context, fallback string) string {
	raw := c.PostForm(returnParam)
	if raw == "" {
		raw = c.Query(returnParam)
	}
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	return sanitizeConsoleRedirectTarget(raw)
}

func withReturn(path, returnPath string) string {
	if returnPath == "" {
		return path
	}
	return path + "?" + url.Values{returnParam: {returnPath}}.Encode()
}

const (
	listParamSearch    = "q"
	listParamSort      = "sort"
	listParamDirection = "dir"
	listParamPage      = "page"
	listParamPerPage   = "per_page"
	listParamReload    = "reload"
)

// hasListParams reports whether the request names any list state. A bare
// screen URL keeps the workspace's current state.
func hasListParams(query url.Values, categories []categoryField) bool {
	keys := append([]string{listParamSearch, listParamSort, listParamDirection, listParamPage, listParamPerPage}, categoryNames(categories)...)
	for _, key := range keys {
		if query.Has(key) {
			return true
		}
	}
	return false
}

func parseListParams(query url.Values, categories []categoryField) listview.Params {
	params := listview.Params{
		Search:     query.Get(listParamSearch),
		Categories: map[string]string{},
		Sort:       strings.TrimSpace(query.Get(listParamSort)),
		Direction:  listview.ParseDirection(query.Get(listParamDirection)),
	}
	for _, category := range categories {
		params.Categories[category.Name] = query.Get(category.Name)
	}
	if page, err := strconv.Atoi(strings.TrimSpace(query.Get(listParamPage))); err == nil && page > 0 {
		params.Page = page
	}
	if perPage, err := strconv.Atoi(strings.TrimSpace(query.Get(listParamPerPage))); err == nil && perPage > 0 {
		params.PerPage = perPage
	}
	return params
}

// loadListRequest loads the collection and applies the request's list
// parameters. Navigation is never blocked by the gate.
func loadListRequest[T any](c *gin.Context, controller *listview.Controller[T], categories []categoryField) error {
	query := c.Request.URL.Query()
	var err error
	if query.Get(listParamReload) == "1" {
		err = controller.Refresh(c.Request.Context())
	} else {
		err = controller.EnsureLoaded(c.Request.Context())
	}
	if hasListParams(query, categories) {
		controller.Apply(parseListParams(query, categories))
	}
	return err
}

// listStateQuery encodes filter, sort and page size. Page is added by the
// callers that need it.
func listStateQuery(filter listview.FilterSpec, sort listview.SortSpec, perPage int, categories []categoryField) url.Values {
	query := url.Values{}
	if filter.Search != "" {
		query.Set(listParamSearch, filter.Search)
	}
	for _, category := range categories {
		if selected := filter.Selection(category.Name); selected != listview.All {
			query.Set(category.Name, selected)
		}
	}
	if sort.Field != "" {
		query.Set(listParamSort, sort.Field)
		query.Set(listParamDirection, string(sort.Direction))
	}
	query.Set(listParamPerPage, strconv.Itoa(perPage))
	return query
}

func urlWithQuery(path string, query url.Values) string {
	if encoded := query.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

func cloneQuery(query url.Values, key, value string) url.Values {
	next := url.Values{}
	for k, values := range query {
		next[k] = append([]string(nil), values...)
	}
	next.Set(key, value)
	return next
}

// buildListControls renders search, filters, sort headers, pagination and
// page size links for a derived view.
func buildListControls[T any](lang, path string, view listview.View[T], snapshot []T, schema listview.Schema[T], categories []categoryField, columns []sortColumn) consoleListControlsView {
	state := listStateQuery(view.Filter, view.Sort, view.Page.ItemsPerPage, categories)
	current := cloneQuery(state, listParamPage, strconv.Itoa(view.Page.CurrentPage))

	controls := consoleListControlsView{
		ActionPath:      path,
		Search:          view.Filter.Search,
		ReturnPath:      urlWithQuery(path, current),
		ReloadURL:       urlWithQuery(path, cloneQuery(current, listParamReload, "1")),
		ActionsDisabled: view.Busy,
		Empty:           len(view.Items) == 0,
	}
	if !view.FetchedAt.IsZero() {
		controls.FetchedAt = view.FetchedAt.Format(consoleDisplayTimestampLayout)
	}
	if view.Sort.Field != "" {
		controls.Hidden = append(controls.Hidden,
			consoleHiddenField{Name: listParamSort, Value: view.Sort.Field},
			consoleHiddenField{Name: listParamDirection, Value: string(view.Sort.Direction)},
		)
	}
	controls.Hidden = append(controls.Hidden, consoleHiddenField{Name: listParamPerPage, Value: strconv.Itoa(view.Page.ItemsPerPage)})

	for _, category := range categories {
		selected := view.Filter.Selection(category.Name)
		filter := consoleFilterView{
			Name:    category.Name,
			Label:   consoleText(lang, category.LabelKey),
			Options: []consoleOptionView{{Value: listview.All, Label: consoleText(lang, "list_all"), Selected: selected == listview.All}},
		}
		for _, value := range categoryValues(snapshot, schema, category) {
			filter.Options = append(filter.Options, consoleOptionView{
				Value:    value,
				Label:    categoryOptionLabel(lang, category, value),
				Selected: selected == value,
			})
		}
		controls.Filters = append(controls.Filters, filter)
	}

	for _, column := range columns {
		next := view.Sort.Toggle(column.Field)
		query := cloneQuery(state, listParamSort, next.Field)
		query.Set(listParamDirection, string(next.Direction))
		header := consoleSortHeaderView{
			Label:  consoleText(lang, column.LabelKey),
			URL:    urlWithQuery(path, query),
			Active: view.Sort.Field == column.Field,
		}
		if header.Active {
			header.Direction = string(view.Sort.Direction)
		}
		controls.Headers = append(controls.Headers, header)
	}

	pagination := consolePaginationView{
		CurrentPage: view.Page.CurrentPage,
		TotalPages:  view.TotalPages,
		Total:       view.Total,
		HasPrev:     view.Page.CurrentPage > 1,
		HasNext:     view.Page.CurrentPage < view.TotalPages,
	}
	if view.Total > 0 {
		pagination.Start = view.StartIndex + 1
		pagination.End = view.EndIndex
	}
	if pagination.HasPrev {
		pagination.PrevURL = urlWithQuery(path, cloneQuery(state, listParamPage, strconv.Itoa(view.Page.CurrentPage-1)))
	}
	if pagination.HasNext {
		pagination.NextURL = urlWithQuery(path, cloneQuery(state, listParamPage, strconv.Itoa(view.Page.CurrentPage+1)))
	}
	for _, link := range view.Window {
		if link.Ellipsis {
			pagination.Links = append(pagination.Links, consolePageLinkView{Ellipsis: true})
			continue
		}
		pagination.Links = append(pagination.Links, consolePageLinkView{
			Number:  link.Number,
			URL:     urlWithQuery(path, cloneQuery(state, listParamPage, strconv.Itoa(link.Number))),
			Current: link.Number == view.Page.CurrentPage,
		})
	}
	controls.Pagination = pagination

	for _, preset := range view.Presets {
		controls.PerPage = append(controls.PerPage, consolePerPageView{
			Value:    preset,
			URL:      urlWithQuery(path, cloneQuery(state, listParamPerPage, strconv.Itoa(preset))),
			Selected: preset == view.Page.ItemsPerPage,
		})
	}
	return controls
}

func categoryOptionLabel(lang string, category categoryField, value string) string {
	if len(category.Fixed) == 0 {
		return value
	}
	if label, ok := lookupConsoleText(lang, category.Name+"_"+value); ok {
		return label
	}
	return value
}
