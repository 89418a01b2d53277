package main

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"brims/libs/listview"

	"github.com/gin-gonic/gin"
)

const (
	consoleIncidentsPath   = "/console/incidents"
	consoleExportPDFTitle  = "BRIMS incident report"
	consoleExportActionKey = "export_email"
)

func (a *App) consoleIncidentsPageHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	base := a.consoleBaseData(c, "page_title_incidents", screenIncidents)

	if err := loadListRequest(c, ws.incidents, incidentsCategories); err != nil {
		a.log.Warn("load incidents failed", "workspace", ws.id, "error", err)
		base = withAlert(base, consoleText(lang, "error_load_failed"), normalizeConsoleErrorMessage(err, lang, "error_generic"))
	}

	view := ws.incidents.View()
	list := buildListControls(lang, consoleIncidentsPath, view, ws.incidents.Store().Snapshot(), incidentsSchema(), incidentsCategories, incidentsColumns)

	rows := make([]consoleIncidentRowView, 0, len(view.Items))
	for _, incident := range view.Items {
		id := incident.ID.String()
		path := consoleIncidentsPath + "/" + id
		rows = append(rows, consoleIncidentRowView{
			ID:           id,
			Title:        incident.Title,
			Type:         incident.Type,
			Barangay:     incident.Barangay,
			Location:     incident.Location,
			Reporter:     incident.ReporterName,
			Severity:     incident.Severity,
			StatusLabel:  consoleStatusLabel(lang, incident.Status),
			Reported:     consoleDisplayTime(incident.ReportedAt),
			Archived:     incident.IsArchived,
			ArchiveLabel: consoleArchiveLabel(lang, incident.ArchiveState()),
			StatusURL:    withReturn(path+"/status", list.ReturnPath),
			ArchiveURL:   withReturn(path+"/archive", list.ReturnPath),
			UnarchiveURL: withReturn(path+"/unarchive", list.ReturnPath),
			AffectedURL:  path + "/affected",
		})
	}

	a.renderConsoleTemplate(c, http.StatusOK, consoleTemplateIncidentsPath, consoleIncidentsViewData{
		consoleBaseViewData: base,
		List:                list,
		Rows:                rows,
		ExportCSVURL:        consoleIncidentsPath + "/export?format=" + exportFormatCSV,
		ExportPDFURL:        consoleIncidentsPath + "/export?format=" + exportFormatPDF,
		ExportEmailPath:     consoleIncidentsPath + "/export/email",
		ExportQuery:         []consoleHiddenField{{Name: returnParam, Value: list.ReturnPath}},
		ExportEmailTo:       a.cfg.ExportEmailTo,
	})
}

// consoleIncidentsExportHandler downloads the filtered and sorted incident
// list of the workspace, ignoring pagination.
func (a *App) consoleIncidentsExportHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", exportFormatCSV)))

	if err := ws.incidents.EnsureLoaded(c.Request.Context()); err != nil {
		redirectConsoleWithAlert(c, consoleIncidentsPath, consoleText(lang, "error_export_failed"), normalizeConsoleErrorMessage(err, lang, "error_generic"))
		return
	}
	incidents := ws.incidents.Derived()
	now := time.Now()

	var (
		content     []byte
		contentType string
		err         error
	)
	switch format {
	case exportFormatPDF:
		content, err = buildIncidentPDF(incidents, consoleExportPDFTitle, now)
		contentType = "application/pdf"
	case exportFormatCSV:
		content, err = buildIncidentCSV(incidents)
		contentType = "text/csv; charset=utf-8"
	default:
		c.String(http.StatusBadRequest, "unsupported export format")
		return
	}
	if err != nil {
		a.log.Error("build incident export failed", "format", format, "error", err)
		redirectConsoleWithAlert(c, consoleIncidentsPath, consoleText(lang, "error_export_failed"), consoleText(lang, "error_generic"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+incidentExportFilename(format, now)+`"`)
	c.Data(http.StatusOK, contentType, content)
}

// consoleIncidentsEmailHandler mails the current incident view. The send
// holds the workspace gate like any other action.
func (a *App) consoleIncidentsEmailHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	returnPath := returnTarget(c, consoleIncidentsPath)

	to := strings.TrimSpace(c.PostForm("to"))
	if to == "" {
		to = a.cfg.ExportEmailTo
	}
	if _, err := mail.ParseAddress(to); err != nil {
		redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "field_email")+" "+consoleText(lang, "error_invalid_email"))
		return
	}

	started := time.Now()
	err := ws.gate.Do(c.Request.Context(), consoleExportActionKey, func(ctx context.Context) error {
		if err := ws.incidents.EnsureLoaded(ctx); err != nil {
			return err
		}
		return a.emailIncidentExport(ctx, to, ws.incidents.Derived(), consoleExportPDFTitle)
	})
	outcome := listview.Outcome{
		Screen:   screenIncidents,
		Action:   consoleExportActionKey,
		Targets:  []string{to},
		Err:      err,
		Duration: time.Since(started),
	}

	switch {
	case err == nil:
		a.recordOutcome(ws.id, outcome)
		redirectConsoleWithMessage(c, returnPath, listview.LevelSuccess, sprintfText(lang, "notice_export_emailed", to))
	case errors.Is(err, listview.ErrBusy):
		outcome.Denied = true
		a.recordOutcome(ws.id, outcome)
		redirectConsoleWithMessage(c, returnPath, listview.LevelWarning, consoleText(lang, "flash_busy"))
	default:
		outcome.Failed = []string{to}
		a.recordOutcome(ws.id, outcome)
		a.log.Error("email incident export failed", "workspace", ws.id, "error", err)
		redirectConsoleWithAlert(c, returnPath, consoleText(lang, "error_export_failed"), normalizeConsoleErrorMessage(err, lang, "error_generic"))
	}
}

func consoleIncidentsReturn(*gin.Context) string { return consoleIncidentsPath }

func incidentTarget(c *gin.Context) string { return strings.TrimSpace(c.Param("id")) }

// openIncidentAction captures the incident's state when a flow opens.
func openIncidentAction(c *gin.Context, ws *workspace, target string) (incidentActionInput, error) {
	if err := ws.incidents.EnsureLoaded(c.Request.Context()); err != nil {
		return incidentActionInput{}, err
	}
	incident, ok := ws.incidents.Store().Find(target)
	if !ok {
		return incidentActionInput{}, errFlowTargetMissing
	}
	return incidentActionInput{Current: incident.Status, Archived: incident.IsArchived}, nil
}

func incidentSummary(lang string, ws *workspace, id string, input incidentActionInput) []consoleSummaryLine {
	lines := make([]consoleSummaryLine, 0, 5)
	if incident, ok := ws.incidents.Store().Find(id); ok {
		lines = append(lines,
			consoleSummaryLine{Label: consoleText(lang, "field_title"), Value: incident.Title},
			consoleSummaryLine{Label: consoleText(lang, "field_barangay"), Value: incident.Barangay},
		)
	}
	lines = append(lines, consoleSummaryLine{Label: consoleText(lang, "field_current_status"), Value: consoleStatusLabel(lang, input.Current)})
	if input.Status != "" {
		lines = append(lines, consoleSummaryLine{Label: consoleText(lang, "field_new_status"), Value: consoleStatusLabel(lang, input.Status)})
	}
	if input.Reason != "" {
		lines = append(lines, consoleSummaryLine{Label: consoleText(lang, "field_reason"), Value: input.Reason})
	}
	return lines
}

func reasonField(lang, name, value string, minimum int) consoleFormFieldView {
	return consoleFormFieldView{
		Name:      name,
		Label:     consoleText(lang, "field_"+name),
		Kind:      "textarea",
		Value:     value,
		Required:  true,
		MinLength: minimum,
		Hint:      consoleMinLengthHint(lang, minimum),
	}
}

func (a *App) incidentStatusFlow() flowScreen[incidentActionInput] {
	minimum := a.cfg.Settings.Reasons.StatusRemarksMin
	return flowScreen[incidentActionInput]{
		headingKey: "page_title_status",
		confirmKey: "confirm_status_body",
		nav:        screenIncidents,
		returnPath: consoleIncidentsReturn,
		flow:       func(ws *workspace) *listview.Flow[incidentActionInput] { return ws.statusFlow },
		target:     incidentTarget,
		open:       openIncidentAction,
		fields: func(lang string, input incidentActionInput) []consoleFormFieldView {
			next := Incident{Status: input.Current}.NextStatuses()
			options := make([]consoleOptionView, 0, len(next))
			for _, status := range next {
				options = append(options, consoleOptionView{Value: status, Label: consoleStatusLabel(lang, status), Selected: status == input.Status})
			}
			return []consoleFormFieldView{
				{Name: "status", Label: consoleText(lang, "field_new_status"), Kind: "select", Value: input.Status, Options: options, Required: true},
				reasonField(lang, "remarks", input.Reason, minimum),
			}
		},
		bind: func(c *gin.Context, _ *workspace, current incidentActionInput) incidentActionInput {
			current.Status = strings.TrimSpace(c.PostForm("status"))
			current.Reason = strings.TrimSpace(c.PostForm("remarks"))
			return current
		},
		summary: incidentSummary,
		submit: func(ctx context.Context, ws *workspace, lang string, n listview.Notifier, target string, input incidentActionInput) error {
			return ws.incidents.Act(ctx, target, n, listview.Action[Incident]{
				Name: "update_status",
				Call: func(ctx context.Context, id string) (*Incident, error) {
					return a.consoleUpdateIncidentStatus(ctx, id, input.Status, input.Reason)
				},
				Patch: func(incident Incident) Incident {
					incident.Status = input.Status
					incident.Remarks = input.Reason
					return incident
				},
				SuccessMessage: consoleText(lang, "notice_status_updated"),
				FailureTitle:   consoleText(lang, "error_status_failed"),
			})
		},
	}
}

func (a *App) incidentArchiveFlow() flowScreen[incidentActionInput] {
	minimum := a.cfg.Settings.Reasons.ArchiveMin
	return a.archiveToggleFlow(archiveToggle{
		headingKey: "page_title_archive",
		confirmKey: "confirm_archive_body",
		action:     "archive",
		archived:   true,
		minimum:    minimum,
		call:       func(ctx context.Context, id, reason string) (*Incident, error) { return a.consoleArchiveIncident(ctx, id, reason) },
		successKey: "notice_incident_archived",
		failureKey: "error_archive_failed",
		flow:       func(ws *workspace) *listview.Flow[incidentActionInput] { return ws.archiveFlow },
	})
}

func (a *App) incidentUnarchiveFlow() flowScreen[incidentActionInput] {
	minimum := a.cfg.Settings.Reasons.UnarchiveMin
	return a.archiveToggleFlow(archiveToggle{
		headingKey: "page_title_unarchive",
		confirmKey: "confirm_unarchive_body",
		action:     "unarchive",
		archived:   false,
		minimum:    minimum,
		call:       func(ctx context.Context, id, reason string) (*Incident, error) { return a.consoleUnarchiveIncident(ctx, id, reason) },
		successKey: "notice_incident_unarchived",
		failureKey: "error_unarchive_failed",
		flow:       func(ws *workspace) *listview.Flow[incidentActionInput] { return ws.unarchiveFlow },
	})
}

// archiveToggle parameterizes the archive and unarchive flows, which differ
// only in direction and texts.
type archiveToggle struct {
	headingKey string
	confirmKey string
	action     string
	archived   bool
	minimum    int
	call       func(ctx context.Context, id, reason string) (*Incident, error)
	successKey string
	failureKey string
	flow       func(ws *workspace) *listview.Flow[incidentActionInput]
}

func (a *App) archiveToggleFlow(toggle archiveToggle) flowScreen[incidentActionInput] {
	return flowScreen[incidentActionInput]{
		headingKey: toggle.headingKey,
		confirmKey: toggle.confirmKey,
		nav:        screenIncidents,
		returnPath: consoleIncidentsReturn,
		flow:       toggle.flow,
		target:     incidentTarget,
		open:       openIncidentAction,
		fields: func(lang string, input incidentActionInput) []consoleFormFieldView {
			return []consoleFormFieldView{reasonField(lang, "reason", input.Reason, toggle.minimum)}
		},
		bind: func(c *gin.Context, _ *workspace, current incidentActionInput) incidentActionInput {
			current.Reason = strings.TrimSpace(c.PostForm("reason"))
			return current
		},
		summary: incidentSummary,
		submit: func(ctx context.Context, ws *workspace, lang string, n listview.Notifier, target string, input incidentActionInput) error {
			return ws.incidents.Act(ctx, target, n, listview.Action[Incident]{
				Name: toggle.action,
				Call: func(ctx context.Context, id string) (*Incident, error) {
					return toggle.call(ctx, id, input.Reason)
				},
				Patch: func(incident Incident) Incident {
					incident.IsArchived = toggle.archived
					if toggle.archived {
						incident.ArchiveReason = input.Reason
					} else {
						incident.ArchiveReason = ""
					}
					return incident
				},
				SuccessMessage: consoleText(lang, toggle.successKey),
				FailureTitle:   consoleText(lang, toggle.failureKey),
			})
		},
	}
}
