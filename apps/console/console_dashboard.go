package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"brims/libs/listview"

	"github.com/gin-gonic/gin"
)

const (
	consoleProfilePath   = "/console/profile"
	consoleProfileTarget = "profile"
)

func (a *App) consoleAnalyticsPageHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	ctx := c.Request.Context()
	data := consoleAnalyticsViewData{consoleBaseViewData: a.consoleBaseData(c, "page_title_analytics", screenAnalytics)}

	refresh := c.Query(listParamReload) == "1"
	for _, load := range []func(context.Context) error{
		loaderFor(ws.incidents, refresh),
		loaderFor(ws.population, refresh),
	} {
		if err := load(ctx); err != nil {
			a.log.Warn("load analytics source failed", "workspace", ws.id, "error", err)
			data.Partial = true
		}
	}

	summary := buildAnalytics(ws.incidents.Store().Snapshot(), ws.population.Store().Snapshot())
	data.Summary = summary
	data.StatusRows = countRows(summary.ByStatus, summary.TotalIncidents, func(label string) string {
		return consoleStatusLabel(lang, label)
	})
	data.TypeRows = countRows(summary.ByType, summary.TotalIncidents, nil)
	data.BarangayRows = countRows(summary.ByBarangay, summary.TotalIncidents, nil)
	data.TrendRows = countRows(summary.MonthlyTrend, summary.TotalIncidents, nil)

	if a.journal != nil {
		entries, err := a.journal.Recent(ctx, consoleRecentActionsOnDashboard)
		if err != nil {
			a.log.Warn("read action journal failed", "error", err)
		}
		for _, entry := range entries {
			data.Recent = append(data.Recent, consoleJournalRowView{
				When:    entry.CreatedAt.Local().Format(consoleDisplayTimestampLayout),
				Screen:  entry.Screen,
				Action:  entry.Action,
				Targets: len(entry.Targets),
				Outcome: consoleText(lang, "outcome_"+entry.Outcome),
				Failed:  entry.Outcome != journalOutcomeSucceeded,
			})
		}
	}
	if data.Partial && data.AlertBody == "" {
		data.consoleBaseViewData = withAlert(data.consoleBaseViewData, consoleText(lang, "error_load_failed"), consoleText(lang, "analytics_partial"))
	}

	a.renderConsoleTemplate(c, http.StatusOK, consoleTemplateAnalyticsPath, data)
}

type loadable interface {
	Refresh(ctx context.Context) error
	EnsureLoaded(ctx context.Context) error
}

func loaderFor(source loadable, refresh bool) func(context.Context) error {
	if refresh {
		return source.Refresh
	}
	return source.EnsureLoaded
}

// countRows converts counts to table rows with their share of total in whole
// percent.
func countRows(entries []countEntry, total int, label func(string) string) []consoleCountRowView {
	rows := make([]consoleCountRowView, 0, len(entries))
	for _, entry := range entries {
		row := consoleCountRowView{Label: entry.Label, Count: entry.Count}
		if label != nil {
			row.Label = label(entry.Label)
		}
		if total > 0 {
			row.Percent = entry.Count * 100 / total
		}
		rows = append(rows, row)
	}
	return rows
}

func (a *App) consoleProfilePageHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	data := consoleProfileViewData{
		consoleBaseViewData: a.consoleBaseData(c, "page_title_profile", screenProfile),
		ReturnPath:          consoleProfilePath,
		Disabled:            ws.gate.Disabled(consoleProfileTarget),
	}

	profile, err := a.consoleGetProfile(c.Request.Context())
	if err != nil {
		a.log.Warn("load profile failed", "workspace", ws.id, "error", err)
		data.consoleBaseViewData = withAlert(data.consoleBaseViewData, consoleText(lang, "error_load_failed"), normalizeConsoleErrorMessage(err, lang, "error_generic"))
	} else if profile != nil {
		data.Profile = *profile
		data.Loaded = true
	}
	a.renderConsoleTemplate(c, http.StatusOK, consoleTemplateProfilePath, data)
}

func bindProfile(c *gin.Context) Profile {
	return Profile{
		FirstName: strings.TrimSpace(c.PostForm("first_name")),
		LastName:  strings.TrimSpace(c.PostForm("last_name")),
		Email:     strings.TrimSpace(c.PostForm("email")),
		Phone:     strings.TrimSpace(c.PostForm("phone")),
		Position:  strings.TrimSpace(c.PostForm("position")),
		Barangay:  strings.TrimSpace(c.PostForm("barangay")),
	}
}

func validateProfile(profile Profile) error {
	if err := listview.FirstError(
		listview.Required("first_name", profile.FirstName),
		listview.Required("last_name", profile.LastName),
		listview.Required("email", profile.Email),
	); err != nil {
		return err
	}
	if !strings.Contains(profile.Email, "@") {
		return &listview.ValidationError{Field: "email", Message: "must contain @"}
	}
	return nil
}

// consoleProfileSubmitHandler saves the profile inside a gate session so it
// is serialized with every other action of the workspace.
func (a *App) consoleProfileSubmitHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	profile := bindProfile(c)

	if err := validateProfile(profile); err != nil {
		data := consoleProfileViewData{
			consoleBaseViewData: a.consoleBaseData(c, "page_title_profile", screenProfile),
			Profile:             profile,
			Loaded:              true,
			ReturnPath:          consoleProfilePath,
		}
		data.Flashes = append(data.Flashes, consoleFlashView{Level: string(listview.LevelWarning), Message: consoleValidationMessage(lang, err)})
		a.renderConsoleTemplate(c, http.StatusUnprocessableEntity, consoleTemplateProfilePath, data)
		return
	}

	started := time.Now()
	err := ws.gate.Do(c.Request.Context(), consoleProfileTarget, func(ctx context.Context) error {
		_, err := a.consoleUpdateProfile(ctx, profile)
		return err
	})
	outcome := listview.Outcome{Screen: screenProfile, Action: "update_profile", Targets: []string{consoleProfileTarget}, Err: err, Duration: time.Since(started)}

	switch {
	case err == nil:
		a.recordOutcome(ws.id, outcome)
		redirectConsoleWithMessage(c, consoleProfilePath, listview.LevelSuccess, consoleText(lang, "notice_profile_updated"))
	case errors.Is(err, listview.ErrBusy):
		outcome.Denied = true
		a.recordOutcome(ws.id, outcome)
		redirectConsoleWithMessage(c, consoleProfilePath, listview.LevelWarning, consoleText(lang, "flash_busy"))
	default:
		outcome.Failed = outcome.Targets
		a.recordOutcome(ws.id, outcome)
		redirectConsoleWithAlert(c, consoleProfilePath, consoleText(lang, "error_profile_failed"), normalizeConsoleErrorMessage(err, lang, "error_generic"))
	}
}
