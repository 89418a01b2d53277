package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"brims/libs/listview"

	"github.com/gin-gonic/gin"
)

const consolePopulationPath = "/console/population"

func populationRows(records []PopulationRecord) []consolePopulationRowView {
	rows := make([]consolePopulationRowView, 0, len(records))
	for _, record := range records {
		row := consolePopulationRowView{
			IncidentTitle:    record.IncidentTitle,
			Barangay:         record.Barangay,
			EvacuationCenter: record.EvacuationCenter,
			Families:         record.Families,
			Individuals:      record.Individuals,
			Male:             record.Male,
			Female:           record.Female,
			Children:         record.Children,
			Seniors:          record.Seniors,
			PWD:              record.PWD,
			Recorded:         consoleDisplayTime(record.RecordedAt),
		}
		if id := record.IncidentID.String(); id != "" {
			row.AffectedURL = affectedPath(id)
		}
		rows = append(rows, row)
	}
	return rows
}

func affectedPath(incidentID string) string {
	return consoleIncidentsPath + "/" + incidentID + "/affected"
}

func (a *App) consolePopulationPageHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	base := a.consoleBaseData(c, "page_title_population", screenPopulation)

	if err := loadListRequest(c, ws.population, populationCategories); err != nil {
		a.log.Warn("load population failed", "workspace", ws.id, "error", err)
		base = withAlert(base, consoleText(lang, "error_load_failed"), normalizeConsoleErrorMessage(err, lang, "error_generic"))
	}

	view := ws.population.View()
	data := consolePopulationViewData{
		consoleBaseViewData: base,
		List:                buildListControls(lang, consolePopulationPath, view, ws.population.Store().Snapshot(), populationSchema(), populationCategories, populationColumns),
		Rows:                populationRows(view.Items),
	}
	for _, record := range ws.population.Derived() {
		data.TotalFamilies += record.Families
		data.TotalIndividuals += record.Individuals
	}
	a.renderConsoleTemplate(c, http.StatusOK, consoleTemplatePopulationPath, data)
}

func (a *App) consoleAffectedPageHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	incidentID := incidentTarget(c)
	controller := ws.affectedFor(incidentID)
	path := affectedPath(incidentID)
	base := a.consoleBaseData(c, "page_title_affected", screenIncidents)

	if err := loadListRequest(c, controller, affectedCategories); err != nil {
		if isBackendStatus(err, http.StatusNotFound) {
			redirectConsoleWithMessage(c, consoleIncidentsPath, listview.LevelWarning, consoleText(lang, "error_not_found"))
			return
		}
		a.log.Warn("load affected population failed", "workspace", ws.id, "incident", incidentID, "error", err)
		base = withAlert(base, consoleText(lang, "error_load_failed"), normalizeConsoleErrorMessage(err, lang, "error_generic"))
	}

	view := controller.View()
	list := buildListControls(lang, path, view, controller.Store().Snapshot(), affectedSchema(), affectedCategories, affectedColumns)
	a.renderConsoleTemplate(c, http.StatusOK, consoleTemplateAffectedPath, consoleAffectedViewData{
		consoleBaseViewData: base,
		List:                list,
		Rows:                populationRows(view.Items),
		IncidentTitle:       incidentTitle(ws, incidentID, controller.Store().Snapshot()),
		AddURL:              withReturn(path+"/new", list.ReturnPath),
		BackURL:             consoleIncidentsPath,
	})
}

// incidentTitle names an incident from the incident screen, falling back to
// its population records and then to the identifier.
func incidentTitle(ws *workspace, incidentID string, records []PopulationRecord) string {
	if incident, ok := ws.incidents.Store().Find(incidentID); ok && incident.Title != "" {
		return incident.Title
	}
	for _, record := range records {
		if record.IncidentTitle != "" {
			return record.IncidentTitle
		}
	}
	return incidentID
}

// parseCount reads a non-negative count. Blank is zero; anything else that
// is not a number becomes -1 so that validation rejects it.
func parseCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}

func countField(lang, name string, value int) consoleFormFieldView {
	field := consoleFormFieldView{Name: name, Label: consoleText(lang, "field_"+name), Kind: "number", Required: true}
	if value != 0 {
		field.Value = strconv.Itoa(value)
	}
	return field
}

func (a *App) populationEntryFlow() flowScreen[PopulationEntry] {
	return flowScreen[PopulationEntry]{
		headingKey: "page_title_population_new",
		confirmKey: "confirm_population_body",
		nav:        screenIncidents,
		returnPath: func(c *gin.Context) string { return affectedPath(incidentTarget(c)) },
		flow:       func(ws *workspace) *listview.Flow[PopulationEntry] { return ws.populationFlow },
		target:     incidentTarget,
		open: func(c *gin.Context, ws *workspace, target string) (PopulationEntry, error) {
			entry := PopulationEntry{}
			if incident, ok := ws.incidents.Store().Find(target); ok {
				entry.Barangay = incident.Barangay
			}
			return entry, nil
		},
		fields: func(lang string, entry PopulationEntry) []consoleFormFieldView {
			return []consoleFormFieldView{
				{Name: "barangay", Label: consoleText(lang, "field_barangay"), Kind: "text", Value: entry.Barangay, Required: true},
				{Name: "evacuation_center", Label: consoleText(lang, "field_evacuation_center"), Kind: "text", Value: entry.EvacuationCenter},
				countField(lang, "families", entry.Families),
				countField(lang, "individuals", entry.Individuals),
				withHint(countField(lang, "male", entry.Male), consoleText(lang, "hint_population")),
				countField(lang, "female", entry.Female),
				countField(lang, "children", entry.Children),
				countField(lang, "seniors", entry.Seniors),
				countField(lang, "pwd", entry.PWD),
			}
		},
		bind: func(c *gin.Context, _ *workspace, _ PopulationEntry) PopulationEntry {
			return PopulationEntry{
				Barangay:         strings.TrimSpace(c.PostForm("barangay")),
				EvacuationCenter: strings.TrimSpace(c.PostForm("evacuation_center")),
				Families:         parseCount(c.PostForm("families")),
				Individuals:      parseCount(c.PostForm("individuals")),
				Male:             parseCount(c.PostForm("male")),
				Female:           parseCount(c.PostForm("female")),
				Children:         parseCount(c.PostForm("children")),
				Seniors:          parseCount(c.PostForm("seniors")),
				PWD:              parseCount(c.PostForm("pwd")),
			}
		},
		summary: func(lang string, ws *workspace, target string, entry PopulationEntry) []consoleSummaryLine {
			lines := []consoleSummaryLine{{Label: consoleText(lang, "field_incident"), Value: incidentTitle(ws, target, nil)}}
			if entry.Barangay == "" && entry.Families == 0 {
				return lines
			}
			return append(lines,
				consoleSummaryLine{Label: consoleText(lang, "field_barangay"), Value: entry.Barangay},
				consoleSummaryLine{Label: consoleText(lang, "field_evacuation_center"), Value: entry.EvacuationCenter},
				consoleSummaryLine{Label: consoleText(lang, "field_families"), Value: strconv.Itoa(entry.Families)},
				consoleSummaryLine{Label: consoleText(lang, "field_individuals"), Value: strconv.Itoa(entry.Individuals)},
				consoleSummaryLine{Label: consoleText(lang, "field_male") + " / " + consoleText(lang, "field_female"), Value: strconv.Itoa(entry.Male) + " / " + strconv.Itoa(entry.Female)},
				consoleSummaryLine{Label: consoleText(lang, "field_children"), Value: strconv.Itoa(entry.Children)},
				consoleSummaryLine{Label: consoleText(lang, "field_seniors"), Value: strconv.Itoa(entry.Seniors)},
				consoleSummaryLine{Label: consoleText(lang, "field_pwd"), Value: strconv.Itoa(entry.PWD)},
			)
		},
		submit: func(ctx context.Context, ws *workspace, lang string, n listview.Notifier, target string, entry PopulationEntry) error {
			// The new record is not a patch of an existing row; the
			// confirming refresh brings it in.
			err := ws.affectedFor(target).Act(ctx, target, n, listview.Action[PopulationRecord]{
				Name: "add_population",
				Call: func(ctx context.Context, incidentID string) (*PopulationRecord, error) {
					_, err := a.consoleAddIncidentPopulation(ctx, incidentID, entry)
					return nil, err
				},
				SuccessMessage: consoleText(lang, "notice_population_added"),
				FailureTitle:   consoleText(lang, "error_population_failed"),
			})
			if err == nil && ws.population.Store().Loaded() {
				if refreshErr := ws.population.Refresh(ctx); refreshErr != nil {
					n.Toast(listview.LevelWarning, consoleText(lang, "flash_refresh_failed"))
				}
			}
			return err
		},
	}
}

func withHint(field consoleFormFieldView, hint string) consoleFormFieldView {
	field.Hint = hint
	return field
}
