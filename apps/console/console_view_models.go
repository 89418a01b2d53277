package main

import (
	"fmt"
	"time"

	"brims/libs/listview"
)

const (
	consoleLanguageCookieName       = "brims_console_language"
	consoleDefaultLanguage          = "en"
	consoleLanguageCookieMaxAge     = 180 * 24 * time.Hour
	consoleDisplayTimestampLayout   = "2006-01-02 15:04"
	consoleTemplateApprovalsPath    = "templates/console/approvals.tmpl"
	consoleTemplateIncidentsPath    = "templates/console/incidents.tmpl"
	consoleTemplatePopulationPath   = "templates/console/population.tmpl"
	consoleTemplateAffectedPath     = "templates/console/affected.tmpl"
	consoleTemplateAnalyticsPath    = "templates/console/analytics.tmpl"
	consoleTemplateProfilePath      = "templates/console/profile.tmpl"
	consoleTemplateFlowFormPath     = "templates/console/flow_form.tmpl"
	consoleTemplateFlowConfirmPath  = "templates/console/confirm.tmpl"
	consoleTemplateLayoutPath       = "templates/console/layout.tmpl"
	consoleTemplatePartialsPath     = "templates/console/partials.tmpl"
	consoleRecentActionsOnDashboard = recentJournalEntries
)

var consoleTranslations = map[string]map[string]string{
	"en": {
		"app_title":                  "BRIMS Console",
		"language_label":             "Language",
		"language_apply":             "Change",
		"language_en":                "English",
		"language_fil":               "Filipino",
		"nav_analytics":              "Dashboard",
		"nav_approvals":              "Approvals",
		"nav_incidents":              "Incidents",
		"nav_population":             "Population",
		"nav_profile":                "Profile",
		"busy_banner":                "An action is in progress. Action buttons are disabled until it finishes.",
		"alert_close":                "Close",
		"page_title_analytics":       "Dashboard",
		"page_title_approvals":       "Pending approvals",
		"page_title_incidents":       "Incident management",
		"page_title_population":      "Population overview",
		"page_title_affected":        "Affected population",
		"page_title_profile":         "My profile",
		"page_title_reject":          "Reject registration",
		"page_title_bulk_approve":    "Approve registrations",
		"page_title_status":          "Update incident status",
		"page_title_archive":         "Archive incident",
		"page_title_unarchive":       "Restore incident",
		"page_title_population_new":  "Record affected population",
		"list_search_placeholder":    "Search",
		"list_apply":                 "Apply",
		"list_reset":                 "Reset",
		"list_all":                   "All",
		"list_per_page":              "Per page",
		"list_showing":               "Showing",
		"list_of":                    "of",
		"list_empty":                 "No records match the current filters.",
		"list_prev":                  "Previous",
		"list_next":                  "Next",
		"list_reload":                "Reload",
		"list_fetched":               "Last loaded",
		"list_actions":               "Actions",
		"list_select":                "Select",
		"field_name":                 "Name",
		"field_email":                "Email",
		"field_role":                 "Role",
		"field_position":             "Position",
		"field_barangay":             "Barangay",
		"field_registered":           "Registered",
		"field_title":                "Title",
		"field_type":                 "Type",
		"field_status":               "Status",
		"field_severity":             "Severity",
		"field_reported":             "Reported",
		"field_location":             "Location",
		"field_reporter":             "Reporter",
		"field_archive":              "Archive",
		"field_incident":             "Incident",
		"field_families":             "Families",
		"field_individuals":          "Individuals",
		"field_male":                 "Male",
		"field_female":               "Female",
		"field_children":             "Children",
		"field_seniors":              "Seniors",
		"field_pwd":                  "PWD",
		"field_recorded":             "Recorded",
		"field_evacuation_center":    "Evacuation center",
		"field_reason":               "Reason",
		"field_remarks":              "Remarks",
		"field_ids":                  "Selection",
		"field_first_name":           "First name",
		"field_last_name":            "Last name",
		"field_phone":                "Phone",
		"field_current_status":       "Current status",
		"field_new_status":           "New status",
		"field_count":                "Records",
		"status_reported":            "Reported",
		"status_investigating":       "Investigating",
		"status_resolved":            "Resolved",
		"status_unknown":             "Unknown",
		"archive_active":             "Active",
		"archive_archived":           "Archived",
		"action_approve":             "Approve",
		"action_reject":              "Reject",
		"action_bulk_approve":        "Approve selected",
		"action_bulk_approve_page":   "Approve this page",
		"action_update_status":       "Update status",
		"action_archive":             "Archive",
		"action_unarchive":           "Restore",
		"action_affected":            "Affected population",
		"action_add_population":      "Record population",
		"action_export_csv":          "Export CSV",
		"action_export_pdf":          "Export PDF",
		"action_export_email":        "Email export",
		"action_continue":            "Continue",
		"action_confirm":             "Confirm",
		"action_back":                "Back",
		"action_cancel":              "Cancel",
		"action_save":                "Save",
		"hint_min_length":            "At least %d characters.",
		"hint_population":            "Male and female must add up to individuals.",
		"confirm_title":              "Please confirm",
		"confirm_reject_body":        "Reject this registration? The applicant will not be able to sign in.",
		"confirm_bulk_body":          "Approve every selected registration?",
		"confirm_status_body":        "Change the status of this incident?",
		"confirm_archive_body":       "Archive this incident? It will be hidden from the active list.",
		"confirm_unarchive_body":     "Restore this incident to the active list?",
		"confirm_population_body":    "Record this affected population entry?",
		"notice_user_approved":       "Registration approved.",
		"notice_user_rejected":       "Registration rejected.",
		"notice_status_updated":      "Incident status updated.",
		"notice_incident_archived":   "Incident archived.",
		"notice_incident_unarchived": "Incident restored.",
		"notice_population_added":    "Population entry recorded.",
		"notice_profile_updated":     "Profile updated.",
		"notice_export_emailed":      "Export sent to %s.",
		"error_approve_failed":       "Approval failed",
		"error_reject_failed":        "Rejection failed",
		"error_status_failed":        "Status update failed",
		"error_archive_failed":       "Archiving failed",
		"error_unarchive_failed":     "Restoring failed",
		"error_population_failed":    "Saving population failed",
		"error_profile_failed":       "Saving profile failed",
		"error_load_failed":          "Loading failed",
		"error_export_failed":        "Export failed",
		"error_generic":              "The request failed. Please try again.",
		"error_flow_expired":         "This form is no longer open. Start the action again.",
		"error_not_found":            "The record was not found. Reload the list and try again.",
		"error_invalid_email":        "must be a valid email address.",
		"flash_busy":                 "Another action is still in progress. Please wait.",
		"flash_nothing_selected":     "Select at least one record first.",
		"flash_refresh_failed":       "The list could not be reloaded.",
		"flash_batch_failed":         "%d of %d requests failed. The list was reloaded.",
		"flash_batch_succeeded":      "%d records updated.",
		"analytics_total":            "Incidents",
		"analytics_active":           "Active",
		"analytics_archived":         "Archived",
		"analytics_resolved":         "Resolved",
		"analytics_by_status":        "By status",
		"analytics_by_type":          "By type",
		"analytics_by_barangay":      "By barangay",
		"analytics_trend":            "Reported per month",
		"analytics_families":         "Affected families",
		"analytics_individuals":      "Affected individuals",
		"analytics_recent":           "Recent actions",
		"analytics_no_actions":       "No actions recorded yet.",
		"analytics_partial":          "Some figures could not be loaded.",
		"outcome_succeeded":          "Succeeded",
		"outcome_failed":             "Failed",
		"outcome_denied":             "Denied",
		"profile_intro":              "These details are shown to other staff members.",
	},
	"fil": {
		"app_title":                  "BRIMS Console",
		"language_label":             "Wika",
		"language_apply":             "Palitan",
		"language_en":                "English",
		"language_fil":               "Filipino",
		"nav_analytics":              "Dashboard",
		"nav_approvals":              "Mga pag-apruba",
		"nav_incidents":              "Mga insidente",
		"nav_population":             "Populasyon",
		"nav_profile":                "Profile",
		"busy_banner":                "May isinasagawang aksyon. Hindi muna magagamit ang mga button hanggang matapos ito.",
		"alert_close":                "Isara",
		"page_title_analytics":       "Dashboard",
		"page_title_approvals":       "Naghihintay ng pag-apruba",
		"page_title_incidents":       "Pamamahala ng insidente",
		"page_title_population":      "Buod ng populasyon",
		"page_title_affected":        "Apektadong populasyon",
		"page_title_profile":         "Aking profile",
		"page_title_reject":          "Tanggihan ang pagpaparehistro",
		"page_title_bulk_approve":    "Aprubahan ang mga pagpaparehistro",
		"page_title_status":          "Baguhin ang status ng insidente",
		"page_title_archive":         "I-archive ang insidente",
		"page_title_unarchive":       "Ibalik ang insidente",
		"page_title_population_new":  "Itala ang apektadong populasyon",
		"list_search_placeholder":    "Maghanap",
		"list_apply":                 "Ilapat",
		"list_reset":                 "I-reset",
		"list_all":                   "Lahat",
		"list_per_page":              "Bawat pahina",
		"list_showing":               "Ipinapakita",
		"list_of":                    "sa",
		"list_empty":                 "Walang tala na tugma sa mga filter.",
		"list_prev":                  "Nakaraan",
		"list_next":                  "Susunod",
		"list_reload":                "I-reload",
		"list_fetched":               "Huling na-load",
		"list_actions":               "Mga aksyon",
		"list_select":                "Piliin",
		"field_name":                 "Pangalan",
		"field_email":                "Email",
		"field_role":                 "Tungkulin",
		"field_position":             "Posisyon",
		"field_barangay":             "Barangay",
		"field_registered":           "Nagparehistro",
		"field_title":                "Pamagat",
		"field_type":                 "Uri",
		"field_status":               "Status",
		"field_severity":             "Kalubhaan",
		"field_reported":             "Iniulat",
		"field_location":             "Lokasyon",
		"field_reporter":             "Nag-ulat",
		"field_archive":              "Archive",
		"field_incident":             "Insidente",
		"field_families":             "Pamilya",
		"field_individuals":          "Indibidwal",
		"field_male":                 "Lalaki",
		"field_female":               "Babae",
		"field_children":             "Bata",
		"field_seniors":              "Senior",
		"field_pwd":                  "PWD",
		"field_recorded":             "Naitala",
		"field_evacuation_center":    "Evacuation center",
		"field_reason":               "Dahilan",
		"field_remarks":              "Puna",
		"field_ids":                  "Napili",
		"field_first_name":           "Pangalan",
		"field_last_name":            "Apelyido",
		"field_phone":                "Telepono",
		"field_current_status":       "Kasalukuyang status",
		"field_new_status":           "Bagong status",
		"field_count":                "Mga tala",
		"status_reported":            "Iniulat",
		"status_investigating":       "Sinisiyasat",
		"status_resolved":            "Nalutas",
		"status_unknown":             "Hindi alam",
		"archive_active":             "Aktibo",
		"archive_archived":           "Naka-archive",
		"action_approve":             "Aprubahan",
		"action_reject":              "Tanggihan",
		"action_bulk_approve":        "Aprubahan ang napili",
		"action_bulk_approve_page":   "Aprubahan ang pahinang ito",
		"action_update_status":       "Baguhin ang status",
		"action_archive":             "I-archive",
		"action_unarchive":           "Ibalik",
		"action_affected":            "Apektadong populasyon",
		"action_add_population":      "Magtala ng populasyon",
		"action_export_csv":          "I-export CSV",
		"action_export_pdf":          "I-export PDF",
		"action_export_email":        "I-email ang export",
		"action_continue":            "Magpatuloy",
		"action_confirm":             "Kumpirmahin",
		"action_back":                "Bumalik",
		"action_cancel":              "Kanselahin",
		"action_save":                "I-save",
		"hint_min_length":            "Hindi bababa sa %d na karakter.",
		"hint_population":            "Dapat magkasing-dami ang lalaki at babae sa kabuuang indibidwal.",
		"confirm_title":              "Pakikumpirma",
		"confirm_reject_body":        "Tanggihan ang pagpaparehistrong ito? Hindi na makakapag-sign in ang aplikante.",
		"confirm_bulk_body":          "Aprubahan ang lahat ng napiling pagpaparehistro?",
		"confirm_status_body":        "Baguhin ang status ng insidenteng ito?",
		"confirm_archive_body":       "I-archive ang insidenteng ito? Hindi na ito makikita sa aktibong listahan.",
		"confirm_unarchive_body":     "Ibalik ang insidenteng ito sa aktibong listahan?",
		"confirm_population_body":    "Itala ang apektadong populasyong ito?",
		"notice_user_approved":       "Naaprubahan ang pagpaparehistro.",
		"notice_user_rejected":       "Tinanggihan ang pagpaparehistro.",
		"notice_status_updated":      "Nabago ang status ng insidente.",
		"notice_incident_archived":   "Na-archive ang insidente.",
		"notice_incident_unarchived": "Naibalik ang insidente.",
		"notice_population_added":    "Naitala ang populasyon.",
		"notice_profile_updated":     "Na-update ang profile.",
		"notice_export_emailed":      "Naipadala ang export kay %s.",
		"error_approve_failed":       "Hindi naaprubahan",
		"error_reject_failed":        "Hindi natanggihan",
		"error_status_failed":        "Hindi nabago ang status",
		"error_archive_failed":       "Hindi na-archive",
		"error_unarchive_failed":     "Hindi naibalik",
		"error_population_failed":    "Hindi naitala ang populasyon",
		"error_profile_failed":       "Hindi na-save ang profile",
		"error_load_failed":          "Hindi na-load",
		"error_export_failed":        "Hindi na-export",
		"error_generic":              "Nabigo ang kahilingan. Pakisubukang muli.",
		"error_flow_expired":         "Hindi na bukas ang form na ito. Simulan muli ang aksyon.",
		"error_not_found":            "Hindi nahanap ang tala. I-reload ang listahan at subukang muli.",
		"error_invalid_email":        "ay dapat wastong email address.",
		"flash_busy":                 "May isinasagawa pang aksyon. Pakihintay.",
		"flash_nothing_selected":     "Pumili muna ng kahit isang tala.",
		"flash_refresh_failed":       "Hindi na-reload ang listahan.",
		"flash_batch_failed":         "%d sa %d na kahilingan ang nabigo. Na-reload ang listahan.",
		"flash_batch_succeeded":      "%d na tala ang na-update.",
		"analytics_total":            "Mga insidente",
		"analytics_active":           "Aktibo",
		"analytics_archived":         "Naka-archive",
		"analytics_resolved":         "Nalutas",
		"analytics_by_status":        "Ayon sa status",
		"analytics_by_type":          "Ayon sa uri",
		"analytics_by_barangay":      "Ayon sa barangay",
		"analytics_trend":            "Iniulat bawat buwan",
		"analytics_families":         "Apektadong pamilya",
		"analytics_individuals":      "Apektadong indibidwal",
		"analytics_recent":           "Mga huling aksyon",
		"analytics_no_actions":       "Wala pang naitalang aksyon.",
		"analytics_partial":          "May mga bilang na hindi na-load.",
		"outcome_succeeded":          "Tagumpay",
		"outcome_failed":             "Nabigo",
		"outcome_denied":             "Tinanggihan",
		"profile_intro":              "Makikita ng ibang kawani ang mga detalyeng ito.",
	},
}

// consoleListMessages are the controller notices in lang.
func consoleListMessages(lang string) listview.Messages {
	return listview.Messages{
		Busy:           consoleText(lang, "flash_busy"),
		NothingToDo:    consoleText(lang, "flash_nothing_selected"),
		GenericFailure: consoleText(lang, "error_generic"),
		RefreshFailed:  consoleText(lang, "flash_refresh_failed"),
		BatchFailed:    consoleText(lang, "flash_batch_failed"),
		BatchSucceeded: consoleText(lang, "flash_batch_succeeded"),
	}
}

type consoleFlashView struct {
	Level   string
	Message string
}

type consoleBaseViewData struct {
	Title       string
	Lang        string
	Text        map[string]string
	CurrentPath string
	ActiveNav   string
	Flashes     []consoleFlashView
	AlertTitle  string
	AlertBody   string
	AlertLevel  string
	Busy        bool
}

type consoleOptionView struct {
	Value    string
	Label    string
	Selected bool
}

type consoleFilterView struct {
	Name    string
	Label   string
	Options []consoleOptionView
}

type consoleHiddenField struct {
	Name  string
	Value string
}

type consoleSortHeaderView struct {
	Label     string
	URL       string
	Active    bool
	Direction string
}

type consolePageLinkView struct {
	Number   int
	URL      string
	Current  bool
	Ellipsis bool
}

type consolePaginationView struct {
	Links       []consolePageLinkView
	PrevURL     string
	NextURL     string
	HasPrev     bool
	HasNext     bool
	CurrentPage int
	TotalPages  int
	Total       int
	Start       int
	End         int
}

type consolePerPageView struct {
	Value    int
	URL      string
	Selected bool
}

type consoleListControlsView struct {
	ActionPath      string
	Search          string
	Filters         []consoleFilterView
	Hidden          []consoleHiddenField
	Headers         []consoleSortHeaderView
	Pagination      consolePaginationView
	PerPage         []consolePerPageView
	ReturnPath      string
	ReloadURL       string
	ActionsDisabled bool
	Empty           bool
	FetchedAt       string
}

type consoleApprovalRowView struct {
	ID         string
	Name       string
	Email      string
	Role       string
	Position   string
	Barangay   string
	Registered string
	ApproveURL string
	RejectURL  string
}

type consoleApprovalsViewData struct {
	consoleBaseViewData
	List     consoleListControlsView
	Rows     []consoleApprovalRowView
	BulkPath string
}

type consoleIncidentRowView struct {
	ID           string
	Title        string
	Type         string
	Barangay     string
	Location     string
	Reporter     string
	Severity     string
	StatusLabel  string
	Reported     string
	Archived     bool
	ArchiveLabel string
	StatusURL    string
	ArchiveURL   string
	UnarchiveURL string
	AffectedURL  string
}

type consoleIncidentsViewData struct {
	consoleBaseViewData
	List            consoleListControlsView
	Rows            []consoleIncidentRowView
	ExportCSVURL    string
	ExportPDFURL    string
	ExportEmailPath string
	ExportQuery     []consoleHiddenField
	ExportEmailTo   string
}

type consolePopulationRowView struct {
	IncidentTitle    string
	Barangay         string
	EvacuationCenter string
	Families         int
	Individuals      int
	Male             int
	Female           int
	Children         int
	Seniors          int
	PWD              int
	Recorded         string
	AffectedURL      string
}

type consolePopulationViewData struct {
	consoleBaseViewData
	List             consoleListControlsView
	Rows             []consolePopulationRowView
	TotalFamilies    int
	TotalIndividuals int
}

type consoleAffectedViewData struct {
	consoleBaseViewData
	List          consoleListControlsView
	Rows          []consolePopulationRowView
	IncidentTitle string
	AddURL        string
	BackURL       string
}

type consoleFormFieldView struct {
	Name      string
	Label     string
	Kind      string
	Value     string
	Options   []consoleOptionView
	Required  bool
	MinLength int
	Hint      string
}

type consoleSummaryLine struct {
	Label string
	Value string
}

type consoleFlowFormViewData struct {
	consoleBaseViewData
	Heading    string
	Summary    []consoleSummaryLine
	ActionURL  string
	Fields     []consoleFormFieldView
	ReturnPath string
	Disabled   bool
}

type consoleConfirmViewData struct {
	consoleBaseViewData
	Heading    string
	Body       string
	Lines      []consoleSummaryLine
	ActionURL  string
	ReturnPath string
	Disabled   bool
}

type consoleCountRowView struct {
	Label   string
	Count   int
	Percent int
}

type consoleCountTableView struct {
	Heading string
	Rows    []consoleCountRowView
}

type consoleJournalRowView struct {
	When    string
	Screen  string
	Action  string
	Targets int
	Outcome string
	Failed  bool
}

type consoleAnalyticsViewData struct {
	consoleBaseViewData
	Summary      consoleAnalytics
	StatusRows   []consoleCountRowView
	TypeRows     []consoleCountRowView
	BarangayRows []consoleCountRowView
	TrendRows    []consoleCountRowView
	Recent       []consoleJournalRowView
	Partial      bool
}

type consoleProfileViewData struct {
	consoleBaseViewData
	Profile    Profile
	Loaded     bool
	Disabled   bool
	ReturnPath string
}

func consoleStatusLabel(lang, status string) string {
	if label, ok := lookupConsoleText(lang, "status_"+labelOrUnknown(status)); ok {
		return label
	}
	return status
}

func consoleArchiveLabel(lang, state string) string {
	return consoleText(lang, "archive_"+state)
}

func consoleMinLengthHint(lang string, minimum int) string {
	return fmt.Sprintf(consoleText(lang, "hint_min_length"), minimum)
}

// consoleDisplayTime formats backend timestamps; unparseable input is shown
// as received.
func consoleDisplayTime(raw string) string {
	if instant, ok := listview.Date(raw).Instant(); ok {
		return instant.Format(consoleDisplayTimestampLayout)
	}
	return raw
}
