package main

import (
	"slices"
	"strings"

	"brims/libs/listview"
)

const (
	screenApprovals  = "approvals"
	screenIncidents  = "incidents"
	screenPopulation = "population"
	screenAffected   = "affected"
	screenAnalytics  = "analytics"
	screenProfile    = "profile"
)

// categoryField describes one filter dropdown. Fixed options are shown in
// order; otherwise the options are the distinct values of the collection.
type categoryField struct {
	Name     string
	LabelKey string
	Fixed    []string
}

// sortColumn is a sortable table header.
type sortColumn struct {
	Field    string
	LabelKey string
}

var (
	approvalsCategories = []categoryField{
		{Name: "role", LabelKey: "field_role"},
		{Name: "barangay", LabelKey: "field_barangay"},
	}
	approvalsColumns = []sortColumn{
		{Field: "name", LabelKey: "field_name"},
		{Field: "email", LabelKey: "field_email"},
		{Field: "barangay", LabelKey: "field_barangay"},
		{Field: "created_at", LabelKey: "field_registered"},
	}

	incidentsCategories = []categoryField{
		{Name: "status", LabelKey: "field_status", Fixed: incidentStatuses},
		{Name: "type", LabelKey: "field_type"},
		{Name: "barangay", LabelKey: "field_barangay"},
		{Name: "archive", LabelKey: "field_archive", Fixed: []string{archiveStateActive, archiveStateArchived}},
	}
	incidentsColumns = []sortColumn{
		{Field: "title", LabelKey: "field_title"},
		{Field: "type", LabelKey: "field_type"},
		{Field: "barangay", LabelKey: "field_barangay"},
		{Field: "severity", LabelKey: "field_severity"},
		{Field: "status", LabelKey: "field_status"},
		{Field: "reported_at", LabelKey: "field_reported"},
	}

	populationCategories = []categoryField{
		{Name: "barangay", LabelKey: "field_barangay"},
		{Name: "incident_type", LabelKey: "field_type"},
	}
	populationColumns = []sortColumn{
		{Field: "barangay", LabelKey: "field_barangay"},
		{Field: "families", LabelKey: "field_families"},
		{Field: "individuals", LabelKey: "field_individuals"},
		{Field: "recorded_at", LabelKey: "field_recorded"},
	}

	affectedCategories = []categoryField{
		{Name: "barangay", LabelKey: "field_barangay"},
	}
	affectedColumns = []sortColumn{
		{Field: "families", LabelKey: "field_families"},
		{Field: "individuals", LabelKey: "field_individuals"},
		{Field: "recorded_at", LabelKey: "field_recorded"},
	}
)

func textOrMissing(value string) listview.Value {
	if strings.TrimSpace(value) == "" {
		return listview.Missing()
	}
	return listview.Text(value)
}

func approvalsSchema() listview.Schema[PendingUser] {
	return listview.Schema[PendingUser]{
		ID: func(u PendingUser) string { return u.ID.String() },
		Search: []func(PendingUser) string{
			PendingUser.FullName,
			func(u PendingUser) string { return u.Email },
			func(u PendingUser) string { return u.Barangay },
			func(u PendingUser) string { return u.Position },
		},
		Categories: map[string]listview.Accessor[PendingUser]{
			"role":     func(u PendingUser) listview.Value { return textOrMissing(u.Role) },
			"barangay": func(u PendingUser) listview.Value { return textOrMissing(u.Barangay) },
		},
		Sorts: map[string]listview.Accessor[PendingUser]{
			"name":       func(u PendingUser) listview.Value { return textOrMissing(u.FullName()) },
			"email":      func(u PendingUser) listview.Value { return textOrMissing(u.Email) },
			"barangay":   func(u PendingUser) listview.Value { return textOrMissing(u.Barangay) },
			"created_at": func(u PendingUser) listview.Value { return listview.Date(u.CreatedAt) },
		},
		DefaultSort: listview.SortSpec{Field: "created_at", Direction: listview.Ascending},
		Scope:       PendingUser.IsPending,
	}
}

func incidentsSchema() listview.Schema[Incident] {
	return listview.Schema[Incident]{
		ID: func(i Incident) string { return i.ID.String() },
		Search: []func(Incident) string{
			func(i Incident) string { return i.Title },
			func(i Incident) string { return i.Type },
			func(i Incident) string { return i.Barangay },
			func(i Incident) string { return i.Location },
			func(i Incident) string { return i.ReporterName },
		},
		Categories: map[string]listview.Accessor[Incident]{
			"status":   func(i Incident) listview.Value { return textOrMissing(i.Status) },
			"type":     func(i Incident) listview.Value { return textOrMissing(i.Type) },
			"barangay": func(i Incident) listview.Value { return textOrMissing(i.Barangay) },
			"archive":  func(i Incident) listview.Value { return listview.Text(i.ArchiveState()) },
		},
		Sorts: map[string]listview.Accessor[Incident]{
			"title":       func(i Incident) listview.Value { return textOrMissing(i.Title) },
			"type":        func(i Incident) listview.Value { return textOrMissing(i.Type) },
			"barangay":    func(i Incident) listview.Value { return textOrMissing(i.Barangay) },
			"status":      func(i Incident) listview.Value { return textOrMissing(i.Status) },
			"reported_at": func(i Incident) listview.Value { return listview.Date(i.ReportedAt) },
			"severity": func(i Incident) listview.Value {
				rank, ok := severityRank[strings.ToLower(i.Severity)]
				if !ok {
					return listview.Missing()
				}
				return listview.Int(rank)
			},
		},
		DefaultSort: listview.SortSpec{Field: "reported_at", Direction: listview.Descending},
	}
}

func populationSchema() listview.Schema[PopulationRecord] {
	return listview.Schema[PopulationRecord]{
		ID: func(p PopulationRecord) string { return p.ID.String() },
		Search: []func(PopulationRecord) string{
			func(p PopulationRecord) string { return p.Barangay },
			func(p PopulationRecord) string { return p.EvacuationCenter },
			func(p PopulationRecord) string { return p.IncidentTitle },
		},
		Categories: map[string]listview.Accessor[PopulationRecord]{
			"barangay":      func(p PopulationRecord) listview.Value { return textOrMissing(p.Barangay) },
			"incident_type": func(p PopulationRecord) listview.Value { return textOrMissing(p.IncidentType) },
		},
		Sorts: map[string]listview.Accessor[PopulationRecord]{
			"barangay":    func(p PopulationRecord) listview.Value { return textOrMissing(p.Barangay) },
			"families":    func(p PopulationRecord) listview.Value { return listview.Int(p.Families) },
			"individuals": func(p PopulationRecord) listview.Value { return listview.Int(p.Individuals) },
			"recorded_at": func(p PopulationRecord) listview.Value { return listview.Date(p.RecordedAt) },
		},
		DefaultSort: listview.SortSpec{Field: "recorded_at", Direction: listview.Descending},
	}
}

func affectedSchema() listview.Schema[PopulationRecord] {
	schema := populationSchema()
	schema.Search = schema.Search[:2]
	delete(schema.Categories, "incident_type")
	delete(schema.Sorts, "barangay")
	return schema
}

func newApprovalsController(fetch listview.Fetcher[PendingUser], opts ...listview.ControllerOption) (*listview.Controller[PendingUser], error) {
	return listview.NewController(screenApprovals, approvalsSchema(), fetch, opts...)
}

func newIncidentsController(fetch listview.Fetcher[Incident], opts ...listview.ControllerOption) (*listview.Controller[Incident], error) {
	return listview.NewController(screenIncidents, incidentsSchema(), fetch, opts...)
}

func newPopulationController(fetch listview.Fetcher[PopulationRecord], opts ...listview.ControllerOption) (*listview.Controller[PopulationRecord], error) {
	return listview.NewController(screenPopulation, populationSchema(), fetch, opts...)
}

func newAffectedController(incidentID string, fetch listview.Fetcher[PopulationRecord], opts ...listview.ControllerOption) (*listview.Controller[PopulationRecord], error) {
	return listview.NewController(screenAffected+":"+incidentID, affectedSchema(), fetch, opts...)
}

// categoryValues lists the dropdown options of field for records.
func categoryValues[T any](records []T, schema listview.Schema[T], field categoryField) []string {
	if len(field.Fixed) > 0 {
		return field.Fixed
	}
	accessor, ok := schema.Categories[field.Name]
	if !ok {
		return nil
	}
	seen := map[string]bool{}
	values := make([]string, 0)
	for _, record := range records {
		if schema.Scope != nil && !schema.Scope(record) {
			continue
		}
		value := accessor(record)
		if !value.Defined() || seen[value.String()] {
			continue
		}
		seen[value.String()] = true
		values = append(values, value.String())
	}
	slices.Sort(values)
	return values
}

func categoryNames(fields []categoryField) []string {
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = field.Name
	}
	return names
}

type reasonInput struct {
	Reason string
}

type bulkSelection struct {
	IDs []string
}

// incidentActionInput is shared by the status, archive and unarchive flows.
// Current and Archived capture the incident as it was when the flow opened.
type incidentActionInput struct {
	Current  string
	Archived bool
	Status   string
	Reason   string
}

func validateReason(minimum int) listview.Validator[reasonInput] {
	return func(in reasonInput) error {
		return listview.FirstError(
			listview.Required("reason", in.Reason),
			listview.MinLength("reason", in.Reason, minimum),
		)
	}
}

func validateBulkSelection(in bulkSelection) error {
	if len(in.IDs) == 0 {
		return &listview.ValidationError{Field: "ids", Message: "select at least one record"}
	}
	return nil
}

func validateStatusChange(minimum int) listview.Validator[incidentActionInput] {
	return func(in incidentActionInput) error {
		if err := listview.OneOf("status", in.Status, incidentStatuses...); err != nil {
			return err
		}
		if in.Status == in.Current {
			return &listview.ValidationError{Field: "status", Message: "must differ from the current status"}
		}
		return listview.FirstError(
			listview.Required("remarks", in.Reason),
			listview.MinLength("remarks", in.Reason, minimum),
		)
	}
}

func validateArchiveChange(minimum int) listview.Validator[incidentActionInput] {
	return func(in incidentActionInput) error {
		if in.Archived {
			return &listview.ValidationError{Field: "incident", Message: "is already archived"}
		}
		return listview.FirstError(
			listview.Required("reason", in.Reason),
			listview.MinLength("reason", in.Reason, minimum),
		)
	}
}

func validateUnarchiveChange(minimum int) listview.Validator[incidentActionInput] {
	return func(in incidentActionInput) error {
		if !in.Archived {
			return &listview.ValidationError{Field: "incident", Message: "is not archived"}
		}
		return listview.FirstError(
			listview.Required("reason", in.Reason),
			listview.MinLength("reason", in.Reason, minimum),
		)
	}
}

func validatePopulationEntry(entry PopulationEntry) error {
	if err := listview.Required("barangay", entry.Barangay); err != nil {
		return err
	}
	switch {
	case entry.Families < 1:
		return &listview.ValidationError{Field: "families", Message: "must be at least 1"}
	case entry.Individuals < entry.Families:
		return &listview.ValidationError{Field: "individuals", Message: "must be at least the number of families"}
	case entry.Male < 0 || entry.Female < 0:
		return &listview.ValidationError{Field: "male", Message: "must not be negative"}
	case entry.Male+entry.Female != entry.Individuals:
		return &listview.ValidationError{Field: "male", Message: "male and female must add up to individuals"}
	}
	for _, group := range []struct {
		field string
		count int
	}{
		{"children", entry.Children},
		{"seniors", entry.Seniors},
		{"pwd", entry.PWD},
	} {
		if group.count < 0 || group.count > entry.Individuals {
			return &listview.ValidationError{Field: group.field, Message: "must be between 0 and the number of individuals"}
		}
	}
	return nil
}
