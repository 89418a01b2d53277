package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	userStatusPending  = "pending"
	userStatusApproved = "approved"
	userStatusRejected = "rejected"

	incidentStatusReported      = "reported"
	incidentStatusInvestigating = "investigating"
	incidentStatusResolved      = "resolved"

	archiveStateActive   = "active"
	archiveStateArchived = "archived"
)

var (
	incidentStatuses = []string{incidentStatusReported, incidentStatusInvestigating, incidentStatusResolved}
	severityRank     = map[string]int{"low": 1, "medium": 2, "high": 3, "critical": 4}
)

// backendID accepts identifiers encoded as JSON strings or numbers.
type backendID string

func (id *backendID) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		*id = ""
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		*id = backendID(strings.TrimSpace(value))
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return fmt.Errorf("invalid identifier %s", string(raw))
	}
	*id = backendID(number.String())
	return nil
}

func (id backendID) String() string { return string(id) }

type PendingUser struct {
	ID        backendID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Position  string    `json:"position"`
	Barangay  string    `json:"barangay"`
	Status    string    `json:"status"`
	CreatedAt string    `json:"created_at"`
}

func (u PendingUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsPending treats a missing status as pending because the pending
// endpoint omits it.
func (u PendingUser) IsPending() bool {
	return u.Status == "" || u.Status == userStatusPending
}

type Incident struct {
	ID            backendID `json:"id"`
	Title         string    `json:"title"`
	Type          string    `json:"incident_type"`
	Description   string    `json:"description"`
	Barangay      string    `json:"barangay"`
	Location      string    `json:"location"`
	ReporterName  string    `json:"reporter_name"`
	Status        string    `json:"status"`
	Severity      string    `json:"severity"`
	Remarks       string    `json:"remarks"`
	ReportedAt    string    `json:"reported_at"`
	IsArchived    bool      `json:"is_archived"`
	ArchiveReason string    `json:"archive_reason"`
}

func (i Incident) ArchiveState() string {
	if i.IsArchived {
		return archiveStateArchived
	}
	return archiveStateActive
}

// NextStatuses lists the statuses a status update may move the incident to.
func (i Incident) NextStatuses() []string {
	next := make([]string, 0, len(incidentStatuses))
	for _, status := range incidentStatuses {
		if status != i.Status {
			next = append(next, status)
		}
	}
	return next
}

type PopulationRecord struct {
	ID               backendID `json:"id"`
	IncidentID       backendID `json:"incident_id"`
	IncidentTitle    string    `json:"incident_title"`
	IncidentType     string    `json:"incident_type"`
	Barangay         string    `json:"barangay"`
	EvacuationCenter string    `json:"evacuation_center"`
	Families         int       `json:"families"`
	Individuals      int       `json:"individuals"`
	Male             int       `json:"male"`
	Female           int       `json:"female"`
	Children         int       `json:"children"`
	Seniors          int       `json:"seniors"`
	PWD              int       `json:"pwd"`
	RecordedAt       string    `json:"recorded_at"`
}

// PopulationEntry is the payload for recording affected population.
type PopulationEntry struct {
	Barangay         string `json:"barangay"`
	EvacuationCenter string `json:"evacuation_center,omitempty"`
	Families         int    `json:"families"`
	Individuals      int    `json:"individuals"`
	Male             int    `json:"male"`
	Female           int    `json:"female"`
	Children         int    `json:"children"`
	Seniors          int    `json:"seniors"`
	PWD              int    `json:"pwd"`
}

type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Position  string `json:"position,omitempty"`
	Barangay  string `json:"barangay,omitempty"`
	Role      string `json:"role,omitempty"`
}
