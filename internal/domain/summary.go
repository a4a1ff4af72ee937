package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SummaryKind discriminates the Summary union
type SummaryKind string

const (
	SummaryAbsent   SummaryKind = "absent"
	SummaryValid    SummaryKind = "valid"
	SummaryUnparsed SummaryKind = "unparsed"
)

// Summary is one audience's structured summary. It is absent, valid (exactly one
// of Clinician or Patient set, matching Mode), or unparsed (Raw holds the response
// text that could not be decoded and must be shown verbatim).
type Summary struct {
	Kind      SummaryKind       `json:"kind"`
	Mode      Mode              `json:"mode,omitempty"`
	Clinician *ClinicianSummary `json:"clinician,omitempty"`
	Patient   *PatientSummary   `json:"patient,omitempty"`
	Raw       string            `json:"raw,omitempty"`
}

// AbsentSummary returns a summary that has not been generated
func AbsentSummary() Summary {
	return Summary{Kind: SummaryAbsent}
}

// ValidClinician wraps a parsed clinician summary
func ValidClinician(s *ClinicianSummary) Summary {
	return Summary{Kind: SummaryValid, Mode: ModeClinician, Clinician: s}
}

// ValidPatient wraps a parsed patient summary
func ValidPatient(s *PatientSummary) Summary {
	return Summary{Kind: SummaryValid, Mode: ModePatient, Patient: s}
}

// UnparsedSummary keeps a response that could not be parsed as raw text
func UnparsedSummary(mode Mode, raw string) Summary {
	return Summary{Kind: SummaryUnparsed, Mode: mode, Raw: raw}
}

func (s Summary) IsAbsent() bool   { return s.Kind == "" || s.Kind == SummaryAbsent }
func (s Summary) IsValid() bool    { return s.Kind == SummaryValid }
func (s Summary) IsUnparsed() bool { return s.Kind == SummaryUnparsed }

// MarshalJSON encodes an absent summary as null
func (s Summary) MarshalJSON() ([]byte, error) {
	if s.IsAbsent() {
		return []byte("null"), nil
	}
	type plain Summary
	return json.Marshal(plain(s))
}

// UnmarshalJSON decodes null as absent and rejects a valid summary without a body
func (s *Summary) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*s = AbsentSummary()
		return nil
	}
	type plain Summary
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch p.Kind {
	case SummaryValid:
		if (p.Mode == ModeClinician && p.Clinician == nil) || (p.Mode == ModePatient && p.Patient == nil) {
			return fmt.Errorf("valid %s summary has no body", p.Mode)
		}
		if !p.Mode.Valid() {
			return fmt.Errorf("valid summary has unknown mode %q", p.Mode)
		}
	case SummaryUnparsed, SummaryAbsent, "":
	default:
		return fmt.Errorf("unknown summary kind %q", p.Kind)
	}
	*s = Summary(p)
	if s.Kind == "" {
		s.Kind = SummaryAbsent
	}
	return nil
}

// SummaryPair holds one summary per audience mode. It is replaced as a whole.
type SummaryPair struct {
	Clinician Summary `json:"clinician"`
	Patient   Summary `json:"patient"`
}

// EmptySummaryPair returns a pair with both summaries absent
func EmptySummaryPair() SummaryPair {
	return SummaryPair{Clinician: AbsentSummary(), Patient: AbsentSummary()}
}

// Get returns the summary for a mode
func (p SummaryPair) Get(m Mode) Summary {
	if m == ModeClinician {
		return p.Clinician
	}
	return p.Patient
}

// ClinicianSummary is the clinician-facing schema
type ClinicianSummary struct {
	CurrentMedications []Medication    `json:"current_medications"`
	Appointments       Appointments    `json:"appointments"`
	RecentLabs         []LabResult     `json:"recent_labs"`
	MajorSurgeries     SurgeryHistory  `json:"major_surgeries"`
	Conditions         ConditionGroups `json:"conditions"`
	RecentImaging      []Imaging       `json:"recent_imaging"`
	ClinicalTrialNotes string          `json:"clinical_trial_notes"`
}

type Medication struct {
	Name        string `json:"name"`
	Dose        string `json:"dose"`
	Frequency   string `json:"frequency"`
	RenewalDate string `json:"renewal_date"`
}

type Appointments struct {
	LastVisit      string `json:"last_visit"`
	UpcomingVisits string `json:"upcoming_visits"`
}

// LabResult status is whatever the model reported; use Flag for a normalized value
type LabResult struct {
	TestName    string `json:"test_name"`
	Value       string `json:"value"`
	Unit        string `json:"unit"`
	NormalRange string `json:"normal_range"`
	Status      string `json:"status"`
}

// Lab flags
const (
	LabHigh   = "high"
	LabLow    = "low"
	LabNormal = "normal"
)

// Flag returns high, low, normal, or "" when the status is anything else
func (l LabResult) Flag() string {
	switch s := strings.ToLower(strings.TrimSpace(l.Status)); s {
	case LabHigh, LabLow, LabNormal:
		return s
	default:
		return ""
	}
}

type SurgeryHistory struct {
	Previous  string `json:"previous"`
	Scheduled string `json:"scheduled"`
}

type ConditionGroups struct {
	Major string `json:"major"`
	Minor string `json:"minor"`
}

type Imaging struct {
	Type      string `json:"type"`
	Date      string `json:"date"`
	Findings  string `json:"findings"`
	Relevance string `json:"relevance"`
}

// PatientSummary is the patient-facing schema
type PatientSummary struct {
	ConditionsSummary string              `json:"conditions_summary"`
	Medications       []PatientMedication `json:"medications"`
	UpcomingCare      []CareItem          `json:"upcoming_care"`
	RecentTests       string              `json:"recent_tests"`
	Surgeries         string              `json:"surgeries"`
	Allergies         []string            `json:"allergies"`
	Reminders         []Reminder          `json:"reminders"`
}

type PatientMedication struct {
	Name        string `json:"name"`
	WhatItDoes  string `json:"what_it_does"`
	Dose        string `json:"dose"`
	WhenToTake  string `json:"when_to_take"`
	RenewalDate string `json:"renewal_date"`
}

// RenewalWindow is how far ahead a renewal counts as due
const RenewalWindow = 30 * 24 * time.Hour

var renewalLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// RenewalDue reports whether the renewal date falls within the next 30 days.
// Unparseable or missing dates are never due.
func (m PatientMedication) RenewalDue(now time.Time) bool {
	date := strings.TrimSpace(m.RenewalDate)
	if date == "" {
		return false
	}
	for _, layout := range renewalLayouts {
		t, err := time.ParseInLocation(layout, date, now.Location())
		if err != nil {
			continue
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		until := t.Sub(today)
		return until >= 0 && until <= RenewalWindow
	}
	return false
}

type CareItem struct {
	Type         string `json:"type"`
	Date         string `json:"date"`
	WhatToExpect string `json:"what_to_expect"`
}

// Reminder is an action item; plain string reminders only carry Action
type Reminder struct {
	Action  string `json:"action"`
	Date    string `json:"date"`
	Details string `json:"details"`
}
