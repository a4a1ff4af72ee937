// Package summary turns raw summarization responses into domain summaries.
//
// The upstream model has no schema guarantee, so parsing never fails: text
// that cannot be decoded becomes an unparsed summary carrying the raw text,
// and every field of a decoded object is optional and coerced to its
// expected shape.
package summary

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/liliang-cn/medbrief/internal/domain"
	"github.com/tidwall/gjson"
)

var fencePattern = regexp.MustCompile("(?s)^\\s*```[A-Za-z]*[ \\t]*\\r?\\n?(.*?)\\r?\\n?\\s*```\\s*$")

// StripFence removes a fenced code block wrapper (```json ... ```) if present.
// Text without a complete fence is returned trimmed.
func StripFence(text string) string {
	if m := fencePattern.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ExtractJSON finds the JSON object in a model response: a fenced block,
// otherwise the outermost {...}, otherwise the trimmed text.
func ExtractJSON(text string) string {
	stripped := StripFence(text)
	if isObject(stripped) {
		return stripped
	}
	start := strings.Index(stripped, "{")
	end := strings.LastIndex(stripped, "}")
	if start >= 0 && end > start {
		return stripped[start : end+1]
	}
	return stripped
}

// Parse converts a summarize response for the given mode into a Summary.
// Strings and byte slices are decoded as JSON, retrying once without a
// code fence; anything else is treated as already structured.
func Parse(mode domain.Mode, payload any) domain.Summary {
	switch v := payload.(type) {
	case nil:
		return domain.AbsentSummary()
	case domain.Summary:
		return v
	case string:
		return parseText(mode, v)
	case []byte:
		return parseText(mode, string(v))
	case json.RawMessage:
		return parseText(mode, string(v))
	case *domain.ClinicianSummary:
		if v == nil {
			return domain.AbsentSummary()
		}
		return domain.ValidClinician(v)
	case *domain.PatientSummary:
		if v == nil {
			return domain.AbsentSummary()
		}
		return domain.ValidPatient(v)
	default:
		data, err := json.Marshal(v)
		if err != nil || !isObject(string(data)) {
			return domain.UnparsedSummary(mode, fmt.Sprint(v))
		}
		return decode(mode, gjson.ParseBytes(data))
	}
}

func parseText(mode domain.Mode, raw string) domain.Summary {
	if isObject(raw) {
		return decode(mode, gjson.Parse(raw))
	}
	if stripped := StripFence(raw); isObject(stripped) {
		return decode(mode, gjson.Parse(stripped))
	}
	return domain.UnparsedSummary(mode, raw)
}

func isObject(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && gjson.Valid(s)
}

func decode(mode domain.Mode, root gjson.Result) domain.Summary {
	if mode == domain.ModeClinician {
		return domain.ValidClinician(DecodeClinician(root))
	}
	return domain.ValidPatient(DecodePatient(root))
}

// DecodeClinician reads the clinician schema from a JSON object
func DecodeClinician(root gjson.Result) *domain.ClinicianSummary {
	s := &domain.ClinicianSummary{
		CurrentMedications: []domain.Medication{},
		RecentLabs:         []domain.LabResult{},
		RecentImaging:      []domain.Imaging{},
	}

	for _, item := range list(root.Get("current_medications")) {
		if item.IsObject() {
			s.CurrentMedications = append(s.CurrentMedications, domain.Medication{
				Name:        text(item.Get("name")),
				Dose:        text(item.Get("dose")),
				Frequency:   text(item.Get("frequency")),
				RenewalDate: text(item.Get("renewal_date")),
			})
		} else {
			s.CurrentMedications = append(s.CurrentMedications, domain.Medication{Name: text(item)})
		}
	}

	appointments := root.Get("appointments")
	if appointments.IsObject() {
		s.Appointments = domain.Appointments{
			LastVisit:      text(appointments.Get("last_visit")),
			UpcomingVisits: text(appointments.Get("upcoming_visits")),
		}
	}

	for _, item := range list(root.Get("recent_labs")) {
		if item.IsObject() {
			s.RecentLabs = append(s.RecentLabs, domain.LabResult{
				TestName:    text(item.Get("test_name")),
				Value:       text(item.Get("value")),
				Unit:        text(item.Get("unit")),
				NormalRange: text(item.Get("normal_range")),
				Status:      text(item.Get("status")),
			})
		} else {
			s.RecentLabs = append(s.RecentLabs, domain.LabResult{TestName: text(item)})
		}
	}

	surgeries := root.Get("major_surgeries")
	if surgeries.IsObject() {
		s.MajorSurgeries = domain.SurgeryHistory{
			Previous:  text(surgeries.Get("previous")),
			Scheduled: text(surgeries.Get("scheduled")),
		}
	} else {
		s.MajorSurgeries.Previous = text(surgeries)
	}

	conditions := root.Get("conditions")
	if conditions.IsObject() {
		s.Conditions = domain.ConditionGroups{
			Major: text(conditions.Get("major")),
			Minor: text(conditions.Get("minor")),
		}
	} else {
		s.Conditions.Major = text(conditions)
	}

	for _, item := range list(root.Get("recent_imaging")) {
		if item.IsObject() {
			s.RecentImaging = append(s.RecentImaging, domain.Imaging{
				Type:      text(item.Get("type")),
				Date:      text(item.Get("date")),
				Findings:  text(item.Get("findings")),
				Relevance: text(item.Get("relevance")),
			})
		} else {
			s.RecentImaging = append(s.RecentImaging, domain.Imaging{Findings: text(item)})
		}
	}

	s.ClinicalTrialNotes = text(root.Get("clinical_trial_notes"))
	return s
}

// DecodePatient reads the patient schema from a JSON object
func DecodePatient(root gjson.Result) *domain.PatientSummary {
	s := &domain.PatientSummary{
		ConditionsSummary: text(root.Get("conditions_summary")),
		Medications:       []domain.PatientMedication{},
		UpcomingCare:      []domain.CareItem{},
		RecentTests:       text(root.Get("recent_tests")),
		Surgeries:         text(root.Get("surgeries")),
		Allergies:         []string{},
		Reminders:         []domain.Reminder{},
	}

	for _, item := range list(root.Get("medications")) {
		if item.IsObject() {
			s.Medications = append(s.Medications, domain.PatientMedication{
				Name:        text(item.Get("name")),
				WhatItDoes:  text(item.Get("what_it_does")),
				Dose:        text(item.Get("dose")),
				WhenToTake:  text(item.Get("when_to_take")),
				RenewalDate: text(item.Get("renewal_date")),
			})
		} else {
			s.Medications = append(s.Medications, domain.PatientMedication{Name: text(item)})
		}
	}

	for _, item := range list(root.Get("upcoming_care")) {
		if item.IsObject() {
			s.UpcomingCare = append(s.UpcomingCare, domain.CareItem{
				Type:         text(item.Get("type")),
				Date:         text(item.Get("date")),
				WhatToExpect: text(item.Get("what_to_expect")),
			})
		} else {
			s.UpcomingCare = append(s.UpcomingCare, domain.CareItem{WhatToExpect: text(item)})
		}
	}

	for _, item := range list(root.Get("allergies")) {
		allergy := text(item)
		if item.IsObject() {
			if name := text(item.Get("name")); name != "" {
				allergy = name
			}
		}
		if allergy != "" {
			s.Allergies = append(s.Allergies, allergy)
		}
	}

	for _, item := range list(root.Get("reminders")) {
		if item.IsObject() {
			s.Reminders = append(s.Reminders, domain.Reminder{
				Action:  text(item.Get("action")),
				Date:    text(item.Get("date")),
				Details: text(item.Get("details")),
			})
		} else if action := text(item); action != "" {
			s.Reminders = append(s.Reminders, domain.Reminder{Action: action})
		}
	}

	return s
}

// list returns the elements of an array, a single non-empty scalar or object
// as a one-element list, and nothing for null or missing values.
func list(r gjson.Result) []gjson.Result {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return nil
	case r.IsArray():
		return r.Array()
	case r.Type == gjson.String && strings.TrimSpace(r.Str) == "":
		return nil
	default:
		return []gjson.Result{r}
	}
}

// text renders any JSON value as display text. Arrays of scalars are joined
// with ", "; objects and mixed arrays keep their compact JSON form.
func text(r gjson.Result) string {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return ""
	case r.Type == gjson.String:
		return strings.TrimSpace(r.Str)
	case r.IsArray():
		items := r.Array()
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if item.IsObject() || item.IsArray() {
				return compact(r)
			}
			if s := text(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case r.IsObject():
		return compact(r)
	default:
		// numbers and booleans keep their literal form
		return r.Raw
	}
}

func compact(r gjson.Result) string {
	return strings.TrimSpace(gjson.Get(r.Raw, "@ugly").Raw)
}
