// Package categories maps free-form role and portal-usage labels onto their
// canonical short codes. Early registrations stored the full questionnaire
// answer text; everything written since the migration pass stores codes only.
package categories

import "strings"

// Other is the catch-all sentinel a caller may pass in a search filter to
// mean "a category outside the known universe". It is never persisted.
const Other = "other"

// Legacy long-form labels → canonical role codes.
var roleCodes = map[string]string{
	"researcher at an academic or not-for-profit institution": "researcher",
	"representative from a for-profit or commercial entity":   "representative",
	"tool or algorithm developer":                             "developer",
	"community member":                                        "community_member",
	"federal employee":                                        "federal_employee",
}

// Legacy long-form labels → canonical portal-usage codes.
var usageCodes = map[string]string{
	"learning more about down syndrome and its health outcomes, management, and/or treatment": "learn_more_about_down_syndrome",
	"helping me design a new research study":                                                  "help_design_new_research_study",
	"identifying datasets that i want to analyze":                                             "identifying_dataset",
	"commercial purposes":                                                                     "commercial_purpose",
}

// NormalizeRole maps a single role label to its canonical code. Labels not in
// the legacy table pass through unchanged, so already-canonical input is a
// no-op. Total: never fails.
func NormalizeRole(label string) string {
	if code, ok := roleCodes[strings.ToLower(label)]; ok {
		return code
	}
	return label
}

// NormalizeUsage maps a single portal-usage label to its canonical code.
// Unknown labels pass through unchanged.
func NormalizeUsage(label string) string {
	if code, ok := usageCodes[strings.ToLower(label)]; ok {
		return code
	}
	return label
}

// NormalizeRoles applies NormalizeRole per element. A nil input yields an
// empty, non-nil slice so stores always persist a set.
func NormalizeRoles(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		out = append(out, NormalizeRole(label))
	}
	return out
}

// NormalizeUsages applies NormalizeUsage per element.
func NormalizeUsages(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		out = append(out, NormalizeUsage(label))
	}
	return out
}
