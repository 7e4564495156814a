package fel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Severity grades a finding for pipeline gating.
type Severity int

const (
	// Reject blocks certification (Rechaza).
	Reject Severity = iota
	// InformError is reported to SAT but does not block (Informa EC).
	InformError
	// InformWarning is reported to SAT as informational (Informa).
	InformWarning
)

func (s Severity) String() string {
	switch s {
	case Reject:
		return "REJECT"
	case InformError:
		return "INFORM_ERROR"
	case InformWarning:
		return "INFORM_WARNING"
	}
	return "UNKNOWN"
}

// MarshalJSON encodes the severity as its name.
func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// Category is the rule group a finding belongs to.
type Category int

const (
	GeneralPart1 Category = iota
	GeneralPart2
	TaxSpecific
	DTETypeSpecific
	PhraseValidation
	ComplementValidation
	GeneralPart3
	GeneralPart4
)

func (c Category) String() string {
	switch c {
	case GeneralPart1:
		return "GENERAL_PART1"
	case GeneralPart2:
		return "GENERAL_PART2"
	case TaxSpecific:
		return "TAX_SPECIFIC"
	case DTETypeSpecific:
		return "DTE_TYPE_SPECIFIC"
	case PhraseValidation:
		return "PHRASE_VALIDATION"
	case ComplementValidation:
		return "COMPLEMENT_VALIDATION"
	case GeneralPart3:
		return "GENERAL_PART3"
	case GeneralPart4:
		return "GENERAL_PART4"
	}
	return "UNKNOWN"
}

// MarshalJSON encodes the category as its name.
func (c Category) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

// SATLevel records at which tier a rule would fire.
type SATLevel string

const (
	LevelCertificador SATLevel = "CERTIFICADOR"
	LevelSAT1         SATLevel = "SAT1"
	LevelSAT2         SATLevel = "SAT2"
)

// Finding is one diagnostic produced by the schema validator or the rule
// engine. Findings are accumulated, never raised.
type Finding struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	XPath    string   `json:"xpath,omitempty"`
	Field    string   `json:"field,omitempty"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	SATLevel SATLevel `json:"sat_level"`
}

func (f Finding) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %s", f.Severity, f.Code, f.Message)
	if f.Field != "" {
		fmt.Fprintf(&sb, " (campo %s)", f.Field)
	}
	if f.Expected != "" || f.Actual != "" {
		fmt.Fprintf(&sb, " esperado=%q actual=%q", f.Expected, f.Actual)
	}
	return sb.String()
}

// Blocking reports whether the finding blocks certification.
func (f Finding) Blocking() bool { return f.Severity == Reject }

// Verdict is the aggregate result of one validation call.
type Verdict struct {
	IsValid         bool      `json:"is_valid"`
	Errors          []Finding `json:"errors"`
	Warnings        []Finding `json:"warnings"`
	RulesApplied    []string  `json:"rules_applied"`
	ValidationTime  time.Time `json:"validation_time"`
	DocumentType    string    `json:"document_type,omitempty"`
	SchemaUsed      string    `json:"schema_used,omitempty"`
	RulebookVersion string    `json:"rulebook_version"`
}

// add routes a batch of findings into the errors or warnings list. Only
// REJECT findings land in Errors; IsValid is recomputed.
func (v *Verdict) add(findings ...Finding) {
	for _, f := range findings {
		if f.Blocking() {
			v.Errors = append(v.Errors, f)
		} else {
			v.Warnings = append(v.Warnings, f)
		}
	}
	v.IsValid = len(v.Errors) == 0
}

// Findings returns errors followed by warnings, preserving emission order
// within each list.
func (v *Verdict) Findings() []Finding {
	out := make([]Finding, 0, len(v.Errors)+len(v.Warnings))
	out = append(out, v.Errors...)
	out = append(out, v.Warnings...)
	return out
}

// Format renders a plain-text summary of the verdict.
func (v *Verdict) Format() string {
	var sb strings.Builder
	state := "INVALID"
	if v.IsValid {
		state = "VALID"
	}
	fmt.Fprintf(&sb, "Resultado de validación: %s\n", state)
	if v.DocumentType != "" {
		fmt.Fprintf(&sb, "Tipo de DTE: %s\n", v.DocumentType)
	}
	if v.SchemaUsed != "" {
		fmt.Fprintf(&sb, "Esquema: %s\n", v.SchemaUsed)
	}
	fmt.Fprintf(&sb, "Reglas aplicadas: %s\n", strings.Join(v.RulesApplied, ", "))
	if len(v.Errors) > 0 {
		fmt.Fprintf(&sb, "\nErrores (%d):\n", len(v.Errors))
		for _, f := range v.Errors {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
	}
	if len(v.Warnings) > 0 {
		fmt.Fprintf(&sb, "\nAdvertencias (%d):\n", len(v.Warnings))
		for _, f := range v.Warnings {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
	}
	return sb.String()
}

// MarshalIndentJSON renders the verdict as indented JSON.
func (v *Verdict) MarshalIndentJSON() ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
