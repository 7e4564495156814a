package fel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/beevik/etree"
)

// ruleGroup is one ordered stage of the business validation. A panicking
// group is isolated: the engine records a SYSTEM_<name> rejection and moves
// on to the next group.
type ruleGroup struct {
	name string
	run  func(ctx context.Context, d *Document) []Finding
}

// Validator ties together the schema set, the external registries and the
// rulebook. Safe for concurrent use once constructed.
type Validator struct {
	cfg      *Config
	schemas  *SchemaSet
	registry Registry
	rates    RateProvider
	log      *slog.Logger
	now      func() time.Time
}

// NewValidator builds a validator. registry and rates may be nil, which
// skips the registry-backed rules and the foreign-currency cap conversion
// respectively. A nil logger falls back to slog.Default.
func NewValidator(cfg *Config, schemas *SchemaSet, registry Registry, rates RateProvider, log *slog.Logger) *Validator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Validator{
		cfg:      cfg,
		schemas:  schemas,
		registry: registry,
		rates:    rates,
		log:      log,
		now:      time.Now,
	}
}

func (v *Validator) groups() []ruleGroup {
	return []ruleGroup{
		{"GENERAL", v.checkGeneralPart1},
		{"ITEMS", v.checkItems},
		{"TAXES", v.checkTaxes},
		{"PHRASES", v.checkPhrases},
		{"COMPLEMENTS", v.checkComplements},
		{"TOTALS", v.checkTotals},
		{"SIGNATURES", v.checkSignatures},
		{"UUID_SERIE_NUMERO", v.checkAuthorization},
	}
}

func (v *Validator) newVerdict() *Verdict {
	version := v.cfg.RulebookVersion
	if version == "" {
		version = RulebookVersion
	}
	return &Verdict{
		IsValid:         true,
		ValidationTime:  v.now().UTC(),
		RulebookVersion: version,
	}
}

// Validate runs the full certification pipeline over DTE XML: schema
// validation, projection, then every rule group in order. It always returns
// a verdict; findings are accumulated, never raised as errors.
func (v *Validator) Validate(ctx context.Context, data []byte) *Verdict {
	return v.ValidateAs(ctx, data, "")
}

// ValidateAs is Validate with a document type hint, used when the payload
// omits TipoDTE. A hint never overrides a type the document declares.
func (v *Validator) ValidateAs(ctx context.Context, data []byte, hint DTEType) *Verdict {
	start := v.now()
	verdict := v.newVerdict()

	doc, findings := Project(data)
	verdict.add(findings...)
	if doc == nil {
		v.log.Warn("validation aborted on malformed input", "errors", len(verdict.Errors))
		return verdict
	}
	if doc.Type == "" && hint != "" {
		doc.Type = hint
	}
	verdict.DocumentType = string(doc.Type)

	// Schema rejection short-circuits: business rules over a document that
	// does not conform to the XSD would only cascade. A stale-cache warning
	// is not a rejection and proceeds.
	v.validateSchema(ctx, SchemaDocumento, data, verdict)
	if len(verdict.Errors) > 0 {
		v.log.Warn("schema stage rejected document", "type", verdict.DocumentType, "errors", len(verdict.Errors))
		return verdict
	}

	for _, g := range v.groups() {
		if err := ctx.Err(); err != nil {
			verdict.add(cancelledFinding(g.name))
			break
		}
		verdict.add(v.runGroup(ctx, g, doc)...)
		verdict.RulesApplied = append(verdict.RulesApplied, g.name)
	}

	v.log.Info("document validated",
		"type", verdict.DocumentType,
		"valid", verdict.IsValid,
		"errors", len(verdict.Errors),
		"warnings", len(verdict.Warnings),
		"elapsed", v.now().Sub(start))
	return verdict
}

// ValidateAnulacion runs the pipeline for a void request.
func (v *Validator) ValidateAnulacion(ctx context.Context, data []byte) *Verdict {
	verdict := v.newVerdict()
	verdict.DocumentType = "ANULACION"

	doc, findings := ProjectAnulacion(data)
	verdict.add(findings...)
	if doc == nil {
		return verdict
	}

	v.validateSchema(ctx, SchemaAnulacion, data, verdict)
	if len(verdict.Errors) > 0 {
		return verdict
	}

	g := ruleGroup{name: "ANULACION"}
	if err := ctx.Err(); err != nil {
		verdict.add(cancelledFinding(g.name))
		return verdict
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				v.log.Error("rule group panicked", "group", g.name, "panic", r)
				verdict.add(systemFinding(g.name, r))
			}
		}()
		verdict.add(v.checkAnulacion(ctx, doc)...)
	}()
	verdict.RulesApplied = append(verdict.RulesApplied, g.name)
	return verdict
}

// validateSchema loads the named schema and applies it, degrading to a
// SCHEMA_LOAD_ERROR rejection when neither the network nor the cache can
// produce it. Serving a stale cached schema adds a warning but proceeds.
func (v *Validator) validateSchema(ctx context.Context, name string, data []byte, verdict *Verdict) {
	schema, stale, err := v.schemas.Load(ctx, name)
	if err != nil {
		v.log.Error("schema unavailable", "schema", name, "error", err)
		verdict.add(Finding{
			Code:     CodeSchemaLoadError,
			Message:  fmt.Sprintf("%s: %s", Message(CodeSchemaLoadError), name),
			Severity: Reject,
			Category: GeneralPart1,
			SATLevel: LevelCertificador,
		})
		return
	}
	if stale {
		verdict.add(Finding{
			Code:     CodeStaleSchema,
			Message:  fmt.Sprintf("Esquema %s servido desde caché vencido", name),
			Severity: InformWarning,
			Category: GeneralPart1,
			SATLevel: LevelCertificador,
		})
	}
	verdict.SchemaUsed = name

	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return // projection already reported the malformed input
	}
	verdict.add(schema.Validate(tree)...)
}

func (v *Validator) runGroup(ctx context.Context, g ruleGroup, doc *Document) (out []Finding) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("rule group panicked", "group", g.name, "panic", r)
			out = append(out, systemFinding(g.name, r))
		}
	}()
	return g.run(ctx, doc)
}

func systemFinding(group string, cause any) Finding {
	return Finding{
		Code:     "SYSTEM_" + group,
		Message:  fmt.Sprintf("Error interno en el grupo de reglas %s: %v", group, cause),
		Severity: Reject,
		Category: GeneralPart1,
		SATLevel: LevelCertificador,
	}
}

func cancelledFinding(group string) Finding {
	return Finding{
		Code:     CodeCancelled,
		Message:  fmt.Sprintf("%s antes del grupo %s", Message(CodeCancelled), group),
		Severity: Reject,
		Category: GeneralPart1,
		SATLevel: LevelCertificador,
	}
}

// BatchSummary aggregates a batch validation run.
type BatchSummary struct {
	Total   int           `json:"total"`
	Valid   int           `json:"valid"`
	Invalid int           `json:"invalid"`
	Elapsed time.Duration `json:"elapsed"`
}

// ValidateBatch validates documents in order and returns one verdict per
// input. Cancellation mid-batch leaves the remaining verdicts with a
// CANCELLED rejection so the output stays positionally aligned.
func (v *Validator) ValidateBatch(ctx context.Context, docs [][]byte) ([]*Verdict, BatchSummary) {
	start := v.now()
	verdicts := make([]*Verdict, len(docs))
	summary := BatchSummary{Total: len(docs)}
	for i, data := range docs {
		if err := ctx.Err(); err != nil {
			verdict := v.newVerdict()
			verdict.add(cancelledFinding("BATCH"))
			verdicts[i] = verdict
			summary.Invalid++
			continue
		}
		verdicts[i] = v.Validate(ctx, data)
		if verdicts[i].IsValid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
	}
	summary.Elapsed = v.now().Sub(start)
	v.log.Info("batch validated", "total", summary.Total, "valid", summary.Valid, "invalid", summary.Invalid)
	return verdicts, summary
}
