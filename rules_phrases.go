package fel

import (
	"context"
	"fmt"
)

// checkPhrases runs the legal phrase rules (2.6.x). Phrase findings are
// mostly informative: SAT expects the emitter to carry the clauses its
// regime mandates, but a missing phrase does not block certification.
func (v *Validator) checkPhrases(ctx context.Context, d *Document) []Finding {
	var out []Finding
	scenarios := d.PhraseScenarios()

	for i, p := range d.Phrases {
		field := fmt.Sprintf("Frase[%d]", i+1)
		if !p.Type.Known() {
			f := R2621.Finding("")
			f.Field = field
			f.Actual = fmt.Sprintf("%d", p.Type)
			out = append(out, f)
			continue
		}
		if p.Type == PhraseIVAExempt && !ScenarioAllowed(p.Type, p.Scenario, d.Type) {
			f := R2613.Finding("")
			f.Field = field
			f.Actual = fmt.Sprintf("escenario %d", p.Scenario)
			out = append(out, f)
		}
	}

	if v.registry != nil && d.EmisorNIT != "" {
		tp, err := v.registry.Taxpayer(ctx, d.EmisorNIT)
		if err != nil {
			out = append(out, registryOutage(err, PhraseValidation, "NITEmisor"))
		} else if tp != nil {
			if sc, ok := scenarios[PhraseISRRetention]; ok && sc == 1 && tp.ISRAffiliation != ISRRegular {
				out = append(out, R2611.Finding(""))
			}
			if tp.IVAAffiliation == IVARetentionAgent {
				if _, ok := scenarios[PhraseIVAAgent]; !ok {
					out = append(out, R2615.Finding(""))
				}
			}
		}
	}

	// The export phrase mandate only binds the document types admitted to
	// exemption scenario 1.
	if d.IsExport && ScenarioAllowed(PhraseIVAExempt, 1, d.Type) {
		sc, ok := scenarios[PhraseIVAExempt]
		if !ok {
			out = append(out, R2616.Finding(""))
		} else if sc != 1 {
			f := R2617.Finding("")
			f.Expected = "escenario 1"
			f.Actual = fmt.Sprintf("escenario %d", sc)
			out = append(out, f)
		}
	}
	return out
}
