package fel

import "context"

// checkSignatures verifies the presence of the XAdES signature blocks
// (3.12.1/3.12.4). An uncertified document only requires the emisor
// signature; once an authorization number is present the certificador must
// have signed too. Cryptographic verification is out of scope here.
func (v *Validator) checkSignatures(_ context.Context, d *Document) []Finding {
	var out []Finding
	if !d.HasSignature(SignatureEmisor) {
		out = append(out, R31211.Finding(""))
	}
	if d.AuthorizationID != "" && !d.HasSignature(SignatureCertificador) {
		out = append(out, R31241.Finding(""))
	}
	return out
}
