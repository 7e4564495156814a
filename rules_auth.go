package fel

import (
	"context"
	"fmt"
	"strconv"
)

// checkAuthorization verifies the authorization UUID and the serie and
// número derived from it (3.12.5-3.12.7). The serie is the first eight hex
// digits uppercased; the número is hex digits 8..16 modulo 999,999,999.
// Documents not yet certified carry no authorization and skip the group.
func (v *Validator) checkAuthorization(_ context.Context, d *Document) []Finding {
	if d.AuthorizationID == "" {
		return nil
	}
	var out []Finding
	if !ValidUUIDv4(d.AuthorizationID) {
		f := R31251.Finding("")
		f.Field = "NumeroAutorizacion"
		f.Actual = d.AuthorizationID
		return append(out, f)
	}

	if d.Serie != "" {
		want := SerieFromAuthorization(d.AuthorizationID)
		if d.Serie != want {
			f := R31261.Finding("")
			f.Field = "Serie"
			f.Expected = want
			f.Actual = d.Serie
			out = append(out, f)
		}
	}

	if d.Numero != "" {
		got, err := strconv.ParseInt(d.Numero, 10, 64)
		if err != nil {
			f := R31270.Finding("")
			f.Field = "Numero"
			f.Actual = d.Numero
			return append(out, f)
		}
		want, ok := NumeroFromAuthorization(d.AuthorizationID)
		if ok && got != want {
			f := R31271.Finding("")
			f.Field = "Numero"
			f.Expected = fmt.Sprintf("%d", want)
			f.Actual = d.Numero
			out = append(out, f)
		}
	}
	return out
}
