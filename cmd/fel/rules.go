package main

import (
	"sort"
	"strconv"
	"strings"

	fel "github.com/rkingkong/validor-fel-sat-gt"
)

// sortedRuleCodes orders rulebook codes numerically by segment, so 2.2.4.10
// sorts after 2.2.4.9 instead of lexicographically between .1 and .2.
func sortedRuleCodes() []string {
	codes := make([]string, 0, len(fel.Rulebook))
	for code := range fel.Rulebook {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		return lessCode(codes[i], codes[j])
	})
	return codes
}

func lessCode(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr != nil || berr != nil {
			if as[i] != bs[i] {
				return as[i] < bs[i]
			}
			continue
		}
		if an != bn {
			return an < bn
		}
	}
	return len(as) < len(bs)
}
