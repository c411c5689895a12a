package quote

import (
	"regexp"
	"strings"
)

// exchangeSuffix maps a broker exchange code to the provider's ticker suffix.
// US venues need no suffix.
var exchangeSuffix = map[string]string{
	"HEX":    ".HE", // Helsinki
	"SFB":    ".ST", // Stockholm
	"OSE":    ".OL", // Oslo
	"TSE":    ".TO", // Toronto
	"TSEJ":   ".T",  // Tokyo
	"SBF":    ".PA", // Paris
	"FWB":    ".F",  // Frankfurt floor
	"FWB2":   ".F",
	"IBIS":   ".DE", // Xetra
	"LSE":    ".L",  // London
	"SEHK":   ".HK", // Hong Kong
	"NYSE":   "",
	"NASDAQ": "",
	"ARCA":   "",
	"AMEX":   "",
}

var usPreferredPattern = regexp.MustCompile(`^(.+)-PR([A-Z])$`)

// ProviderSymbol converts a broker symbol and exchange code to the provider's
// ticker convention. overrides maps "SYMBOL@EXCHANGE" directly to a provider
// ticker and wins over every rule; the rules handle the broker quirks that
// follow a pattern:
//
//   - Oslo share-class "o" suffix is stripped (EQNRo -> EQNR.OL)
//   - Helsinki share-class "h" suffix is stripped (STEAVh -> STEAV.HE)
//   - Hong Kong numeric codes are zero-padded to four digits (700 -> 0700.HK)
//   - Toronto units rewrite .UN to -UN (SGR.UN -> SGR-UN.TO)
//   - US preferred shares rewrite PRx to -Px (CIM PRA -> CIM-PA)
func ProviderSymbol(symbol, exchange string, overrides map[string]string) string {
	if mapped, ok := overrides[symbol+"@"+exchange]; ok {
		return mapped
	}

	suffix := exchangeSuffix[exchange]
	s := strings.ReplaceAll(symbol, " ", "-")

	switch exchange {
	case "OSE":
		if len(s) > 1 && strings.HasSuffix(s, "o") {
			s = s[:len(s)-1]
		}
	case "HEX":
		if len(s) > 1 && strings.HasSuffix(s, "h") {
			s = s[:len(s)-1]
		}
	case "SEHK":
		if isDigits(s) {
			for len(s) < 4 {
				s = "0" + s
			}
		}
	case "TSE":
		s = strings.ReplaceAll(s, ".UN", "-UN")
	case "NYSE", "NASDAQ", "AMEX", "ARCA":
		if m := usPreferredPattern.FindStringSubmatch(s); m != nil {
			s = m[1] + "-P" + m[2]
		}
	}

	// Some broker symbols already carry a provider suffix (e.g. 8750.T).
	if strings.Contains(s, ".") {
		for _, known := range exchangeSuffix {
			if known != "" && strings.HasSuffix(s, known) {
				return s
			}
		}
	}
	return s + suffix
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
