package batch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/calcflow-labs/calcflow/internal/formula"
)

var (
	stringLiteralRe = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	aggregateRe     = regexp.MustCompile(`\$([A-Z]+)_\[([^\]]+)\]`)
	bracketRe       = regexp.MustCompile(`\[([^\]]+)\]`)
	bareIdentRe     = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_]*`)
)

// validateFormula rejects empty formulas and bare identifiers that are not
// known function or constant names. Bare identifiers are the classic typo
// of writing a column name without brackets, which would otherwise surface
// as a confusing per-row "undefined variable" error.
func validateFormula(f string) error {
	if strings.TrimSpace(f) == "" {
		return errors.New("formula is empty")
	}
	stripped := stringLiteralRe.ReplaceAllString(f, " ")
	stripped = aggregateRe.ReplaceAllString(stripped, " ")
	stripped = bracketRe.ReplaceAllString(stripped, " ")
	for _, ident := range bareIdentRe.FindAllString(stripped, -1) {
		if !formula.KnownFunction(ident) {
			return fmt.Errorf("unknown name %q: column and input references must be bracketed, e.g. [%s]", ident, ident)
		}
	}
	return nil
}
