package batch

import (
	"fmt"
	"strings"

	"github.com/calcflow-labs/calcflow/internal/table"
)

// bindReferences replaces every remaining bracket reference with a
// sanitized identifier. Column references become per-row bindings; scalar
// inputs become constants in the static scope. Unknown references fail up
// front rather than on row 1.
func bindReferences(f string, ds table.Dataset, scalars map[string]ScalarInput, static map[string]any) (string, []columnBinding, error) {
	var bindings []columnBinding
	seen := make(map[string]string)

	for _, m := range bracketRe.FindAllStringSubmatch(f, -1) {
		ref := m[1]
		if _, done := seen[ref]; done {
			continue
		}
		ident := fmt.Sprintf("ref_%d", len(seen))
		seen[ref] = ident

		if col, ok := ds.ColumnByName(ref); ok {
			bindings = append(bindings, columnBinding{ident: ident, columnID: col.ID})
		} else if sc, ok := scalars[ref]; ok {
			static[ident] = sc.Value
		} else {
			return "", nil, fmt.Errorf("unknown column or input %q", ref)
		}
	}

	for ref, ident := range seen {
		f = strings.ReplaceAll(f, "["+ref+"]", ident)
	}
	return f, bindings, nil
}
