package batch

import (
	"fmt"
	"strings"

	"github.com/calcflow-labs/calcflow/internal/table"
)

// bindLookupArrays rewrites the search and return arguments of every
// XLOOKUP call from a bracketed column reference to an identifier bound to
// the whole column as an array. The first argument stays untouched and is
// resolved per row like any other reference.
func bindLookupArrays(f string, ds table.Dataset) (string, map[string]any) {
	if !containsIdent(f, "xlookup") {
		return f, nil
	}

	arrays := make(map[string]any)
	byRef := make(map[string]string)
	resolve := func(ref string) (string, bool) {
		if ident, ok := byRef[ref]; ok {
			return ident, true
		}
		col, ok := ds.ColumnByName(ref)
		if !ok {
			return "", false
		}
		arr := make([]any, len(ds.Rows))
		for i, row := range ds.Rows {
			arr[i] = coerceCell(row[col.ID])
		}
		ident := fmt.Sprintf("colarr_%d", len(arrays))
		arrays[ident] = arr
		byRef[ref] = ident
		return ident, true
	}

	return rewriteLookups(f, resolve), arrays
}

// rewriteLookups walks the formula text, rebuilding each XLOOKUP call with
// its second and third arguments substituted. Arguments are rewritten
// recursively so nested lookups work.
func rewriteLookups(f string, resolve func(ref string) (string, bool)) string {
	var out strings.Builder
	i := 0
	for i < len(f) {
		j := indexIdent(f, i, "xlookup")
		if j < 0 {
			out.WriteString(f[i:])
			break
		}
		out.WriteString(f[i:j])

		nameEnd := j + len("xlookup")
		k := nameEnd
		for k < len(f) && (f[k] == ' ' || f[k] == '\t') {
			k++
		}
		if k >= len(f) || f[k] != '(' {
			out.WriteString(f[j:nameEnd])
			i = nameEnd
			continue
		}

		args, end, ok := splitArgs(f, k)
		if !ok {
			out.WriteString(f[j:])
			break
		}
		for ai := range args {
			args[ai] = rewriteLookups(args[ai], resolve)
			if ai != 1 && ai != 2 {
				continue
			}
			trimmed := strings.TrimSpace(args[ai])
			if ref, isRef := bracketOnly(trimmed); isRef {
				if ident, bound := resolve(ref); bound {
					args[ai] = ident
				}
			}
		}
		out.WriteString(f[j:nameEnd])
		out.WriteByte('(')
		out.WriteString(strings.Join(args, ", "))
		out.WriteByte(')')
		i = end
	}
	return out.String()
}

// splitArgs splits the parenthesized argument list starting at lparen into
// top-level comma-separated pieces, honoring nested parens and string
// literals. It returns the index just past the closing paren.
func splitArgs(f string, lparen int) ([]string, int, bool) {
	var args []string
	depth := 0
	start := lparen + 1
	var quote byte
	for i := lparen; i < len(f); i++ {
		c := f[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = append(args, f[start:i])
				return args, i + 1, true
			}
		case ',':
			if depth == 1 {
				args = append(args, f[start:i])
				start = i + 1
			}
		}
	}
	return nil, 0, false
}

// bracketOnly reports whether s is exactly one bracketed reference.
func bracketOnly(s string) (string, bool) {
	if len(s) < 3 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", false
	}
	inner := s[1 : len(s)-1]
	if strings.ContainsAny(inner, "[]") {
		return "", false
	}
	return inner, true
}

// indexIdent finds the next case-insensitive standalone occurrence of name
// at or after position from.
func indexIdent(f string, from int, name string) int {
	lower := strings.ToLower(f)
	for {
		j := strings.Index(lower[from:], name)
		if j < 0 {
			return -1
		}
		j += from
		before := j == 0 || !isWordByte(f[j-1])
		afterIdx := j + len(name)
		after := afterIdx >= len(f) || !isWordByte(f[afterIdx])
		if before && after {
			return j
		}
		from = j + 1
	}
}

func containsIdent(f, name string) bool {
	return indexIdent(f, 0, name) >= 0
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
