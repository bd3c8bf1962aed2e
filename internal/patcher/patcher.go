// Package patcher idempotently adds import lines and registration statements
// to existing source files by scanning lines, without parsing them.
//
// Block boundaries are found by counting '{' and '}' characters per line.
// Braces inside string literals or comments are counted too, so a file with
// unbalanced braces in a string can move the insertion point.
package patcher

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// Syntax describes how a language spells import lines
type Syntax struct {
	// ImportPrefix starts every import line once trimmed, e.g. "use "
	ImportPrefix string
	// ImportAnchor is the line after which the first import goes when the
	// file has none, matched as a prefix of the trimmed line
	ImportAnchor string
	// GroupOpen starts a parenthesized import block, e.g. "import (". Empty
	// when the language has none.
	GroupOpen string
	// GroupClose ends the block opened by GroupOpen
	GroupClose string
}

// GoSyntax matches single-line Go imports and parenthesized import blocks
var GoSyntax = Syntax{
	ImportPrefix: "import \"",
	ImportAnchor: "package ",
	GroupOpen:    "import (",
	GroupClose:   ")",
}

// EnsureImport adds importLine to buf unless it is already imported.
//
// When buf has an import block, the imported path is present if a line of
// any block spells it, with or without a name in front; otherwise it is
// appended to the last block. Without a block importLine goes after the last
// import line, or after the anchor line when there are none. Without either
// buf is returned unchanged.
func EnsureImport(buf, importLine string, syntax Syntax) string {
	if strings.Contains(buf, importLine) {
		return buf
	}

	item := groupItem(importLine, syntax)
	named := strings.TrimSuffix(syntax.GroupOpen, "(")
	lines := strings.Split(buf, "\n")
	lastImport := -1
	anchor := -1
	groupEnd := -1
	indent := "\t"
	inGroup := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if inGroup {
			if trimmed == syntax.GroupClose {
				inGroup = false
				groupEnd = i
				continue
			}
			if trimmed == item || strings.HasSuffix(trimmed, " "+item) {
				return buf
			}
			if trimmed != "" {
				indent = line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			}
			continue
		}
		if syntax.GroupOpen != "" && trimmed == syntax.GroupOpen {
			inGroup = true
			continue
		}
		if strings.HasPrefix(trimmed, syntax.ImportPrefix) {
			lastImport = i
		}
		if item != "" && strings.HasPrefix(trimmed, named) && strings.HasSuffix(trimmed, " "+item) {
			return buf
		}
		if anchor < 0 && syntax.ImportAnchor != "" && strings.HasPrefix(trimmed, syntax.ImportAnchor) {
			anchor = i
		}
	}

	switch {
	case groupEnd >= 0 && item != "":
		return insertLines(lines, groupEnd, indent+item)
	case lastImport >= 0:
		return insertLines(lines, lastImport+1, importLine)
	case anchor >= 0:
		return insertLines(lines, anchor+1, importLine)
	default:
		return buf
	}
}

// groupItem returns importLine as spelled inside an import block, e.g.
// "fmt" in quotes for import "fmt"
func groupItem(importLine string, syntax Syntax) string {
	keyword := strings.TrimSpace(strings.TrimSuffix(syntax.GroupOpen, "("))
	if keyword == "" {
		return ""
	}
	rest, ok := strings.CutPrefix(strings.TrimSpace(importLine), keyword+" ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(rest)
}

// EnsureBlockStatement inserts statements before the closing line of the
// block opened on the first line containing signature. The closing line is
// the first line at which the running count of '{' minus '}' returns to
// zero after having been positive.
//
// When marker is non-empty and already present in buf nothing is inserted.
// The result is false, with buf unchanged, when there is nothing to do or
// the signature or its closing line cannot be found; callers distinguish
// the cases with strings.Contains(buf, marker).
func EnsureBlockStatement(buf, signature, marker string, statements []string) (string, bool) {
	if marker != "" && strings.Contains(buf, marker) {
		return buf, false
	}

	lines := strings.Split(buf, "\n")
	end := findBlockEnd(lines, signature)
	if end < 0 {
		return buf, false
	}
	return insertLines(lines, end, statements...), true
}

// HasBlock reports whether a line of buf contains signature
func HasBlock(buf, signature string) bool {
	for _, line := range strings.Split(buf, "\n") {
		if strings.Contains(line, signature) {
			return true
		}
	}
	return false
}

func findBlockEnd(lines []string, signature string) int {
	start := -1
	for i, line := range lines {
		if strings.Contains(line, signature) {
			start = i
			break
		}
	}
	if start < 0 {
		return -1
	}

	depth := 0
	opened := false
	for i := start; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if depth > 0 {
			opened = true
		}
		if opened && depth == 0 {
			return i
		}
	}
	return -1
}

// AppendStandaloneStatement appends statements at the end of buf. When
// marker is present in buf nothing is appended unless force is set.
func AppendStandaloneStatement(buf, marker string, statements []string, force bool) string {
	if !force && marker != "" && strings.Contains(buf, marker) {
		return buf
	}

	var b strings.Builder
	b.WriteString(buf)
	if buf != "" && !strings.HasSuffix(buf, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for _, s := range statements {
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}

func insertLines(lines []string, at int, insert ...string) string {
	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n")
}

// PatchFile applies fn to the content of path and writes the result back
// when it changed. It reports whether the file was written.
func PatchFile(fs afero.Fs, path string, fn func(string) string) (bool, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	original := string(data)
	patched := fn(original)
	if patched == original {
		return false, nil
	}

	mode := os.FileMode(0644)
	if info, err := fs.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := afero.WriteFile(fs, path, []byte(patched), mode); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
