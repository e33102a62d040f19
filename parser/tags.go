package parser

import (
	"regexp"
	"strings"
)

const (
	artifactTagOpen  = "<boltArtifact"
	artifactTagClose = "</boltArtifact>"
	actionTagOpen    = "<boltAction"
	actionTagClose   = "</boltAction>"
)

var attributePatterns = map[string]*regexp.Regexp{}

func init() {
	for _, name := range []string{"id", "title", "type", "filePath"} {
		attributePatterns[name] = compileAttribute(name)
	}
}

func compileAttribute(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|\s)` + regexp.QuoteMeta(name) + `\s*=\s*(?:"([^"]*)"|'([^']*)')`)
}

// extractAttribute returns the value of the named attribute inside a raw tag
// such as `<boltAction type="file" filePath="a.txt">`.
func extractAttribute(tag, name string) string {
	re, ok := attributePatterns[name]
	if !ok {
		re = compileAttribute(name)
	}
	m := re.FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// commonPrefix returns the length of the longest common prefix of a and b.
func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func isTagBoundary(c byte) bool {
	return c == '>' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// indexFrom is strings.Index starting at offset from; -1 when absent.
func indexFrom(s, substr string, from int) int {
	if from > len(s) {
		return -1
	}
	idx := strings.Index(s[from:], substr)
	if idx == -1 {
		return -1
	}
	return from + idx
}
