package runner

import "strings"

// DefaultLongRunningPatterns lists commands that start servers which never exit
// on their own.
var DefaultLongRunningPatterns = []string{
	"npm run dev",
	"npm start",
	"yarn dev",
	"yarn start",
	"pnpm dev",
	"pnpm start",
	"vite",
	"next dev",
	"ng serve",
	"serve",
	"python -m http.server",
	"python3 -m http.server",
	"php -S",
	"ruby -run -e httpd",
}

// Classifier decides whether a shell command is long-running.
type Classifier struct {
	patterns []string
}

// NewClassifier builds a Classifier over patterns. Nil selects
// DefaultLongRunningPatterns; an empty non-nil slice classifies nothing as
// long-running.
func NewClassifier(patterns []string) *Classifier {
	if patterns == nil {
		patterns = DefaultLongRunningPatterns
	}
	lower := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lower = append(lower, p)
		}
	}
	return &Classifier{patterns: lower}
}

// IsLongRunning reports whether the trimmed, lower-cased command contains any
// of the patterns.
func (c *Classifier) IsLongRunning(command string) bool {
	cmd := strings.ToLower(strings.TrimSpace(command))
	for _, p := range c.patterns {
		if strings.Contains(cmd, p) {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the normalized patterns.
func (c *Classifier) Patterns() []string {
	return append([]string(nil), c.patterns...)
}

var defaultClassifier = NewClassifier(nil)

// IsLongRunning classifies command with DefaultLongRunningPatterns.
func IsLongRunning(command string) bool {
	return defaultClassifier.IsLongRunning(command)
}
