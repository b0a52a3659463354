// Package ignore matches paths against gitignore-style patterns read from
// .iconfontignore files.
package ignore

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// FileName is the ignore file looked up at the root of every source walk.
const FileName = ".iconfontignore"

// Pattern is one compiled ignore rule.
type Pattern struct {
	Regexp *regexp.Regexp // Compiled form of Line.
	Negate bool           // Rule started with '!' and re-includes matches.
	Line   string         // Original pattern line.
	LineNo int            // Line number in the source (1-based).
}

// Matcher holds ignore rules in the order they were added; later rules win.
type Matcher struct {
	Patterns []*Pattern
	logger   *zap.Logger
}

// New creates an empty Matcher.
func New(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger}
}

// Load compiles every existing file in paths, in order. Missing files are
// skipped; empty path entries are ignored.
func Load(logger *zap.Logger, paths ...string) (*Matcher, error) {
	m := New(logger)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := m.CompileFile(p); err != nil {
			if os.IsNotExist(err) {
				m.logger.Debug("Ignore file not found", zap.String("filePath", p))
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

// CompileLines adds patterns from lines. Blank lines and comments are skipped.
func (m *Matcher) CompileLines(lines ...string) {
	for i, line := range lines {
		re, negate := parsePatternLine(line)
		if re == nil {
			continue
		}
		m.Patterns = append(m.Patterns, &Pattern{
			Regexp: re,
			Negate: negate,
			Line:   line,
			LineNo: i + 1,
		})
	}
}

// CompileFile reads an ignore file and adds its patterns.
func (m *Matcher) CompileFile(fpath string) error {
	content, err := os.ReadFile(fpath)
	if err != nil {
		return err
	}

	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	before := len(m.Patterns)
	m.CompileLines(lines...)
	m.logger.Debug("Compiled ignore patterns",
		zap.String("filePath", fpath),
		zap.Int("patternCount", len(m.Patterns)-before))
	return nil
}

// Match reports whether path (relative to the walk root) is ignored.
func (m *Matcher) Match(path string) bool {
	matched, _ := m.MatchWithPattern(path)
	return matched
}

// MatchWithPattern is Match that also returns the deciding pattern.
func (m *Matcher) MatchWithPattern(path string) (bool, *Pattern) {
	if m == nil {
		return false, nil
	}
	normalized := filepath.ToSlash(path)

	matched := false
	var decidedBy *Pattern
	for _, p := range m.Patterns {
		if p.Regexp.MatchString(normalized) {
			matched = !p.Negate
			decidedBy = p
		}
	}
	return matched, decidedBy
}

// parsePatternLine turns one ignore line into a regexp and a negation flag.
// It returns nil for blank lines, comments and patterns that fail to compile.
func parsePatternLine(line string) (*regexp.Regexp, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, false
	}

	negate := false
	if strings.HasPrefix(trimmed, "!") {
		negate = true
		trimmed = strings.TrimPrefix(trimmed, "!")
	}

	// \# and \! escape a literal leading character.
	if strings.HasPrefix(trimmed, `\#`) || strings.HasPrefix(trimmed, `\!`) {
		trimmed = trimmed[1:]
	}

	rooted := strings.HasPrefix(trimmed, "/")
	dirOnly := strings.HasSuffix(trimmed, "/")
	body := strings.TrimSuffix(strings.TrimPrefix(trimmed, "/"), "/")
	if body == "" {
		return nil, false
	}

	expr := escapeSpecialChars(body)
	expr = handleDoubleStarPatterns(expr)
	expr = wildcardToRegex(expr)
	expr = anchorPattern(expr, rooted, dirOnly)

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, false
	}
	return re, negate
}

var (
	doubleStarMiddle   = regexp.MustCompile(`/\*\*/`)
	doubleStarTrailing = regexp.MustCompile(`/\*\*$`)
	doubleStarLeading  = regexp.MustCompile(`^\*\*/`)
)

// escapeSpecialChars escapes regex metacharacters except '*', '?' and '/'.
func escapeSpecialChars(pattern string) string {
	for _, char := range `\.+()|^$[]{}` {
		pattern = strings.ReplaceAll(pattern, string(char), `\`+string(char))
	}
	return pattern
}

// handleDoubleStarPatterns rewrites '**' segments. Placeholders keep the
// single-star pass from touching them.
func handleDoubleStarPatterns(pattern string) string {
	pattern = doubleStarMiddle.ReplaceAllString(pattern, "\x00MID\x00")
	pattern = doubleStarTrailing.ReplaceAllString(pattern, "\x00END\x00")
	pattern = doubleStarLeading.ReplaceAllString(pattern, "\x00LEAD\x00")
	return pattern
}

// wildcardToRegex converts '*' and '?' and expands '**' placeholders.
func wildcardToRegex(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "*", `[^/]*`)
	pattern = strings.ReplaceAll(pattern, "?", `[^/]`)
	pattern = strings.ReplaceAll(pattern, "\x00MID\x00", `(/|/.+/)`)
	pattern = strings.ReplaceAll(pattern, "\x00END\x00", `/.*`)
	pattern = strings.ReplaceAll(pattern, "\x00LEAD\x00", `(.*/)?`)
	return pattern
}

// anchorPattern anchors the expression to whole path segments. Unrooted
// patterns may match at any depth; matching a directory also matches
// everything below it.
func anchorPattern(expr string, rooted, dirOnly bool) string {
	suffix := `(/.*)?$`
	if dirOnly {
		suffix = `/.*$`
	}
	if rooted {
		return "^" + expr + suffix
	}
	return "^(.*/)?" + expr + suffix
}
