package naming

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// Generator produces collision-free names for artifacts created by
// concurrent workers: temp material files, generated tracks, draft projects.
// Uniqueness stacks four components: a microsecond timestamp, a process-wide
// sequence standing in for caller identity, the process id, and a random
// token. The random token is the backstop; the other components are already
// expected to differ between concurrent callers.
type Generator struct {
	seq  atomic.Uint64
	pid  int
	now  func() time.Time
	rand func() string
}

// NewGenerator constructs a Generator bound to the current process.
func NewGenerator() *Generator {
	return &Generator{
		pid:  os.Getpid(),
		now:  time.Now,
		rand: func() string { return uuid.NewString()[:8] },
	}
}

// Generate builds a unique name from the given prefix and extension. The
// extension should include its dot ("" is fine for directories and tracks).
// Directory creation for the resulting path is the caller's responsibility.
func (g *Generator) Generate(prefix, extension string) string {
	timestamp := g.now().UnixMicro()
	seq := g.seq.Add(1)
	token := g.rand()

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "artifact"
	}
	return fmt.Sprintf("%s_%d_%d_%d_%s%s", prefix, timestamp, seq, g.pid%10000, token, extension)
}

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// ProjectName derives a draft project name from a record title: full-width
// characters are narrowed, unsafe characters replaced, length capped, and a
// timestamp appended so repeated runs over the same record never collide.
func (g *Generator) ProjectName(title string) string {
	base := SanitizeTitle(title)
	if base == "" {
		base = "video_batch"
	}
	return fmt.Sprintf("%s_%s", base, g.now().Format("20060102_150405"))
}

// SanitizeTitle normalizes a human-entered title into a filesystem-safe
// fragment. CJK text passes through untouched apart from width folding.
func SanitizeTitle(title string) string {
	folded := width.Narrow.String(strings.TrimSpace(title))
	cleaned := unsafeNameChars.ReplaceAllString(folded, "_")
	cleaned = strings.Trim(cleaned, "_")
	runes := []rune(cleaned)
	if len(runes) > 20 {
		cleaned = string(runes[:20])
	}
	return cleaned
}

// DisplayTitle renders a title for logs and report tables.
func DisplayTitle(title string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "(untitled)"
	}
	return cases.Title(language.Und, cases.NoLower).String(trimmed)
}
