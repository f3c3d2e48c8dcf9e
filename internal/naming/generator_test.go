package naming

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerateUniqueUnderConcurrency(t *testing.T) {
	gen := NewGenerator()
	const workers = 8
	const perWorker = 1250 // 10k names total

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				local = append(local, gen.Generate("audio", ".mp3"))
			}
			mu.Lock()
			for _, name := range local {
				seen[name] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d distinct names, got %d", workers*perWorker, len(seen))
	}
}

func TestGenerateShape(t *testing.T) {
	gen := NewGenerator()
	name := gen.Generate("digital_video", ".mp4")
	if !strings.HasPrefix(name, "digital_video_") {
		t.Fatalf("missing prefix: %q", name)
	}
	if !strings.HasSuffix(name, ".mp4") {
		t.Fatalf("missing extension: %q", name)
	}

	name = gen.Generate("", "")
	if !strings.HasPrefix(name, "artifact_") {
		t.Fatalf("empty prefix not defaulted: %q", name)
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := map[string]string{
		"AI技术的发展前景":   "AI技术的发展前景",
		"hello, world!": "hello_world",
		"  spaced  ":    "spaced",
		"":              "",
		"ＦＵＬＬｗｉｄｔｈ":     "FULLwidth",
	}
	for input, want := range cases {
		if got := SanitizeTitle(input); got != want {
			t.Fatalf("SanitizeTitle(%q) = %q, want %q", input, got, want)
		}
	}

	long := strings.Repeat("长", 40)
	if got := SanitizeTitle(long); len([]rune(got)) != 20 {
		t.Fatalf("length cap not applied: %d runes", len([]rune(got)))
	}
}

func TestDisplayTitle(t *testing.T) {
	cases := map[string]string{
		"quarterly recap": "Quarterly Recap",
		"AI技术的发展前景":      "AI技术的发展前景",
		"  trimmed  ":     "Trimmed",
		"":                "(untitled)",
		"   ":             "(untitled)",
	}
	for input, want := range cases {
		if got := DisplayTitle(input); got != want {
			t.Fatalf("DisplayTitle(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestProjectNameNeverEmpty(t *testing.T) {
	gen := NewGenerator()
	name := gen.ProjectName("")
	if !strings.HasPrefix(name, "video_batch_") {
		t.Fatalf("fallback project name missing: %q", name)
	}
}
