package browser

import (
	"runtime"
	"strings"
	"testing"
)

func TestCommandRejectsNonWebURLs(t *testing.T) {
	tests := []string{
		"",
		"file:///etc/passwd",
		"javascript:alert(1)",
		"example.com",
		"https://",
		"://bad",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			if _, err := Command(raw); err == nil {
				t.Errorf("Command(%q) = nil error, want rejection", raw)
			}
		})
	}
}

func TestCommandBuildsPlatformOpener(t *testing.T) {
	switch runtime.GOOS {
	case "darwin", "linux", "windows":
	default:
		t.Skipf("no opener on %s", runtime.GOOS)
	}

	cmd, err := Command("https://example.com/help?x=1")
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	last := cmd.Args[len(cmd.Args)-1]
	if !strings.HasPrefix(last, "https://example.com/help") {
		t.Errorf("last arg = %q, want the URL", last)
	}
	if cmd.Process != nil {
		t.Error("Command must not start the process")
	}
}
