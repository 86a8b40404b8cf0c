package main

import (
	"bytes"
	"encoding/base64"
	"runtime"
	"strings"
	"testing"
)

func TestOSC52Sequence(t *testing.T) {
	data := "hello"
	encoded := base64.StdEncoding.EncodeToString([]byte(data))

	cases := []struct {
		name string
		tmux string
		term string
		want string
	}{
		{"plain terminal", "", "xterm-256color", "\x1b]52;c;" + encoded + "\x07"},
		{"tmux passthrough", "1", "tmux-256color", "\x1bPtmux;\x1b]52;c;" + encoded + "\x07\x1b\\"},
		{"screen passthrough", "", "screen", "\x1bP\x1b]52;c;" + encoded + "\x07\x1b\\"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TMUX", tc.tmux)
			t.Setenv("TERM", tc.term)
			if got := osc52Sequence(data); got != tc.want {
				t.Fatalf("osc52Sequence(%q) = %q, want %q", data, got, tc.want)
			}
		})
	}
}

func TestEmitOutputPrint(t *testing.T) {
	var buf bytes.Buffer
	doc := "# Repository Structure\n\ncontent\n"
	if err := emitOutput(&buf, outputModePrint, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != doc {
		t.Fatalf("print mode must emit the document verbatim, got %q", buf.String())
	}
}

func TestEmitOutputSSHCopy(t *testing.T) {
	t.Setenv("TMUX", "")
	t.Setenv("TERM", "xterm-256color")

	var buf bytes.Buffer
	doc := "selected files"
	if err := emitOutput(&buf, outputModeSSHCopy, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(doc))
	if got := buf.String(); got != "\x1b]52;c;"+encoded+"\x07" {
		t.Fatalf("ssh-copy mode must write the OSC 52 escape, got %q", got)
	}
}

func TestClipboardToolsPerPlatform(t *testing.T) {
	tools := clipboardTools()
	if len(tools) == 0 {
		t.Fatal("every platform must offer at least one candidate")
	}
	switch runtime.GOOS {
	case "darwin":
		if tools[0].name != "pbcopy" {
			t.Fatalf("expected pbcopy first on darwin, got %q", tools[0].name)
		}
	case "windows":
		if tools[0].name != "clip" {
			t.Fatalf("expected clip first on windows, got %q", tools[0].name)
		}
	default:
		names := make([]string, len(tools))
		for i, tool := range tools {
			names[i] = tool.name
		}
		joined := strings.Join(names, ",")
		for _, want := range []string{"wl-copy", "xclip", "xsel"} {
			if !strings.Contains(joined, want) {
				t.Fatalf("expected %s among candidates, got %s", want, joined)
			}
		}
	}
}
