package main

import (
	"fmt"
	"io"
	"strings"
)

const (
	outputModePrint   = "print"
	outputModeCopy    = "copy"
	outputModeSSHCopy = "ssh-copy"
)

func normalizeOutputMode(mode string) (string, bool) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case outputModePrint:
		return outputModePrint, true
	case outputModeCopy:
		return outputModeCopy, true
	case outputModeSSHCopy, "sshcopy", "ssh", "osc52":
		return outputModeSSHCopy, true
	default:
		return "", false
	}
}

// resolveOutputMode reconciles the config default with the mode flags.
// At most one mode flag may be set.
func resolveOutputMode(defaultMode string, printFlag, copyFlag, sshFlag bool) (string, error) {
	selected := 0
	if printFlag {
		selected++
	}
	if copyFlag {
		selected++
	}
	if sshFlag {
		selected++
	}
	if selected > 1 {
		return "", fmt.Errorf("only one of --print, --copy, or --ssh-copy may be set")
	}
	switch {
	case printFlag:
		return outputModePrint, nil
	case copyFlag:
		return outputModeCopy, nil
	case sshFlag:
		return outputModeSSHCopy, nil
	}
	if defaultMode == "" {
		return outputModePrint, nil
	}
	normalized, ok := normalizeOutputMode(defaultMode)
	if !ok {
		return "", fmt.Errorf("invalid output mode %q in configuration (expected print, copy, or ssh-copy)", defaultMode)
	}
	return normalized, nil
}

// emitOutput delivers the document per the resolved mode. w receives
// printed output and the OSC 52 escape; the copy mode talks to the
// platform clipboard instead.
func emitOutput(w io.Writer, mode string, doc string) error {
	switch mode {
	case outputModeCopy:
		if err := copyToClipboard(doc); err != nil {
			return err
		}
		fmt.Fprintln(w, "Document copied to clipboard")
		return nil
	case outputModeSSHCopy:
		return copyToOSC52(w, doc)
	default:
		fmt.Fprint(w, doc)
		return nil
	}
}
