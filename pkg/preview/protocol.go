// Package preview renders icon PNGs inline in a terminal, using the
// graphics protocol the terminal advertises and falling back to Unicode
// half blocks.
package preview

import (
	"os"
	"strings"
)

// Protocol identifies which image rendering protocol to use.
type Protocol int

const (
	ProtocolNone       Protocol = iota // No graphics output
	ProtocolKitty                      // Kitty graphics protocol (Ghostty, Kitty, WezTerm)
	ProtocolITerm2                     // iTerm2 inline images protocol
	ProtocolSixel                      // Sixel graphics protocol
	ProtocolHalfblocks                 // Unicode half-block characters with ANSI color
)

var protocolNames = [...]string{
	ProtocolNone:       "none",
	ProtocolKitty:      "kitty",
	ProtocolITerm2:     "iterm2",
	ProtocolSixel:      "sixel",
	ProtocolHalfblocks: "halfblocks",
}

// String returns the human-readable name of the protocol.
func (p Protocol) String() string {
	if p >= 0 && int(p) < len(protocolNames) {
		return protocolNames[p]
	}
	return "unknown"
}

// Detect picks a protocol from environment variables alone, without
// querying the terminal. Sessions over SSH always get half blocks.
func Detect() Protocol {
	proto := detectBase()
	if proto != ProtocolHalfblocks && isSSH() {
		return ProtocolHalfblocks
	}
	return proto
}

// SelectWithOverride returns the protocol named by override, or Detect()
// when override is empty, "auto" or unknown.
// Valid override values: "kitty", "iterm2", "sixel", "halfblocks", "none".
func SelectWithOverride(override string) Protocol {
	switch strings.ToLower(override) {
	case "kitty":
		return ProtocolKitty
	case "iterm2":
		return ProtocolITerm2
	case "sixel":
		return ProtocolSixel
	case "halfblocks", "unicode", "half-blocks":
		return ProtocolHalfblocks
	case "none", "off", "disabled":
		return ProtocolNone
	default:
		return Detect()
	}
}

func detectBase() Protocol {
	switch strings.ToLower(os.Getenv("TERM_PROGRAM")) {
	case "ghostty", "kitty", "wezterm":
		return ProtocolKitty
	case "iterm.app":
		return ProtocolITerm2
	}

	switch os.Getenv("TERM") {
	case "xterm-ghostty", "xterm-kitty":
		return ProtocolKitty
	}

	switch {
	case os.Getenv("KITTY_WINDOW_ID") != "", os.Getenv("WEZTERM_EXECUTABLE") != "":
		return ProtocolKitty
	case os.Getenv("ITERM_SESSION_ID") != "", os.Getenv("LC_TERMINAL") == "iTerm2":
		return ProtocolITerm2
	}

	// Windows Terminal, conhost and everything else.
	return ProtocolHalfblocks
}

// isSSH reports whether the current session is running over SSH.
func isSSH() bool {
	return os.Getenv("SSH_TTY") != "" ||
		os.Getenv("SSH_CONNECTION") != "" ||
		os.Getenv("SSH_CLIENT") != ""
}
