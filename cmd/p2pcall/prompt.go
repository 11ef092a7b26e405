package main

import (
	"net"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/p2pcall/internal/util"
)

// askPort prompts the user for a port number until one in lo..65535 is entered.
func askPort(prompt string, lo int) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		port, err := parsePort(raw, lo)
		if err == nil {
			pterm.Println()
			return port
		}

		util.LogWarning("%v", err)
		pterm.Println()
	}
}

// askHost prompts the user for the host address until a usable one is entered.
func askHost() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Host address (e.g. 192.168.1.20)").
			Show()

		host, ok := normalizeHost(raw)
		if ok {
			pterm.Println()
			return host
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a host name or IP address")
	}
}

func parsePort(raw string, lo int) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port < lo || port > 65535 {
		return 0, &portError{raw: raw, lo: lo}
	}
	return port, nil
}

type portError struct {
	raw string
	lo  int
}

func (e *portError) Error() string {
	return "invalid port number " + strconv.Quote(e.raw) + ": must be " + strconv.Itoa(e.lo) + " ~ 65535"
}

// normalizeHost trims the input and strips a trailing :port or IPv6 brackets.
func normalizeHost(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " /") {
		return "", false
	}
	if h, _, err := net.SplitHostPort(raw); err == nil {
		raw = h
	}
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	return raw, raw != ""
}
