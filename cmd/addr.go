package cmd

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

const defaultAddr = "127.0.0.1:8420"

// serveArgs returns everything on the command line after "serve".
func serveArgs() []string {
	if len(os.Args) > 2 {
		return os.Args[2:]
	}
	return nil
}

// parseServeAddr resolves the listen address for the serve command from its
// arguments. Both `psybrarian serve :8080` and `psybrarian serve --addr
// :8080` work; when both forms appear the flag wins because it parses last.
func parseServeAddr(args []string) (string, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addr := fs.String("addr", defaultAddr, "listen address (host:port)")

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		*addr = args[0]
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("parsing serve flags: %w", err)
	}

	if err := validateAddr(*addr); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", *addr, err)
	}
	return *addr, nil
}

// validateAddr rejects addresses net.Listen would choke on at startup rather
// than after config loading already succeeded.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in host:port format: %w", err)
	}

	if port == "" {
		return fmt.Errorf("port is required")
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if n < 0 || n > 65535 {
		return fmt.Errorf("port must be 0-65535 (0 = auto-assign), got %d", n)
	}

	// Hostnames pass through to the resolver; only reject what can never be
	// a host at all.
	if host != "" && net.ParseIP(host) == nil && strings.ContainsAny(host, " \t\n") {
		return fmt.Errorf("invalid host: %s", host)
	}

	return nil
}
