// Package testutil provides shared helpers for the end-to-end tests, which
// drive the compiled binary and cannot import internal/ packages.
package testutil

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// A missing file is not an error. Existing env vars take precedence.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// FreeAddr returns a loopback address whose port was free a moment ago.
// Crashes if no port can be bound.
func FreeAddr() string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: reserving a port: %v\n", err)
		os.Exit(1)
	}

	addr := ln.Addr().String()
	ln.Close()

	return addr
}

// IsolatedEnv returns an environment for the binary whose home, config and
// data directories all live under root. A fixed OAuth client registration is
// included so commands that need credentials can start; set
// DRIVECAST_E2E_CLIENT_ID and DRIVECAST_E2E_CLIENT_SECRET (or put them in
// .env) to use a real one.
func IsolatedEnv(root string) []string {
	var env []string

	for _, k := range []string{"PATH", "TMPDIR"} {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}

	clientID := os.Getenv("DRIVECAST_E2E_CLIENT_ID")
	if clientID == "" {
		clientID = "e2e-client.apps.googleusercontent.com"
	}

	clientSecret := os.Getenv("DRIVECAST_E2E_CLIENT_SECRET")
	if clientSecret == "" {
		clientSecret = "e2e-secret"
	}

	return append(env,
		"HOME="+root,
		"XDG_CONFIG_HOME="+filepath.Join(root, "config"),
		"XDG_DATA_HOME="+filepath.Join(root, "data"),
		"DRIVECAST_CLIENT_ID="+clientID,
		"DRIVECAST_CLIENT_SECRET="+clientSecret,
	)
}
