package cli

import (
	"strings"
)

const (
	ModeAuth     = "auth-service"
	ModeTracking = "tracking-service"
	ModeAdmin    = "admin-service"
	ModeToken    = "token"
)

// canonicalMode maps a mode name or one of its aliases to the subcommand name.
func canonicalMode(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ModeAuth, "auth", "a":
		return ModeAuth, true
	case ModeTracking, "tracking", "t":
		return ModeTracking, true
	case ModeAdmin, "admin":
		return ModeAdmin, true
	case ModeToken:
		return ModeToken, true
	default:
		return "", false
	}
}

// RewriteMode turns the legacy `--mode=<service>` (or `--mode <service>`) form into a
// leading subcommand so that
//
//	ride-booking --mode=tracking --max-concurrent=150
//
// runs the same as `ride-booking tracking-service --max-concurrent=150`. Unknown modes are
// passed through as the subcommand so cobra reports them.
func RewriteMode(args []string) []string {
	var mode string
	out := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok && mode == "" {
			mode = after
			continue
		}
		if arg == "--mode" && mode == "" && i+1 < len(args) {
			mode = args[i+1]
			i++
			continue
		}
		out = append(out, arg)
	}

	if mode == "" {
		return out
	}
	if m, ok := canonicalMode(mode); ok {
		mode = m
	}
	return append([]string{mode}, out...)
}
