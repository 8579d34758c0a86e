package probe

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"

	"github.com/anstrom/tellix/internal/errors"
)

// hostProfile maps internationalized host names to their ASCII form. Strict
// STD3 rules are off because internal hosts with underscores are common.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.StrictDomainName(false),
)

// ParseTargets splits a newline separated target list into normalized
// targets. Blank lines are dropped. An empty list is reported as a missing
// parameter, and maxTargets caps the list when positive.
func ParseTargets(raw string, maxTargets int) ([]string, error) {
	lines := strings.Split(raw, "\n")
	targets := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		target, err := NormalizeTarget(line)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}

	if len(targets) == 0 {
		return nil, errors.ErrMissingParameter("targets")
	}

	if maxTargets > 0 && len(targets) > maxTargets {
		return nil, errors.NewProbeError(errors.CodeValidation,
			fmt.Sprintf("Too many targets: %d exceeds the limit of %d", len(targets), maxTargets)).
			WithContext("targets", len(targets))
	}

	return targets, nil
}

// CountTargets returns the number of non-blank lines without validating them.
func CountTargets(raw string) int {
	count := 0
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

// NormalizeTarget validates a single target and returns it with its host in
// ASCII form. Accepted shapes are URLs with an http or https scheme, bare host
// names or IP addresses with an optional port and path, and CIDR ranges.
func NormalizeTarget(target string) (string, error) {
	if strings.HasPrefix(target, "-") {
		return "", errors.ErrInvalidTarget(target, "targets may not start with '-'")
	}
	for _, r := range target {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", errors.ErrInvalidTarget(target, "contains whitespace or control characters")
		}
	}

	if strings.Contains(target, "://") {
		return normalizeURL(target)
	}

	if _, _, err := net.ParseCIDR(target); err == nil {
		return target, nil
	}

	hostPort, path := target, ""
	if i := strings.IndexAny(target, "/?#"); i >= 0 {
		hostPort, path = target[:i], target[i:]
	}

	normalized, err := normalizeHostPort(hostPort)
	if err != nil {
		return "", errors.ErrInvalidTarget(target, err.Error())
	}
	return normalized + path, nil
}

func normalizeURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", errors.ErrInvalidTarget(target, "not a valid URL")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", errors.ErrInvalidTarget(target, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}

	if u.Host == "" {
		return "", errors.ErrInvalidTarget(target, "URL has no host")
	}

	host, err := normalizeHostPort(u.Host)
	if err != nil {
		return "", errors.ErrInvalidTarget(target, err.Error())
	}
	u.Host = host
	return u.String(), nil
}

// normalizeHostPort validates host[:port], accepting bracketed and bare IPv6.
func normalizeHostPort(hostPort string) (string, error) {
	if hostPort == "" {
		return "", fmt.Errorf("missing host")
	}

	// Bare IPv6 has colons but no port
	if ip := net.ParseIP(hostPort); ip != nil {
		return hostPort, nil
	}

	host, port := hostPort, ""
	if h, p, err := net.SplitHostPort(hostPort); err == nil {
		host, port = h, p
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return "", fmt.Errorf("invalid port %q", port)
		}
	} else if strings.HasPrefix(hostPort, "[") {
		return "", fmt.Errorf("malformed IPv6 address")
	}

	normalized, err := normalizeHost(host)
	if err != nil {
		return "", err
	}

	if port == "" {
		return normalized, nil
	}
	return net.JoinHostPort(normalized, port), nil
}

func normalizeHost(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host name: %v", err)
	}

	if _, ok := dns.IsDomainName(ascii); !ok || strings.HasPrefix(ascii, ".") {
		return "", fmt.Errorf("invalid host name")
	}
	return ascii, nil
}
