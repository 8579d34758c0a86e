package probe

import (
	"slices"
	"strings"
)

// Level names a flag preset. LevelCustom marks caller-supplied flags.
type Level string

const (
	LevelQuick    Level = "quick"
	LevelComplete Level = "complete"
	LevelFull     Level = "full"
	LevelCustom   Level = "custom"
)

var (
	quickFlags = []string{"-status-code", "-title", "-web-server", "-ip", "-asn", "-cdn"}

	deepFlags = []string{
		"-probe", "-server", "-vhost", "-fhr", "-td", "-csp-probe",
		"-jarm", "-favicon", "-sc", "-irh",
	}

	completeFlags = slices.Concat(quickFlags, deepFlags, []string{"-bp", "-tls-grab", "-http2"})
	fullFlags     = slices.Concat(quickFlags, deepFlags, []string{"-include-response"})
)

// Preset describes one fixed flag set and the tool that exposes it.
type Preset struct {
	Level       Level    `json:"level"`
	Tool        string   `json:"name"`
	Description string   `json:"description"`
	Usage       string   `json:"usage"`
	Flags       []string `json:"-"`
	Parameters  string   `json:"parameters"`
	Example     string   `json:"example"`
}

// SelectionGuidelines tells an agent which preset to reach for.
const SelectionGuidelines = "Start with http_quick_recon for initial discovery, upgrade to " +
	"http_complete_recon for detailed analysis, and only use http_full_recon when content " +
	"analysis is explicitly required."

var presets = []Preset{
	{
		Level:       LevelQuick,
		Tool:        "http_quick_recon",
		Description: "Fast, lightweight HTTP reconnaissance that provides essential information with minimal overhead",
		Usage:       "Use for initial reconnaissance or when scanning large numbers of hosts",
		Flags:       quickFlags,
		Example:     `http_quick_recon(targets='example.com\ntest.com')`,
	},
	{
		Level: LevelComplete,
		Tool:  "http_complete_recon",
		Description: "Comprehensive HTTP reconnaissance that collects detailed information about targets " +
			"without retrieving full page content",
		Usage:   "Use when detailed metadata is needed for security assessment",
		Flags:   completeFlags,
		Example: `http_complete_recon(targets='example.com\ntest.com')`,
	},
	{
		Level:       LevelFull,
		Tool:        "http_full_recon",
		Description: "Complete HTTP reconnaissance including full page body content for detailed analysis",
		Usage: "ONLY use when explicitly required for content analysis. " +
			"Significantly increases response size and processing time",
		Flags:   fullFlags,
		Example: `http_full_recon(targets='example.com', confirm=true)`,
	},
}

func init() {
	for i := range presets {
		presets[i].Parameters = strings.Join(presets[i].Flags, " ")
	}
}

// Presets returns the fixed presets in ascending order of depth.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		p.Flags = slices.Clone(p.Flags)
		out[i] = p
	}
	return out
}

// PresetFlags returns a copy of the flags for level, or nil for an unknown level.
func PresetFlags(level Level) []string {
	for _, p := range presets {
		if p.Level == level {
			return slices.Clone(p.Flags)
		}
	}
	return nil
}

// ParseLevel maps a preset name to its Level.
func ParseLevel(name string) (Level, bool) {
	for _, p := range presets {
		if string(p.Level) == name {
			return p.Level, true
		}
	}
	return "", false
}
