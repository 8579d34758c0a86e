package probe

import (
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/anstrom/tellix/internal/errors"
)

// shellMetacharacters are refused in caller flags. The binary never runs
// through a shell, so their presence means the caller expected one.
const shellMetacharacters = ";&|<>$`"

// builtinDeniedFlags redirect the binary's own input or output, which the
// workspace owns. Names are stored without leading dashes.
var builtinDeniedFlags = []string{
	"l", "list",
	"o", "output",
	"srd", "store-response-dir",
	"config",
}

// jsonFlags request line-delimited JSON output.
var jsonFlags = []string{"-j", "-json", "--json"}

// ParseParams tokenizes a raw flag string the way a shell would split words,
// without any variable, command or glob expansion.
func ParseParams(params string) ([]string, error) {
	if strings.TrimSpace(params) == "" {
		return []string{}, nil
	}

	if i := strings.IndexAny(params, shellMetacharacters); i >= 0 {
		return nil, errors.NewProbeError(errors.CodeValidation,
			fmt.Sprintf("params contain shell metacharacter %q", params[i])).
			WithContext("params", params)
	}

	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false

	args, err := parser.Parse(params)
	if err != nil {
		return nil, errors.WrapProbeError(errors.CodeValidation, "params could not be tokenized", err).
			WithContext("params", params)
	}
	return args, nil
}

// ValidateArgs rejects tokens that would redirect the binary's input or
// output, or that contain shell metacharacters. extraDenied adds flags on top
// of the built-in list.
func ValidateArgs(args, extraDenied []string) error {
	denied := make(map[string]struct{}, len(builtinDeniedFlags)+len(extraDenied))
	for _, name := range builtinDeniedFlags {
		denied[name] = struct{}{}
	}
	for _, flag := range extraDenied {
		denied[flagName(flag)] = struct{}{}
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, shellMetacharacters) || strings.ContainsRune(arg, 0) {
			return errors.NewProbeError(errors.CodeValidation,
				fmt.Sprintf("flag %q contains shell metacharacters", arg)).
				WithContext("flag", arg)
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		if _, blocked := denied[flagName(arg)]; blocked {
			return errors.NewProbeError(errors.CodeValidation,
				fmt.Sprintf("flag %q is not allowed; input and output files are managed by tellix", arg)).
				WithContext("flag", arg)
		}
	}
	return nil
}

// flagName strips leading dashes and any "=value" suffix.
func flagName(arg string) string {
	name := strings.TrimLeft(arg, "-")
	if i := strings.IndexByte(name, '='); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// HasJSONFlag reports whether args already request JSON output. Only exact
// tokens count, so "-jarm" is not mistaken for "-j".
func HasJSONFlag(args []string) bool {
	for _, arg := range args {
		for _, flag := range jsonFlags {
			if arg == flag {
				return true
			}
		}
	}
	return false
}

// BuildArgs composes the argument vector for one invocation: the caller's
// flags, the workspace input and output files, and -json unless the caller
// already asked for it.
func BuildArgs(args []string, targetsFile, resultsFile string) []string {
	argv := make([]string, 0, len(args)+5)
	argv = append(argv, args...)
	argv = append(argv, "-l", targetsFile, "-o", resultsFile)
	if !HasJSONFlag(args) {
		argv = append(argv, "-json")
	}
	return argv
}

// CommandLine renders the binary and caller flags for display.
func CommandLine(binary string, args []string) string {
	if len(args) == 0 {
		return binary
	}
	return binary + " " + strings.Join(args, " ")
}
