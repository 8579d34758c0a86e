// Package protocol implements the tellix line protocol: one JSON request per
// input line, one JSON response per output line. Requests select an action
// (metadata, help or run) and are served by a Prober.
package protocol

import (
	"encoding/json"
)

// Supported actions.
const (
	ActionMetadata = "metadata"
	ActionHelp     = "help"
	ActionRun      = "run"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ValidActions lists the actions in the order they are reported to callers.
var ValidActions = []string{ActionMetadata, ActionHelp, ActionRun}

// Request is a single line-protocol request.
type Request struct {
	Action  string `json:"action" validate:"required" example:"run"`
	Targets string `json:"targets,omitempty" validate:"max=1048576" example:"example.com"`
	Params  string `json:"params,omitempty" validate:"max=8192" example:"-status-code -title"`
	Confirm bool   `json:"confirm,omitempty"`
}

// Response is a single line-protocol response. Status is always "success" or
// "error". Results is present, possibly empty, on every successful run.
type Response struct {
	Status   string            `json:"status" example:"success"`
	Results  []json.RawMessage `json:"results,omitzero" swaggertype:"array,object"`
	Metadata *Metadata         `json:"metadata,omitempty"`
	Help     string            `json:"help,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Example is a sample request shown in the capability description.
type Example struct {
	Description string `json:"description"`
	Action      string `json:"action"`
	Targets     string `json:"targets"`
	Params      string `json:"params"`
}

// Metadata describes the probing capability to an agent.
type Metadata struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Implementation string    `json:"implementation"`
	Guidance       string    `json:"guidance"`
	Examples       []Example `json:"examples"`
}

// DefaultMetadata is the static answer to the metadata action.
func DefaultMetadata() *Metadata {
	return &Metadata{
		Name:           "http_probe",
		Description:    "A tool for HTTP probing and reconnaissance using httpx",
		Implementation: "ProjectDiscovery's httpx",
		Guidance: `This tool helps analyze HTTP endpoints at scale. Before using:
1. First request 'help' to understand available options
2. Consider target scope carefully - use specific domains rather than broad ranges
3. Select appropriate parameters based on your objective (status checks, technology detection, etc.)
4. Always review results for false positives
5. For large target lists, consider using in batches
Input and output files are managed for you, so -l, -list, -o and -output are rejected.
When providing results to the user, organize them in a meaningful way that highlights the most relevant information.`,
		Examples: []Example{
			{
				Description: "Basic status check of domains",
				Action:      ActionRun,
				Targets:     "example.com\ngoogle.com",
				Params:      "-status-code -title -follow-redirects",
			},
			{
				Description: "Technology detection scan",
				Action:      ActionRun,
				Targets:     "github.com",
				Params:      "-tech-detect -status-code -title",
			},
		},
	}
}

// Success builds a success response.
func Success() Response {
	return Response{Status: StatusSuccess}
}

// Failure builds an error response carrying msg.
func Failure(msg string) Response {
	return Response{Status: StatusError, Error: msg}
}
