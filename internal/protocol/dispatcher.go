package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/tellix/internal/errors"
	"github.com/anstrom/tellix/internal/logging"
	"github.com/anstrom/tellix/internal/probe"
)

// MaxLineSize bounds a single request line.
const MaxLineSize = 1 << 20

// Prober is the part of probe.Prober the dispatcher needs.
type Prober interface {
	Probe(ctx context.Context, req probe.Request) (*probe.Result, error)
	Help(ctx context.Context) (string, error)
}

// Dispatcher routes requests to the prober. It keeps no per-request state.
type Dispatcher struct {
	prober   Prober
	logger   *logging.Logger
	validate *validator.Validate
	metadata *Metadata
}

// NewDispatcher creates a dispatcher. A nil logger uses the default logger.
func NewDispatcher(prober Prober, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		prober:   prober,
		logger:   logger.WithComponent("protocol"),
		validate: validator.New(),
		metadata: DefaultMetadata(),
	}
}

// Handle decodes and dispatches one request line. Every failure becomes an
// error response, so a bad line never affects the next one.
func (d *Dispatcher) Handle(ctx context.Context, line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		d.logger.Warn("Rejected malformed request", "error", err)
		return Failure(fmt.Sprintf("Invalid request: %v", err))
	}

	resp, _ := d.Dispatch(ctx, req)
	return resp
}

// Dispatch runs a decoded request. The error is returned alongside the
// response so transports can map it onto their own status codes.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	resp, err := d.dispatch(ctx, req)
	if err != nil {
		if errors.IsClientError(err) {
			d.logger.Warn("Request rejected", "action", req.Action, "error", err)
		} else {
			d.logger.Error("Request failed", "action", req.Action, "error", err)
		}
		return Failure(errors.Message(err)), err
	}
	return resp, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (Response, error) {
	if err := d.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
			return Response{}, errors.ErrMissingParameter("action")
		}
		return Response{}, errors.WrapProbeError(errors.CodeValidation, "Invalid request", err)
	}

	switch req.Action {
	case ActionMetadata:
		resp := Success()
		resp.Metadata = d.metadata
		return resp, nil

	case ActionHelp:
		help, err := d.prober.Help(ctx)
		if err != nil {
			return Response{}, err
		}
		resp := Success()
		resp.Help = help
		return resp, nil

	case ActionRun:
		return d.run(ctx, req)

	default:
		return Response{}, errors.ErrUnknownAction(req.Action, ValidActions)
	}
}

func (d *Dispatcher) run(ctx context.Context, req Request) (Response, error) {
	if probe.CountTargets(req.Targets) == 0 {
		return Response{}, errors.ErrMissingParameter("targets")
	}

	args, err := probe.ParseParams(req.Params)
	if err != nil {
		return Response{}, err
	}

	result, err := d.prober.Probe(ctx, probe.Request{
		Targets: req.Targets,
		Args:    args,
		Level:   probe.LevelCustom,
	})
	if err != nil {
		return Response{}, err
	}

	resp := Success()
	resp.Results = result.Records
	if resp.Results == nil {
		resp.Results = []json.RawMessage{}
	}
	return resp, nil
}

// Serve reads request lines from r and writes one response line to w for
// each. Blank lines are skipped and overlong lines get an error response.
// It returns nil at end of input, or the context or write error that stopped it.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	writer := bufio.NewWriter(w)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, tooLong, err := readLine(reader, MaxLineSize)
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}

		var resp Response
		switch {
		case tooLong:
			d.logger.Warn("Rejected overlong request line", "limit", MaxLineSize)
			resp = Failure(fmt.Sprintf("Invalid request: line exceeds %d bytes", MaxLineSize))
		case len(bytes.TrimSpace(line)) == 0:
			continue
		default:
			resp = d.Handle(ctx, line)
		}

		// Encode appends the newline that terminates the response
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if err := writer.Flush(); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

// readLine returns the next line without its terminator. Lines longer than
// limit are consumed in full but reported as tooLong with no content.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if len(line) > 0 || tooLong {
				return line, tooLong, nil
			}
			return nil, false, err
		}
		if !tooLong {
			if len(line)+len(chunk) > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			if line == nil {
				line = []byte{}
			}
			return line, tooLong, nil
		}
	}
}
