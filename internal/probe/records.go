package probe

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anstrom/tellix/internal/errors"
)

// maxRecordSize bounds a single output line. Full mode embeds response
// bodies, so lines can be large.
const maxRecordSize = 64 << 20

// ReadRecords parses a line-delimited JSON file. A missing or empty file
// yields an empty, non-nil slice. Blank lines are skipped. Any other line
// that is not valid JSON fails the whole read.
func ReadRecords(path string) ([]json.RawMessage, error) {
	records := []json.RawMessage{}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, errors.WrapProbeError(errors.CodeFileSystem, "failed to open output file", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		// Unmarshal copies the bytes, the scanner buffer is reused
		var record json.RawMessage
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, errors.WrapProbeError(errors.CodeOutputParse,
				fmt.Sprintf("Failed to parse tool output at line %d", lineNo), err).
				WithContext("line", lineNo)
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.WrapProbeError(errors.CodeOutputParse,
			fmt.Sprintf("Failed to read tool output after line %d", lineNo), err)
	}

	return records, nil
}
