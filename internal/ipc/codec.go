package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// maxMessageBytes bounds one JSON line in either direction.
const maxMessageBytes = 64 << 10

// errMalformed marks a line that arrived but could not be decoded.
var errMalformed = errors.New("malformed message")

// writeMessage encodes v as a single newline-terminated JSON line.
func writeMessage(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// readMessage decodes one newline-terminated JSON line into v. Transport
// failures are returned as-is; oversized or invalid lines wrap errMalformed.
func readMessage(r io.Reader, v any) error {
	reader := bufio.NewReader(r)
	var line []byte
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err != nil {
			return err
		}
		line = append(line, chunk...)
		if len(line) > maxMessageBytes {
			return fmt.Errorf("%w: exceeds %d bytes", errMalformed, maxMessageBytes)
		}
		if !isPrefix {
			break
		}
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}
