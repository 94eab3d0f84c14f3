package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// ReplayRecorded reads a Wire recording file written by the optional
// recorder and invokes fn for each (timestamp, message) pair in order.
// It is the offline counterpart to the recorder: nothing in the original
// design replays a session, but the donor repo's tape package shows the
// idiom is worth having for debugging and `soulwire replay`.
func ReplayRecorded(path string, fn func(timestamp int64, msg WireMessage) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("wire: open recording: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec recordedLine
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("wire: decode recording line %d: %w", lineNo, err)
		}
		msg, err := ToWireMessage(rec.Message)
		if err != nil {
			return fmt.Errorf("wire: reconstruct recording line %d: %w", lineNo, err)
		}
		if err := fn(rec.Timestamp, msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}
