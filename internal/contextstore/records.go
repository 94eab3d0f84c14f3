package contextstore

import (
	"encoding/json"
	"fmt"

	"github.com/soulwire/soulwire/pkg/message"
)

// recordKind discriminates the three line shapes that may appear in a
// context JSONL file: an ordinary message, a token-usage marker, or a
// checkpoint marker.
type recordKind int

const (
	recordMessage recordKind = iota
	recordUsage
	recordCheckpoint
)

type usageMarker struct {
	Role       string `json:"role"`
	TokenCount int64  `json:"token_count"`
}

type checkpointMarker struct {
	Role string `json:"role"`
	ID   int    `json:"id"`
}

type peekRecord struct {
	Role string `json:"role"`
}

// decodeLine classifies and decodes a single JSONL line.
func decodeLine(line []byte) (recordKind, message.Message, usageMarker, checkpointMarker, error) {
	var peek peekRecord
	if err := json.Unmarshal(line, &peek); err != nil {
		return 0, message.Message{}, usageMarker{}, checkpointMarker{}, fmt.Errorf("contextstore: decode record: %w", err)
	}
	switch peek.Role {
	case "_usage":
		var u usageMarker
		if err := json.Unmarshal(line, &u); err != nil {
			return 0, message.Message{}, usageMarker{}, checkpointMarker{}, err
		}
		return recordUsage, message.Message{}, u, checkpointMarker{}, nil
	case "_checkpoint":
		var c checkpointMarker
		if err := json.Unmarshal(line, &c); err != nil {
			return 0, message.Message{}, usageMarker{}, checkpointMarker{}, err
		}
		return recordCheckpoint, message.Message{}, usageMarker{}, c, nil
	default:
		var m message.Message
		if err := json.Unmarshal(line, &m); err != nil {
			return 0, message.Message{}, usageMarker{}, checkpointMarker{}, err
		}
		return recordMessage, m, usageMarker{}, checkpointMarker{}, nil
	}
}

func encodeUsage(tokenCount int64) ([]byte, error) {
	return json.Marshal(usageMarker{Role: "_usage", TokenCount: tokenCount})
}

func encodeCheckpoint(id int) ([]byte, error) {
	return json.Marshal(checkpointMarker{Role: "_checkpoint", ID: id})
}
