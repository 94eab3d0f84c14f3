// Package contextstore implements the append-only, checkpointed message
// history each session is backed by. The on-disk JSONL file is the sole
// authority; every in-memory field here is a derived view reconstructed by
// Restore.
package contextstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/soulwire/soulwire/pkg/message"
)

// ErrAlreadyRestored is returned when Restore is called on a Store that
// already has in-memory state — restoring twice (or restoring after
// mutation) is a programming error, not a recoverable condition.
var ErrAlreadyRestored = errors.New("contextstore: restore called on an already-populated store")

// ErrNoSuchCheckpoint is returned by RevertTo when the requested id is not
// less than the next checkpoint id that would be allocated.
var ErrNoSuchCheckpoint = errors.New("contextstore: no checkpoint with the given id")

// Store is the JSONL-backed, checkpointed, append-only history of one
// session. All exported methods are safe for concurrent use; the contract
// is nonetheless "one writer per turn" per spec — concurrent writers will
// serialize but callers should not rely on interleaving behavior.
type Store struct {
	mu sync.Mutex

	path     string
	restored bool

	history          []message.Message
	tokenCount       int64
	nextCheckpointID int
}

// New constructs a Store bound to path without reading it. Call Restore to
// populate in-memory state from whatever is already on disk (or start
// fresh if the file is missing/empty).
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path (the "file_backend").
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Restore scans the backing file and rebuilds in-memory state: history,
// token count from the last Usage record, and the next checkpoint id from
// max(checkpoint id)+1. A missing or empty file yields empty state. It is
// a programming error to call Restore more than once on the same Store.
func (s *Store) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restored {
		return ErrAlreadyRestored
	}
	s.restored = true

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("contextstore: open %s: %w", s.path, err)
	}
	defer f.Close()

	var history []message.Message
	var tokenCount int64
	maxCheckpoint := -1

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		kind, msg, usage, checkpoint, err := decodeLine(line)
		if err != nil {
			return fmt.Errorf("contextstore: restore %s: %w", s.path, err)
		}
		switch kind {
		case recordMessage:
			history = append(history, msg)
		case recordUsage:
			tokenCount = usage.TokenCount
		case recordCheckpoint:
			if checkpoint.ID > maxCheckpoint {
				maxCheckpoint = checkpoint.ID
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("contextstore: scan %s: %w", s.path, err)
	}

	s.history = history
	s.tokenCount = tokenCount
	s.nextCheckpointID = maxCheckpoint + 1
	return nil
}

// History returns a copy of the in-memory message sequence.
func (s *Store) History() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]message.Message, len(s.history))
	copy(out, s.history)
	return out
}

// TokenCount returns the most recently recorded token usage.
func (s *Store) TokenCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCount
}

// NCheckpoints returns the number of checkpoints allocated so far, i.e.
// the id the next Checkpoint call would allocate.
func (s *Store) NCheckpoints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextCheckpointID
}

// AppendMessage atomically appends each message to the file and, only once
// every write has succeeded, to memory — so a crash mid-write leaves the
// file (and the next restore) consistent even if memory never saw it.
func (s *Store) AppendMessage(msgs ...message.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("contextstore: open for append: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, m := range msgs {
		line, err := marshalLine(m)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	s.history = append(s.history, msgs...)
	return nil
}

// UpdateTokenCount writes a Usage marker and updates the in-memory count.
func (s *Store) UpdateTokenCount(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, err := encodeUsage(n)
	if err != nil {
		return err
	}
	if err := s.appendRaw(line); err != nil {
		return err
	}
	s.tokenCount = n
	return nil
}

// Checkpoint allocates the next checkpoint id, writes its marker, and —
// when addUserMessage is true — also appends a synthetic user message
// "CHECKPOINT <id>" used to seed the conversation a d-mail revert resumes.
// Returns the allocated id.
func (s *Store) Checkpoint(addUserMessage bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextCheckpointID
	s.nextCheckpointID++

	line, err := encodeCheckpoint(id)
	if err != nil {
		return 0, err
	}
	if err := s.appendRaw(line); err != nil {
		return 0, err
	}

	if addUserMessage {
		marker := message.System(fmt.Sprintf("CHECKPOINT %d", id))
		mLine, err := marshalLine(marker)
		if err != nil {
			return 0, err
		}
		if err := s.appendRaw(mLine); err != nil {
			return 0, err
		}
		s.history = append(s.history, marker)
	}
	return id, nil
}

// RevertTo rotates the current file to a numbered backup, then replays the
// rotated file into a fresh file at the original path up to (but excluding)
// the checkpoint record matching id, rebuilding in-memory state to match.
// Fails if id is not strictly less than the next checkpoint id.
func (s *Store) RevertTo(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id >= s.nextCheckpointID {
		return ErrNoSuchCheckpoint
	}

	rotated, err := s.rotate()
	if err != nil {
		return err
	}
	if rotated == "" {
		// No existing file to rotate (nothing was ever written); there is
		// nothing to replay, and no checkpoint below nextCheckpointID could
		// have been recorded either, which the guard above already caught
		// for nextCheckpointID==0. Treat as already-empty state.
		s.history = nil
		s.tokenCount = 0
		s.nextCheckpointID = 0
		return nil
	}

	return s.replayUpTo(rotated, id)
}

// Clear is equivalent to reverting to checkpoint 0, except it tolerates
// there being no checkpoint 0 at all: it rotates the current file and
// fully resets in-memory state without replaying anything back in.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rotate(); err != nil {
		return err
	}
	s.history = nil
	s.tokenCount = 0
	s.nextCheckpointID = 0
	return nil
}

// rotate renames the current backing file to the next available rotation
// path, returning that path (or "" if there was no file to rotate).
func (s *Store) rotate() (string, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	rotated, err := NextAvailableRotation(s.path)
	if err != nil {
		return "", err
	}
	if rotated == "" {
		return "", fmt.Errorf("contextstore: cannot rotate %s: parent directory missing", s.path)
	}
	if err := os.Rename(s.path, rotated); err != nil {
		return "", fmt.Errorf("contextstore: rotate %s: %w", s.path, err)
	}
	return rotated, nil
}

// replayUpTo reads rotatedPath and writes every record before the matching
// checkpoint id into a fresh file at s.path, rebuilding in-memory state
// from the same prefix.
func (s *Store) replayUpTo(rotatedPath string, targetID int) error {
	in, err := os.Open(rotatedPath)
	if err != nil {
		return fmt.Errorf("contextstore: open rotated file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("contextstore: create fresh file: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	var history []message.Message
	var tokenCount int64
	maxCheckpoint := -1

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		kind, msg, usage, checkpoint, err := decodeLine(line)
		if err != nil {
			return fmt.Errorf("contextstore: replay: %w", err)
		}
		if kind == recordCheckpoint && checkpoint.ID == targetID {
			break
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		switch kind {
		case recordMessage:
			history = append(history, msg)
		case recordUsage:
			tokenCount = usage.TokenCount
		case recordCheckpoint:
			if checkpoint.ID > maxCheckpoint {
				maxCheckpoint = checkpoint.ID
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}

	s.history = history
	s.tokenCount = tokenCount
	s.nextCheckpointID = maxCheckpoint + 1
	return nil
}

func (s *Store) appendRaw(line []byte) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func marshalLine(m message.Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
