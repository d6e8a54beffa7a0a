package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/genesis-mesh/node/internal/logger"
)

// Log is the node's single-writer, append-only audit hash chain. Every
// state-changing control event and security decision appends exactly
// one Event; nothing is ever mutated or deleted once appended.
type Log struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *bufio.Writer
	events   []Event
	lastHash [32]byte
	rotate   RotationPolicy
}

// RotationPolicy bounds the size of the active segment. When MaxBytes is
// exceeded on append, the active file is rotated and the new segment's
// first line records the prior segment's tail hash as prev_hash.
type RotationPolicy struct {
	MaxBytes int64
}

// Open opens (creating if necessary) the append-only log at path and
// replays it to recover the in-memory chain state and verify integrity.
func Open(path string, rotate RotationPolicy) (*Log, error) {
	l := &Log{path: path, rotate: rotate, lastHash: ZeroHash}

	if existing, err := os.ReadFile(path); err == nil {
		if err := l.replay(existing); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	l.file = f
	l.writer = bufio.NewWriter(f)
	return l, nil
}

func (l *Log) replay(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Event
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("audit: %w: malformed entry: %v", ErrChainBroken, err)
		}
		if e.PrevHash != l.lastHash {
			return fmt.Errorf("audit: %w: at index %d", ErrChainBroken, e.Index)
		}
		want, err := computeHash(&e)
		if err != nil {
			return err
		}
		if want != e.ThisHash {
			return fmt.Errorf("audit: %w: at index %d", ErrChainBroken, e.Index)
		}
		l.events = append(l.events, e)
		l.lastHash = e.ThisHash
	}
	return nil
}

// Append computes this_hash, links prev_hash to the current chain tail,
// persists the entry, and advances the chain. It is the only mutation
// path for the audit log.
func (l *Log) Append(kind EventKind, actor, subject string, detail map[string]interface{}) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Event{
		Index:     uint64(len(l.events)),
		PrevHash:  l.lastHash,
		Timestamp: time.Now(),
		Kind:      kind,
		Actor:     actor,
		Subject:   subject,
		Detail:    detail,
	}
	hash, err := computeHash(&e)
	if err != nil {
		return Event{}, err
	}
	e.ThisHash = hash

	line, err := json.Marshal(e)
	if err != nil {
		return Event{}, fmt.Errorf("audit: marshal event: %w", err)
	}
	line = append(line, '\n')

	if l.rotate.MaxBytes > 0 {
		if err := l.rotateIfNeeded(int64(len(line))); err != nil {
			return Event{}, err
		}
	}

	if _, err := l.writer.Write(line); err != nil {
		return Event{}, fmt.Errorf("audit: write event: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return Event{}, fmt.Errorf("audit: flush event: %w", err)
	}

	l.events = append(l.events, e)
	l.lastHash = e.ThisHash
	logger.Debug("audit event appended", logger.String("kind", string(kind)), logger.Any("index", e.Index))
	return e, nil
}

func (l *Log) rotateIfNeeded(incoming int64) error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("audit: stat log: %w", err)
	}
	if info.Size()+incoming <= l.rotate.MaxBytes {
		return nil
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("audit: flush before rotation: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("audit: close segment before rotation: %w", err)
	}
	rotatedPath := fmt.Sprintf("%s.%d", l.path, time.Now().UnixNano())
	if err := os.Rename(l.path, rotatedPath); err != nil {
		return fmt.Errorf("audit: rotate segment: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("audit: open rotated segment: %w", err)
	}
	l.file = f
	l.writer = bufio.NewWriter(f)
	logger.Info("audit log rotated", logger.String("segment", rotatedPath))
	return nil
}

// Verify walks the in-memory chain and confirms every prev_hash/this_hash
// link holds, returning the index of the first break (or -1, nil on a
// clean chain).
func (l *Log) Verify() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := ZeroHash
	for i := range l.events {
		e := l.events[i]
		if e.PrevHash != prev {
			return i, ErrChainBroken
		}
		want, err := computeHash(&e)
		if err != nil {
			return i, err
		}
		if want != e.ThisHash {
			return i, ErrChainBroken
		}
		prev = e.ThisHash
	}
	return -1, nil
}

// Len returns the number of events currently held in the chain.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Close flushes and closes the active segment.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}
