// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/airlock/lib/clock"
)

// AuditRecord is one line of the audit log. Command output is never
// recorded.
type AuditRecord struct {
	Time          time.Time `json:"time"`
	RequestID     string    `json:"request_id"`
	Tool          string    `json:"tool"`
	Args          []string  `json:"args"`
	Cwd           string    `json:"cwd,omitempty"`
	WorkspaceHash string    `json:"workspace_hash,omitempty"`
	ExitCode      int       `json:"exit_code"`
	Blocked       bool      `json:"blocked,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Error         string    `json:"error,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
}

// Auditor receives one record per handled tool request.
type Auditor interface {
	Record(record AuditRecord) error
}

// AuditConfig configures an AuditLog.
type AuditConfig struct {
	Path string

	// MaxBytes triggers rotation when the next record would grow the
	// live file past it. Zero disables rotation.
	MaxBytes int64

	// Compression is applied to rotated segments: "zstd", "lz4", or
	// "none".
	Compression string

	Clock  clock.Clock
	Logger *slog.Logger
}

// AuditLog appends JSON Lines records to a file, rotating it into
// compressed segments named <base>-<UTC timestamp>.jsonl[.zst|.lz4].
type AuditLog struct {
	config AuditConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// OpenAuditLog opens (or creates) the live audit file with mode 0600.
func OpenAuditLog(config AuditConfig) (*AuditLog, error) {
	switch config.Compression {
	case "", "none", "zstd", "lz4":
	default:
		return nil, fmt.Errorf("unknown audit compression %q", config.Compression)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	log := &AuditLog{config: config}
	if err := log.open(); err != nil {
		return nil, err
	}
	return log, nil
}

func (a *AuditLog) open() error {
	file, err := os.OpenFile(a.config.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	a.file = file
	a.size = info.Size()
	return nil
}

// Record appends one record, rotating first if needed.
func (a *AuditLog) Record(record AuditRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling audit record: %w", err)
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return fmt.Errorf("audit log is closed")
	}

	if a.config.MaxBytes > 0 && a.size > 0 && a.size+int64(len(line)) > a.config.MaxBytes {
		if err := a.rotate(); err != nil {
			return err
		}
	}

	written, err := a.file.Write(line)
	a.size += int64(written)
	if err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	return nil
}

// rotate moves the live file aside, compresses it, and opens a fresh
// live file. Called with a.mu held.
func (a *AuditLog) rotate() error {
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("closing audit log for rotation: %w", err)
	}
	a.file = nil

	segment := segmentBase(a.config.Path) + "-" + a.config.Clock.Now().UTC().Format("20060102T150405.000000000Z") + ".jsonl"
	if err := os.Rename(a.config.Path, segment); err != nil {
		if openErr := a.open(); openErr != nil {
			return errors.Join(fmt.Errorf("rotating audit log: %w", err), openErr)
		}
		return fmt.Errorf("rotating audit log: %w", err)
	}
	if err := a.open(); err != nil {
		return err
	}

	compressed, err := compressSegment(segment, a.config.Compression)
	if err != nil {
		// The uncompressed segment is kept; the live log is unaffected.
		a.config.Logger.Warn("audit segment compression failed", "segment", segment, "error", err)
		return nil
	}
	a.config.Logger.Info("audit log rotated", "segment", compressed)
	return nil
}

// Close closes the live file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

func segmentBase(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func compressSegment(segment, compression string) (string, error) {
	var extension string
	switch compression {
	case "zstd":
		extension = ".zst"
	case "lz4":
		extension = ".lz4"
	default:
		return segment, nil
	}

	source, err := os.Open(segment)
	if err != nil {
		return "", err
	}
	defer source.Close()

	target := segment + extension
	destination, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", err
	}

	var encoder io.WriteCloser
	if compression == "zstd" {
		encoder, err = zstd.NewWriter(destination, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			destination.Close()
			os.Remove(target)
			return "", err
		}
	} else {
		encoder = lz4.NewWriter(destination)
	}

	if _, err := io.Copy(encoder, source); err != nil {
		encoder.Close()
		destination.Close()
		os.Remove(target)
		return "", err
	}
	if err := encoder.Close(); err != nil {
		destination.Close()
		os.Remove(target)
		return "", err
	}
	if err := destination.Close(); err != nil {
		os.Remove(target)
		return "", err
	}
	if err := os.Remove(segment); err != nil {
		return "", err
	}
	return target, nil
}

// ReadAudit returns the newest limit records in chronological order,
// reading rotated segments when the live file holds fewer. A limit of
// zero or less returns everything. Lines that do not parse (a record
// cut short by a crash) are skipped.
func ReadAudit(path string, limit int) ([]AuditRecord, error) {
	segments, err := filepath.Glob(segmentBase(path) + "-*.jsonl*")
	if err != nil {
		return nil, err
	}
	sort.Strings(segments)
	files := append(segments, path)

	var records []AuditRecord
	for index := len(files) - 1; index >= 0; index-- {
		fileRecords, err := readAuditFile(files[index])
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(fileRecords, records...)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func readAuditFile(path string) ([]AuditRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var reader io.Reader = file
	switch filepath.Ext(path) {
	case ".zst":
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer decoder.Close()
		reader = decoder
	case ".lz4":
		reader = lz4.NewReader(file)
	}

	var records []AuditRecord
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		var record AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

var _ Auditor = (*AuditLog)(nil)
