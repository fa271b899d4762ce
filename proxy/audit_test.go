// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/airlock/lib/clock"
)

func openTestAudit(t *testing.T, maxBytes int64, compression string) (*AuditLog, string, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := OpenAuditLog(AuditConfig{
		Path:        path,
		MaxBytes:    maxBytes,
		Compression: compression,
		Clock:       fake,
		Logger:      discardLogger(),
	})
	if err != nil {
		t.Fatalf("OpenAuditLog: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log, path, fake
}

func auditRecord(index int) AuditRecord {
	return AuditRecord{
		Time:      time.Date(2026, 3, 1, 12, 0, index, 0, time.UTC),
		RequestID: fmt.Sprintf("req-%03d", index),
		Tool:      "terraform",
		Args:      []string{"plan", fmt.Sprintf("-var=index=%d", index)},
		Cwd:       "/workspace",
		ExitCode:  index % 3,
	}
}

func TestAuditLogAppendAndRead(t *testing.T) {
	log, path, _ := openTestAudit(t, 0, "none")
	for index := range 5 {
		if err := log.Record(auditRecord(index)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("audit mode = %v, want 0600", info.Mode().Perm())
	}

	all, err := ReadAudit(path, 0)
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if len(all) != 5 || all[0].RequestID != "req-000" || all[4].RequestID != "req-004" {
		t.Fatalf("records = %+v", all)
	}

	newest, err := ReadAudit(path, 2)
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if len(newest) != 2 || newest[0].RequestID != "req-003" || newest[1].RequestID != "req-004" {
		t.Errorf("newest = %+v", newest)
	}
}

func TestAuditLogNeverRecordsOutput(t *testing.T) {
	log, path, _ := openTestAudit(t, 0, "none")
	log.Record(auditRecord(1))
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{`"stdout"`, `"stderr"`} {
		if strings.Contains(string(data), field) {
			t.Errorf("audit line contains %s: %s", field, data)
		}
	}
}

func TestAuditLogRotation(t *testing.T) {
	for _, compression := range []string{"zstd", "lz4", "none"} {
		t.Run(compression, func(t *testing.T) {
			log, path, fake := openTestAudit(t, 600, compression)
			for index := range 12 {
				fake.Advance(time.Second)
				if err := log.Record(auditRecord(index)); err != nil {
					t.Fatalf("Record %d: %v", index, err)
				}
			}

			segments, err := filepath.Glob(filepath.Join(filepath.Dir(path), "audit-*"))
			if err != nil {
				t.Fatal(err)
			}
			if len(segments) == 0 {
				t.Fatal("no rotated segments")
			}
			wantSuffix := map[string]string{"zstd": ".jsonl.zst", "lz4": ".jsonl.lz4", "none": ".jsonl"}[compression]
			for _, segment := range segments {
				if !strings.HasSuffix(segment, wantSuffix) {
					t.Errorf("segment %s lacks suffix %s", segment, wantSuffix)
				}
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Size() > 600 {
				t.Errorf("live file is %d bytes, over the rotation threshold", info.Size())
			}

			all, err := ReadAudit(path, 0)
			if err != nil {
				t.Fatalf("ReadAudit: %v", err)
			}
			if len(all) != 12 {
				t.Fatalf("ReadAudit returned %d records across segments, want 12", len(all))
			}
			for index, record := range all {
				if want := fmt.Sprintf("req-%03d", index); record.RequestID != want {
					t.Errorf("record %d = %s, want %s", index, record.RequestID, want)
				}
			}

			newest, err := ReadAudit(path, 3)
			if err != nil {
				t.Fatal(err)
			}
			if len(newest) != 3 || newest[2].RequestID != "req-011" {
				t.Errorf("newest = %+v", newest)
			}
		})
	}
}

func TestReadAuditSkipsTruncatedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	content := `{"time":"2026-03-01T12:00:00Z","request_id":"a","tool":"git","args":["status"],"exit_code":0,"duration_ms":1}` + "\n" + `{"time":"2026-03-01T12:00:01Z","request_id":"b","to`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	records, err := ReadAudit(path, 0)
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if len(records) != 1 || records[0].RequestID != "a" {
		t.Errorf("records = %+v", records)
	}
}

func TestReadAuditMissingFile(t *testing.T) {
	records, err := ReadAudit(filepath.Join(t.TempDir(), "audit.jsonl"), 10)
	if err != nil || len(records) != 0 {
		t.Errorf("ReadAudit = %v, %v", records, err)
	}
}

func TestOpenAuditLogRejectsUnknownCompression(t *testing.T) {
	if _, err := OpenAuditLog(AuditConfig{Path: filepath.Join(t.TempDir(), "a.jsonl"), Compression: "gzip"}); err == nil {
		t.Error("expected error")
	}
}
