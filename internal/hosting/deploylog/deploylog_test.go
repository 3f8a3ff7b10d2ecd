package deploylog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestWrite_ReadableBack(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	entries := []Entry{
		{DeployID: "d1", GameKey: "cave-story", Engine: "easyrpg", Outcome: "ok", DurationMS: 1200},
		{DeployID: "d2", GameKey: "alice_world", Engine: "sandbox", Outcome: "ok", Warning: "server_restart_failed", DurationMS: 600},
	}
	for _, e := range entries {
		if err := l.Write(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "deploys-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("log files = %v (err %v)", files, err)
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var got []Entry
	sc := bufio.NewScanner(dec.IOReadCloser())
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != len(entries) {
		t.Fatalf("entries = %d, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].DeployID != entries[i].DeployID || got[i].Warning != entries[i].Warning {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
		if got[i].At == "" {
			t.Fatalf("entry %d missing timestamp", i)
		}
	}
}
