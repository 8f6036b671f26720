package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperifyio/rqbconf/internal/params"
)

func sampleRecord() params.Record {
	r := params.New()
	r.BalanceLevel = "2"
	r.SetClusterMin(0, "500000")
	return r
}

func TestRecordCache_SaveGet(t *testing.T) {
	c := &RecordCache{Dir: t.TempDir()}
	key := KeyFrom("rqbalance", []byte(`<rqbalance balance_level="2"/>`))
	rec := sampleRecord()
	if err := c.Save(context.Background(), key, Entry{Node: "rqbalance", Source: "a.xml", Record: rec}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordCache_Miss(t *testing.T) {
	c := &RecordCache{Dir: t.TempDir()}
	_, ok, err := c.Get(context.Background(), KeyFrom("x", nil))
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestRecordCache_MalformedEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := &RecordCache{Dir: dir}
	key := KeyFrom("x", []byte("y"))
	if err := os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok, err := c.Get(context.Background(), key); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestKeyFrom_SeparatesNodeAndDocument(t *testing.T) {
	if KeyFrom("ab", []byte("c")) == KeyFrom("a", []byte("bc")) {
		t.Fatal("node/document boundary not part of the key")
	}
	if KeyFrom("n", []byte("d")) != KeyFrom("n", []byte("d")) {
		t.Fatal("key not deterministic")
	}
}

func TestRecordCache_StrictPerms(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "records")
	c := &RecordCache{Dir: dir, StrictPerms: true}
	key := KeyFrom("rqbalance", []byte("doc"))
	if err := c.Save(context.Background(), key, Entry{Record: sampleRecord()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	finfo, err := os.Stat(filepath.Join(dir, key+".json"))
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if got := finfo.Mode() & 0o777; got != 0o600 {
		t.Fatalf("file mode = %o, want 0600", got)
	}
}

func TestPurgeByAge(t *testing.T) {
	dir := t.TempDir()
	c := &RecordCache{Dir: dir}
	oldKey := KeyFrom("old", nil)
	newKey := KeyFrom("new", nil)
	for _, k := range []string{oldKey, newKey} {
		if err := c.Save(context.Background(), k, Entry{Record: params.New()}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, oldKey+".json"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	removed, err := PurgeByAge(dir, time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := c.Get(context.Background(), oldKey); ok {
		t.Fatal("expired entry still present")
	}
	if _, ok, _ := c.Get(context.Background(), newKey); !ok {
		t.Fatal("fresh entry purged")
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dir not empty: %d entries", len(entries))
	}
	if err := ClearDir("  "); err == nil {
		t.Fatal("expected error for blank dir")
	}
}
