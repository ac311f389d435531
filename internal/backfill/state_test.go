package backfill

import (
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *StateDB {
	t.Helper()
	db, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestMarkAndCheck verifies the basic mark/check cycle: a session is current
// only for the exact hash it was marked with.
func TestMarkAndCheck(t *testing.T) {
	db := openTemp(t)

	current, err := db.IsCurrent("w1", "hash-a")
	if err != nil {
		t.Fatalf("IsCurrent: %v", err)
	}
	if current {
		t.Error("unmarked session reported current")
	}

	if err := db.MarkCurrent("w1", "hash-a"); err != nil {
		t.Fatalf("MarkCurrent: %v", err)
	}

	current, err = db.IsCurrent("w1", "hash-a")
	if err != nil {
		t.Fatalf("IsCurrent: %v", err)
	}
	if !current {
		t.Error("marked session not reported current")
	}

	// A different hash means the payload changed and must re-import.
	current, err = db.IsCurrent("w1", "hash-b")
	if err != nil {
		t.Fatalf("IsCurrent: %v", err)
	}
	if current {
		t.Error("changed payload reported current")
	}
}

// TestMarkReplacesHash verifies re-marking a session updates its hash in
// place rather than accumulating rows.
func TestMarkReplacesHash(t *testing.T) {
	db := openTemp(t)

	if err := db.MarkCurrent("w1", "hash-a"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkCurrent("w1", "hash-b"); err != nil {
		t.Fatal(err)
	}

	if current, _ := db.IsCurrent("w1", "hash-a"); current {
		t.Error("old hash still current after re-mark")
	}
	if current, _ := db.IsCurrent("w1", "hash-b"); !current {
		t.Error("new hash not current after re-mark")
	}
}

// TestClear verifies Clear drops every entry. The cache must be emptied when
// storage is reset, or the resync would skip sessions the reset removed.
func TestClear(t *testing.T) {
	db := openTemp(t)

	for _, id := range []string{"w1", "w2", "w3"} {
		if err := db.MarkCurrent(id, "h"); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	for _, id := range []string{"w1", "w2", "w3"} {
		if current, _ := db.IsCurrent(id, "h"); current {
			t.Errorf("session %s still current after Clear", id)
		}
	}
}

// TestStatePersistsAcrossOpens verifies marks survive a close and reopen,
// since the cache exists to speed up separate CLI invocations.
func TestStatePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	db, err := OpenStateDB(dir)
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	if err := db.MarkCurrent("w1", "hash-a"); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db2, err := OpenStateDB(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	if current, _ := db2.IsCurrent("w1", "hash-a"); !current {
		t.Error("mark lost across close/reopen")
	}
}

// TestOpenCreatesDir verifies the state directory is created on demand.
func TestOpenCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	db, err := OpenStateDB(dir)
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	db.Close()
}
