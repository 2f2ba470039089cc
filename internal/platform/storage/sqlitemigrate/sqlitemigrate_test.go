package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func TestApplyRecordsEachFileOnce(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"0001_init.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE rooms(id TEXT PRIMARY KEY);"),
		},
	}

	if err := Apply(db, migrations); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := Apply(db, migrations); err != nil {
		t.Fatalf("replay should be a no-op: %v", err)
	}

	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("ledger rows = %d, want 1", rows)
	}
	if !tableExists(t, db, "rooms") {
		t.Fatal("expected migrated table to exist")
	}
}

func TestApplyRunsFilesInLexicalOrder(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"0002_members.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE members(room_id TEXT NOT NULL REFERENCES rooms (id));"),
		},
		"0001_rooms.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE rooms(id TEXT PRIMARY KEY);"),
		},
	}

	if err := Apply(db, migrations); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !tableExists(t, db, "members") {
		t.Fatal("expected dependent table to exist")
	}
}

func TestApplyIgnoresDownSection(t *testing.T) {
	db := openInMemoryDB(t)

	migrations := fstest.MapFS{
		"0001_init.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE rooms(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE rooms;"),
		},
	}

	if err := Apply(db, migrations); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !tableExists(t, db, "rooms") {
		t.Fatal("expected the Down section to be skipped")
	}
}

func TestApplyLeavesFailedFileUnrecorded(t *testing.T) {
	db := openInMemoryDB(t)

	bad := fstest.MapFS{
		"0001_init.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREAT TABLE rooms(id TEXT);"),
		},
	}
	if err := Apply(db, bad); err == nil {
		t.Fatal("expected a broken migration to fail")
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 0 {
		t.Fatalf("ledger rows = %d, want failed file unrecorded", rows)
	}

	fixed := fstest.MapFS{
		"0001_init.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE rooms(id TEXT PRIMARY KEY);"),
		},
	}
	if err := Apply(db, fixed); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("ledger rows = %d, want the fixed file recorded", rows)
	}
}

func TestApplyToleratesPreexistingSchema(t *testing.T) {
	db := openInMemoryDB(t)
	if _, err := db.Exec("CREATE TABLE rooms(id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("seed schema: %v", err)
	}

	migrations := fstest.MapFS{
		"0001_init.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE rooms(id TEXT PRIMARY KEY);"),
		},
	}
	if err := Apply(db, migrations); err != nil {
		t.Fatalf("apply over existing schema: %v", err)
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("ledger rows = %d, want 1", rows)
	}
}

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query int value: %v", err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tableName).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("check table exists: %v", err)
	}
	return name == tableName
}
