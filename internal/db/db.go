package db

import (
	"database/sql"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	stateDir = ".crewline"
	fileName = "crewline.db"
)

type Config struct {
	Workspace string
}

func stateRoot(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir)
}

// Path is where the database lives inside a workspace.
func Path(workspace string) string {
	return filepath.Join(stateRoot(workspace), fileName)
}

// EnsureWorkspace creates the state directory and returns it.
func EnsureWorkspace(workspace string) (string, error) {
	dir := stateRoot(workspace)
	return dir, os.MkdirAll(dir, 0o755)
}

// Open opens the workspace database with foreign keys enforced. Write
// transactions take the lock at BEGIN and wait on busy_timeout.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return sql.Open("sqlite", "file:"+Path(cfg.Workspace)+"?"+q.Encode())
}
