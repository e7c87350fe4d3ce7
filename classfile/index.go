package classfile

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Index is a persistent classpath index: class name -> image path.
// It spares the loader a directory probe per miss on large classpaths
// and survives across runs in a SQLite database.
type Index struct {
	db *sql.DB
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS classes (
	name  TEXT PRIMARY KEY,
	path  TEXT NOT NULL
);`

// OpenIndex opens (creating if needed) an index database at path.
// Use ":memory:" for a throwaway index.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("classfile: open index %s: %w", path, err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("classfile: init index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database.
func (ix *Index) Close() error { return ix.db.Close() }

// Lookup returns the cached image path for a class name.
func (ix *Index) Lookup(name string) (path string, ok bool, err error) {
	err = ix.db.QueryRow(`SELECT path FROM classes WHERE name = ?`, name).Scan(&path)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("classfile: index lookup %s: %w", name, err)
	}
	return path, true, nil
}

// Put records the image path for a class name, replacing any prior entry.
func (ix *Index) Put(name, path string) error {
	_, err := ix.db.Exec(
		`INSERT INTO classes(name, path) VALUES(?, ?)
		 ON CONFLICT(name) DO UPDATE SET path = excluded.path`, name, path)
	if err != nil {
		return fmt.Errorf("classfile: index put %s: %w", name, err)
	}
	return nil
}

// Rebuild drops the index and rescans the classpath directories for
// image files. Earlier directories win for duplicate class names.
func (ix *Index) Rebuild(dirs []string) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("classfile: index rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM classes`); err != nil {
		return fmt.Errorf("classfile: index clear: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO classes(name, path) VALUES(?, ?) ON CONFLICT(name) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("classfile: index rebuild: %w", err)
	}
	defer stmt.Close()

	for _, dir := range dirs {
		root := dir
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, Ext) {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(strings.TrimSuffix(rel, Ext))
			_, err = stmt.Exec(name, path)
			return err
		})
		if err != nil {
			return fmt.Errorf("classfile: index scan %s: %w", dir, err)
		}
	}
	return tx.Commit()
}
