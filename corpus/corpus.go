// Package corpus keeps explored testcases in a SQLite database so that
// repeated explorations only add paths not seen before.
package corpus

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("corpus: cbor enc mode: %v", err))
	}
	encMode = em
}

const schema = `CREATE TABLE IF NOT EXISTS testcases (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	program  TEXT NOT NULL,
	key      TEXT NOT NULL,
	calldata BLOB,
	payload  BLOB NOT NULL,
	UNIQUE (program, key)
)`

// Entry is one stored path of one program.
type Entry struct {
	// Program identifies the bytecode, see ProgramID.
	Program  string
	Key      string
	Calldata []byte

	Predicates []string
	Branches   []uint64
	Status     string
}

type payload struct {
	Predicates []string `cbor:"1,keyasint,omitempty"`
	Branches   []uint64 `cbor:"2,keyasint,omitempty"`
	Status     string   `cbor:"3,keyasint"`
}

func ProgramID(code []byte) string {
	sum := sha256.Sum256(code)
	return hex.EncodeToString(sum[:])
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open corpus '%s'", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create corpus schema")
	}
	return &Store{db: db}, nil
}

// Put stores e unless the program already has a path with the same key.
func (s *Store) Put(e Entry) (added bool, err error) {
	data, err := encMode.Marshal(payload{
		Predicates: e.Predicates,
		Branches:   e.Branches,
		Status:     e.Status,
	})
	if err != nil {
		return false, errors.Wrap(err, "encode payload")
	}
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO testcases (program, key, calldata, payload) VALUES (?, ?, ?, ?)",
		e.Program, e.Key, e.Calldata, data,
	)
	if err != nil {
		return false, errors.Wrap(err, "insert testcase")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "insert testcase")
	}
	return n > 0, nil
}

// List returns the entries of program in insertion order, or every entry
// when program is empty.
func (s *Store) List(program string) ([]Entry, error) {
	query := "SELECT program, key, calldata, payload FROM testcases"
	var args []any
	if program != "" {
		query += " WHERE program = ?"
		args = append(args, program)
	}
	rows, err := s.db.Query(query+" ORDER BY id", args...)
	if err != nil {
		return nil, errors.Wrap(err, "query testcases")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			data []byte
			p    payload
		)
		if err := rows.Scan(&e.Program, &e.Key, &e.Calldata, &data); err != nil {
			return nil, errors.Wrap(err, "scan testcase")
		}
		if err := cbor.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrapf(err, "decode payload of '%s'", e.Key)
		}
		e.Predicates, e.Branches, e.Status = p.Predicates, p.Branches, p.Status
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "query testcases")
}

func (s *Store) Close() error {
	return s.db.Close()
}
