package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hotsaucejake/ledger-sub000/internal/model"
	"github.com/mattn/go-sqlite3"
)

// Serialize returns a byte-for-byte copy of db's "main" schema, suitable for
// sealing into the encrypted envelope. It borrows one connection from the
// pool for the duration of the call.
func Serialize(db *sql.DB) ([]byte, error) {
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, model.ErrorStorage(err, "failed to acquire connection for serialize")
	}
	defer conn.Close()

	var data []byte
	err = conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return model.ErrorStorage(nil, "underlying driver connection is not a SQLiteConn")
		}
		serialized, serr := sc.Serialize("main")
		if serr != nil {
			return serr
		}
		// Serialize may return a slice backed by sqlite3's own buffer; copy
		// it out before the connection (and that buffer) goes away.
		data = append([]byte(nil), serialized...)
		return nil
	})
	if err != nil {
		return nil, model.ErrorStorage(err, "failed to serialize database image")
	}
	return data, nil
}

// Deserialize opens a fresh in-memory database and loads data into its
// "main" schema, returning the ready-to-use handle. data must have been
// produced by Serialize (directly, or via decryption of a sealed envelope).
//
// As in OpenEmpty, the database gets its own uniquely named shared-cache
// namespace so this handle's image cannot alias another open handle's.
func Deserialize(data []byte) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", uuid.New().String())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, model.ErrorStorage(err, "failed to open in-memory database")
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, model.ErrorStorage(err, "failed to acquire connection for deserialize")
	}

	err = conn.Raw(func(driverConn any) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return model.ErrorStorage(nil, "underlying driver connection is not a SQLiteConn")
		}
		return sc.Deserialize(data, "main")
	})
	conn.Close()
	if err != nil {
		db.Close()
		return nil, model.ErrorStorage(err, "failed to deserialize database image")
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, model.ErrorStorage(err, "failed to enable foreign keys after deserialize")
	}
	return db, nil
}
