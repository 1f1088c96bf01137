// Package database opens the node's local SQLite file and applies its
// embedded schema migrations.
//
// The only consumer is the SQLite preference store, which keeps persisted
// entity values across restarts. The connection is limited to a single
// handle; every access is a short, synchronous statement.
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: "/var/lib/graylogic-node/prefs.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
