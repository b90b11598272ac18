// Package bunstore implements store.Store using the Bun ORM with
// PostgreSQL dialect. The unique index on (issue_id, subscriber_id)
// makes the database the durable source of truth for job dedupe, which
// is what horizontally scaled deployments must rely on instead of the
// in-process idempotency cache.
//
// The caller owns the *bun.DB lifecycle — bunstore never closes it.
// Pass the db handle through the constructor:
//
//	import (
//	    "github.com/uptrace/bun"
//	    "github.com/uptrace/bun/dialect/pgdialect"
//	    "github.com/uptrace/bun/driver/pgdriver"
//	    bunstore "github.com/squidi0n/fluxao-sub000/store/bun"
//	)
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	store := bunstore.New(db)
//	store.Migrate(ctx)
package bunstore
