package store

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
)

// Table DDL. valid_to is NOT NULL by convention: open versions carry the
// far-future sentinel (see domain.FarFuture).
var createTableCQL = []string{
	`CREATE TABLE IF NOT EXISTS asset (
		id int,
		name text,
		description text,
		system_date timestamp,
		is_deleted boolean,
		valid_from timestamp,
		valid_to timestamp,
		attributes map<text, text>,
		PRIMARY KEY (id, valid_from)
	) WITH CLUSTERING ORDER BY (valid_from DESC)`,
	`CREATE TABLE IF NOT EXISTS data_source (
		id int,
		name text,
		description text,
		system_date timestamp,
		provider text,
		attributes map<text, text>,
		is_deleted boolean,
		valid_from timestamp,
		valid_to timestamp,
		PRIMARY KEY (id, valid_from)
	) WITH CLUSTERING ORDER BY (valid_from DESC)`,
	`CREATE TABLE IF NOT EXISTS data (
		asset_id int,
		data_source_id int,
		business_date date,
		system_date timestamp,
		values_double map<text, double>,
		values_int map<text, bigint>,
		values_text map<text, text>,
		is_deleted boolean,
		valid_from timestamp,
		valid_to timestamp,
		PRIMARY KEY ((asset_id, data_source_id), business_date, system_date)
	) WITH CLUSTERING ORDER BY (business_date DESC, system_date DESC)`,
}

var tableNames = []string{"asset", "data_source", "data"}

// CreateTables creates the three version tables if missing.
func CreateTables(ctx context.Context, sess *gocql.Session) error {
	for _, cql := range createTableCQL {
		if err := sess.Query(cql).WithContext(ctx).Exec(); err != nil {
			return storeErr("create tables", err)
		}
	}
	return nil
}

// DropTables removes the three version tables.
func DropTables(ctx context.Context, sess *gocql.Session) error {
	for _, name := range tableNames {
		if err := sess.Query(fmt.Sprintf("DROP TABLE IF EXISTS %s", name)).WithContext(ctx).Exec(); err != nil {
			return storeErr("drop tables", err)
		}
	}
	return nil
}

// TruncateTables empties the three version tables.
func TruncateTables(ctx context.Context, sess *gocql.Session) error {
	for _, name := range tableNames {
		if err := sess.Query(fmt.Sprintf("TRUNCATE %s", name)).WithContext(ctx).Exec(); err != nil {
			return storeErr("truncate tables", err)
		}
	}
	return nil
}
