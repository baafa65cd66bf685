package cli

import (
	"github.com/idilsaglam/itemwatch/internal/cloud"
	"github.com/idilsaglam/itemwatch/internal/cloud/memdb"
	"github.com/idilsaglam/itemwatch/internal/fetcher"
)

const listTitle = "Items"

// demoDatabase serves a fixed set of records, one of them unreadable, so
// --demo shows the same behavior as a live store.
func demoDatabase() cloud.Database {
	rec := func(name, title string) cloud.Record {
		return memdb.NewRecord(fetcher.RecordType, name, map[string]any{fetcher.NameField: title})
	}
	db := memdb.New(
		rec("demo-1", "Notebook"),
		rec("demo-2", "Fountain pen"),
		memdb.NewRecord(fetcher.RecordType, "demo-3", nil),
		rec("demo-4", "Desk lamp"),
		rec("demo-5", "Headphones"),
	)
	db.FailRecord("demo-4", cloud.Errorf(cloud.CodeInternal, "record unavailable"))
	return db
}
