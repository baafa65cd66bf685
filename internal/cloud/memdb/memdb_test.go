package memdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemwatch/internal/cloud"
)

func items() *DB {
	return New(
		NewRecord("Item", "a", map[string]any{"name": "Alpha", "rank": 1}),
		NewRecord("Note", "n", map[string]any{"name": "memo"}),
		NewRecord("Item", "b", nil),
		NewRecord("Item", "c", map[string]any{"name": "Gamma"}),
	)
}

func TestQueryFiltersTypeAndProjects(t *testing.T) {
	db := items()
	res, err := db.Query(context.Background(), cloud.Query{RecordType: "Item", DesiredKeys: []string{"name"}})
	require.NoError(t, err)

	require.Len(t, res.MatchResults, 3)
	assert.Equal(t, "a", res.MatchResults[0].ID.Name)
	assert.Equal(t, map[string]any{"name": "Alpha"}, res.MatchResults[0].Record.Fields)
	assert.Empty(t, res.MatchResults[1].Record.Fields)
	assert.Empty(t, res.Cursor)
	assert.Len(t, db.Queries(), 1)
}

func TestQueryLimitSetsCursor(t *testing.T) {
	res, err := items().Query(context.Background(), cloud.Query{RecordType: "Item", ResultsLimit: 2})
	require.NoError(t, err)
	assert.Len(t, res.MatchResults, 2)
	assert.Equal(t, "c", res.Cursor)
}

func TestQueryFailures(t *testing.T) {
	db := items()
	db.FailRecord("b", cloud.Errorf(cloud.CodeInternal, "gone"))

	res, err := db.Query(context.Background(), cloud.Query{RecordType: "Item"})
	require.NoError(t, err)
	assert.Nil(t, res.MatchResults[1].Record)
	assert.Equal(t, cloud.CodeInternal, cloud.CodeOf(res.MatchResults[1].Err))

	_, err = db.Query(context.Background(), cloud.Query{
		RecordType: "Item",
		Predicate:  cloud.Predicate{Filters: []cloud.Filter{{Field: "name"}}},
	})
	assert.Equal(t, cloud.CodeBadRequest, cloud.CodeOf(err))

	_, err = db.Query(context.Background(), cloud.Query{RecordType: "Item", Zone: "Other"})
	assert.Equal(t, cloud.CodeZoneNotFound, cloud.CodeOf(err))

	db.FailQuery(cloud.Errorf(cloud.CodeThrottled, "busy"))
	_, err = db.Query(context.Background(), cloud.Query{RecordType: "Item"})
	assert.Equal(t, cloud.CodeThrottled, cloud.CodeOf(err))

	db.FailQuery(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = db.Query(ctx, cloud.Query{RecordType: "Item"})
	assert.Equal(t, cloud.CodeNetworkFailure, cloud.CodeOf(err))
}
