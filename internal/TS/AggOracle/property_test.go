package AggOracle

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyw0ng95/aggoracle/internal/IS"
	"github.com/cyw0ng95/aggoracle/internal/QE"
	"github.com/cyw0ng95/aggoracle/internal/QP"
	"github.com/cyw0ng95/aggoracle/internal/SF/util"
	"github.com/cyw0ng95/aggoracle/internal/TS/ExprGen"
)

// Every three-valued outcome of P lands in exactly one partition.
func TestPartitionSoundness(t *testing.T) {
	db, err := QE.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("CREATE TABLE v (a INTEGER, b INTEGER)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO v VALUES (1, 2), (2, 1), (NULL, 1), (1, NULL), (NULL, NULL), (0, 0)")
	require.NoError(t, err)

	cols := []*QP.ColumnRef{
		{Table: "v", Name: "a", Affinity: QP.AffinityInteger},
		{Table: "v", Name: "b", Affinity: QP.AffinityInteger},
	}
	gen := ExprGen.New(util.NewLCG(1234), cols, ExprGen.DefaultOptions())
	for i := 0; i < 200; i++ {
		parts := Split(gen.RandomBooleanExpression())
		query := fmt.Sprintf(
			"SELECT COUNT(*) FROM v WHERE ((%s) IS TRUE) + ((%s) IS TRUE) + ((%s) IS TRUE) <> 1",
			parts.True.SQL(), parts.False.SQL(), parts.Null.SQL())
		var bad int
		require.NoError(t, db.QueryRow(query).Scan(&bad), query)
		assert.Zero(t, bad, query)
	}
}

// On a correct engine the direct and partitioned queries never disagree.
// Values are integers bounded so that no arithmetic overflows or rounds.
func TestEquivalenceOnSQLite(t *testing.T) {
	db, err := QE.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	reg := sqliteRegistry(t)
	cat := IS.NewCatalog(db, QP.SQLite, 2)
	o := New(Deps{
		Schema:  cat,
		Exprs:   GeneratorSource(ExprGen.DefaultOptions()),
		Exec:    QE.NewExecutor(db),
		Errors:  reg,
		Dialect: QP.SQLite,
	}, DefaultConfig())

	counts := map[Outcome]int{}
	for seed := uint64(1); seed <= 400; seed++ {
		rnd := util.NewLCG(seed)
		if seed%20 == 1 {
			opts := IS.DefaultPopulateOptions()
			opts.MinRows = 1
			_, err := IS.Populate(ctx, db, QP.SQLite, rnd.Split(), opts)
			require.NoError(t, err)
			require.NoError(t, cat.Load(ctx))
		}

		res, err := o.Check(ctx, rnd)
		require.NoError(t, err, "seed %d", seed)
		counts[res.Outcome]++
		if res.Outcome == Bug {
			t.Errorf("seed %d: %s\n%s", seed, res.Reason, res.Evidence.Script())
		}
	}
	assert.Greater(t, counts[Pass], counts[Inconclusive])
}

func TestCheckDeterministic(t *testing.T) {
	db, err := QE.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = IS.Populate(ctx, db, QP.SQLite, util.NewLCG(77), IS.PopulateOptions{
		Tables: 2, MinColumns: 2, MaxColumns: 2, MinRows: 3, MaxRows: 3,
	})
	require.NoError(t, err)
	cat := IS.NewCatalog(db, QP.SQLite, 2)
	require.NoError(t, cat.Load(ctx))

	o := New(Deps{
		Schema:  cat,
		Exprs:   GeneratorSource(ExprGen.DefaultOptions()),
		Exec:    QE.NewExecutor(db),
		Errors:  sqliteRegistry(t),
		Dialect: QP.SQLite,
	}, DefaultConfig())

	for seed := uint64(1); seed <= 20; seed++ {
		a, errA := o.Check(ctx, util.NewLCG(seed))
		b, errB := o.Check(ctx, util.NewLCG(seed))
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b, "seed %d", seed)
	}
}
