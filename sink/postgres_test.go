package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_Migrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for _, table := range []string{"pmc_bronze", "pmc_silver", "pmc_gold"} {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + table).
			WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	}

	s := NewPostgres(mock, Options{TablePrefix: "pmc"})
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Write(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO pmc_gold \(key, payload\) VALUES \(\$1, \$2\)\s+ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("PMC1", `{"pmcid":"1","title":"One"}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO pmc_silver`).
		WithArgs("a.xml", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	s := NewPostgres(mock, Options{TablePrefix: "pmc"})
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, LayerGold, "PMC1", record{PMCID: "1", Title: "One"}))

	err = s.Write(ctx, LayerSilver, "a.xml", record{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "writing silver record")

	assert.Error(t, s.Write(ctx, Layer("platinum"), "x", record{}))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, s.Close())
}
