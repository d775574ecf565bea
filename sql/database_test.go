package sql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionIsolation(t *testing.T) {
	db := InMemory(WithSchema("create table testing1 (id varchar primary key, field int);"))

	tx, err := db.Tx(context.Background())
	require.NoError(t, err)

	_, err = tx.Exec("insert into testing1(id, field) values (?1, ?2)", func(stmt *Statement) {
		stmt.BindText(1, "space")
		stmt.BindInt64(2, 1)
	}, nil)
	require.NoError(t, err)

	rows, err := tx.Exec("select 1 from testing1 where id = ?1", func(stmt *Statement) {
		stmt.BindText(1, "space")
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, rows)

	require.NoError(t, tx.Release())

	rows, err = db.Exec("select 1 from testing1 where id = ?1", func(stmt *Statement) {
		stmt.BindText(1, "space")
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, rows)
}

func TestTransactionCommit(t *testing.T) {
	db := InMemory(WithSchema("create table testing1 (id varchar primary key, field int);"))

	tx, err := db.Tx(context.Background())
	require.NoError(t, err)

	_, err = tx.Exec("insert into testing1(id, field) values (?1, ?2)", func(stmt *Statement) {
		stmt.BindText(1, "space")
		stmt.BindInt64(2, 1)
	}, nil)
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Release())

	rows, err := db.Exec("select 1 from testing1 where id = ?1", func(stmt *Statement) {
		stmt.BindText(1, "space")
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, rows)
}

func TestObjectExists(t *testing.T) {
	db := InMemory(WithSchema("create table testing1 (id varchar primary key, field int);"))

	insert := func() (int, error) {
		return db.Exec("insert into testing1(id, field) values (?1, ?2)", func(stmt *Statement) {
			stmt.BindText(1, "space")
			stmt.BindInt64(2, 1)
		}, nil)
	}
	_, err := insert()
	require.NoError(t, err)
	_, err = insert()
	require.ErrorIs(t, err, ErrObjectExists)
}
