package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed bool
	rollbacks int
	commitErr error
}

func (f *fakeTx) Commit(context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rollbacks++
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
	opts     pgx.TxOptions
}

func (f *fakeBeginner) BeginTx(_ context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	f.opts = txOptions
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success with repeatable read", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{}}

		ran := false
		err := WithTx(ctx, b, func(tx pgx.Tx) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.True(t, b.tx.committed)
		assert.Equal(t, pgx.RepeatableRead, b.opts.IsoLevel)
	})

	t.Run("rolls back when the callback fails", func(t *testing.T) {
		b := &fakeBeginner{tx: &fakeTx{}}

		boom := errors.New("boom")
		err := WithTx(ctx, b, func(tx pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, b.tx.committed)
		assert.Equal(t, 1, b.tx.rollbacks)
	})

	t.Run("wraps begin errors", func(t *testing.T) {
		beginErr := errors.New("pool exhausted")
		b := &fakeBeginner{beginErr: beginErr}

		err := WithTx(ctx, b, func(tx pgx.Tx) error { return nil })
		assert.ErrorIs(t, err, beginErr)
	})

	t.Run("surfaces commit errors", func(t *testing.T) {
		commitErr := errors.New("serialization failure")
		b := &fakeBeginner{tx: &fakeTx{commitErr: commitErr}}

		err := WithTx(ctx, b, func(tx pgx.Tx) error { return nil })
		assert.ErrorIs(t, err, commitErr)
	})
}
