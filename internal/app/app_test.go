package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nikhilbhutani/pdfmate/internal/config"
)

func TestCloseRunsInReverse(t *testing.T) {
	var order []int
	a := &App{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	a.Close()
	a.Close()
	assert.Equal(t, []int{2, 1}, order)
}

func TestChecksOnlyForOpenedBackends(t *testing.T) {
	assert.Empty(t, (&App{}).Checks())
}

func TestNewFailsWithoutDatabaseForPgvector(t *testing.T) {
	cfg := &config.Config{}
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Storage.Backend = "supabase"
	cfg.Vector.Backend = "pgvector"

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "pgvector backend needs DATABASE_URL")
}
