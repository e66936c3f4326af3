package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/nikhilbhutani/pdfmate/internal/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ExitErrHandler = func(*cli.Context, error) {}
	err := a.Run(append([]string{"pdfmatectl"}, args...))
	return out.String(), err
}

func TestPlansCommand(t *testing.T) {
	out, err := run(t, "plans")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Free")
	assert.Contains(t, lines[2], "Pro")
	assert.Contains(t, lines[2], "9.99")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "ctl-secret")
	t.Setenv("AUTH_ISSUER", "")

	out, err := run(t, "token", "--sub", "admin", "--email", "ops@mail.test", "--ttl", "5m")
	require.NoError(t, err)

	caller, err := auth.NewJWTMiddleware("ctl-secret", "").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, &auth.Caller{ID: "admin", Email: "ops@mail.test"}, caller)
}

func TestArgumentValidation(t *testing.T) {
	_, err := run(t, "purge-file")
	assert.ErrorContains(t, err, "needs a file id")

	_, err = run(t, "quota", "--month", "May", "u1")
	assert.Error(t, err)

	_, err = run(t, "token")
	assert.ErrorContains(t, err, "sub")
}
