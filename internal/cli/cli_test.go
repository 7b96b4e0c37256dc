package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solveprint/printshop/internal/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQuoteCmd_AllOptions(t *testing.T) {
	out, err := run(t, "quote", "--pages", "12")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], "22.00")
	assert.Contains(t, lines[2], "23.00")
	assert.Contains(t, lines[3], "120.00")
	assert.Contains(t, lines[4], "240.00")
}

func TestQuoteCmd_SingleOption(t *testing.T) {
	out, err := run(t, "quote", "--pages", "3", "--print", "color", "--sides", "double")
	require.NoError(t, err)
	assert.Equal(t, "60.00\n", out)
}

func TestQuoteCmd_InvalidPages(t *testing.T) {
	_, err := run(t, "quote", "--pages", "0")
	assert.Error(t, err)
}

func TestTokenIssueCmd(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("SHOP_OWNER_ID", "owner-9")

	out, err := run(t, "token", "issue", "--role", "owner")
	require.NoError(t, err)

	principal, err := auth.New("cli-secret", 0).Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "owner-9", principal.Subject)
	assert.Equal(t, auth.RoleOwner, principal.Role)
}

func TestTokenIssueCmd_RequiresSubjectForCustomer(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")

	_, err := run(t, "token", "issue", "--role", "customer")
	assert.Error(t, err)

	_, err = run(t, "token", "issue", "--role", "admin", "--sub", "x")
	assert.ErrorIs(t, err, auth.ErrInvalidRole)
}
