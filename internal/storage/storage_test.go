package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir(), "test-signing-key", "http://files.local")
	require.NoError(t, err)
	return l
}

func TestLocal_SaveOpenDelete(t *testing.T) {
	l := newLocal(t)
	ctx := context.Background()

	n, err := l.Save(ctx, "orders/a/doc.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	rc, err := l.Open(ctx, "orders/a/doc.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, l.Delete(ctx, "orders/a/doc.pdf"))
	_, err = l.Open(ctx, "orders/a/doc.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, l.Delete(ctx, "orders/a/doc.pdf"), "deleting a missing object succeeds")
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"orders/x.pdf", "orders/x.pdf", false},
		{"/orders//x.pdf", "orders/x.pdf", false},
		{"../../etc/passwd", "etc/passwd", false},
		{`orders\x.pdf`, "orders/x.pdf", false},
		{"", "", true},
		{"/", "", true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidKey, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "My_Notes.pdf", SanitizeName("../../My Notes.pdf"))
	assert.Equal(t, "document", SanitizeName("..."))
	assert.Equal(t, "report.docx", SanitizeName(`C:\Users\me\report.docx`))
}

func TestLocal_SignedURL(t *testing.T) {
	l := newLocal(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	raw, err := l.SignedURL("orders/a/doc.pdf", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "http://files.local/files?token="))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	token := u.Query().Get("token")

	key, err := l.VerifySignature(token)
	require.NoError(t, err)
	assert.Equal(t, "orders/a/doc.pdf", key)

	_, err = l.VerifySignature(token + "x")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	now = now.Add(11 * time.Minute)
	_, err = l.VerifySignature(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
