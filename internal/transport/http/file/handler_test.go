package file

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solveprint/printshop/internal/config"
	service "github.com/solveprint/printshop/internal/service/order"
	"github.com/solveprint/printshop/internal/storage"
)

func setup(t *testing.T) (*echo.Echo, *storage.Local) {
	t.Helper()
	local, err := storage.NewLocal(t.TempDir(), "signing", "http://localhost")
	require.NoError(t, err)

	svc := service.New(service.Deps{Store: local, Logger: zaptest.NewLogger(t)}, config.Config{})
	e := echo.New()
	Register(e, NewHandler(svc))
	return e, local
}

func tokenOf(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestDownload_StreamsSignedFile(t *testing.T) {
	e, local := setup(t)
	_, err := local.Save(context.Background(), "orders/o-1/notes.pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)

	link, err := local.SignedURL("orders/o-1/notes.pdf", time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files?token="+url.QueryEscape(tokenOf(t, link)), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4 body", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `filename=notes.pdf`)
}

func TestDownload_Rejections(t *testing.T) {
	e, local := setup(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files?token=garbage", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	link, err := local.SignedURL("orders/gone.pdf", time.Minute)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files?token="+url.QueryEscape(tokenOf(t, link)), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
