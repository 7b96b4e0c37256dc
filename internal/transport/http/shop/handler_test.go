package shop

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solveprint/printshop/internal/auth"
	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/database/dbtest"
	"github.com/solveprint/printshop/internal/dto"
	repo "github.com/solveprint/printshop/internal/repository/shop"
	service "github.com/solveprint/printshop/internal/service/shop"
)

func setup(t *testing.T) (*echo.Echo, *auth.Authenticator) {
	t.Helper()
	var cfg config.Config
	cfg.Shop.OwnerID = "owner-1"
	cfg.Shop.DefaultName = "Solve Print"

	svc := service.New(repo.NewRepository(dbtest.New(t)), nil, cfg, zaptest.NewLogger(t))
	a := auth.New("test-secret", time.Hour)
	e := echo.New()
	Register(e, NewHandler(svc), a)
	return e, a
}

func call(t *testing.T, e *echo.Echo, method, target, body, token string) (*httptest.ResponseRecorder, json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env.Data
}

func TestHandler_PublicShop(t *testing.T) {
	e, _ := setup(t)

	rec, data := call(t, e, http.MethodGet, "/shop", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var shop dto.ShopResponse
	require.NoError(t, json.Unmarshal(data, &shop))
	assert.Equal(t, "Solve Print", shop.Name)
	assert.True(t, shop.IsOpen)
}

func TestHandler_UpdateSettings(t *testing.T) {
	e, a := setup(t)
	token, err := a.Issue("owner-1", auth.RoleOwner)
	require.NoError(t, err)

	rec, data := call(t, e, http.MethodPut, "/owner/settings",
		`{"is_open":false,"primary_vpa":"Shop@OKAXIS","backup_vpa":"shop@ybl","active_vpa_type":"backup"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings dto.ShopSettingsResponse
	require.NoError(t, json.Unmarshal(data, &settings))
	assert.False(t, settings.IsOpen)
	assert.Equal(t, "shop@okaxis", settings.PrimaryVPA)
	assert.Equal(t, "shop@ybl", settings.ActiveVPA)

	rec, data = call(t, e, http.MethodGet, "/shop", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var shop dto.ShopResponse
	require.NoError(t, json.Unmarshal(data, &shop))
	assert.False(t, shop.IsOpen)
}

func TestHandler_SettingsRejectsOtherOwners(t *testing.T) {
	e, a := setup(t)

	other, err := a.Issue("owner-2", auth.RoleOwner)
	require.NoError(t, err)
	rec, _ := call(t, e, http.MethodGet, "/owner/settings", "", other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	customer, err := a.Issue("cust-1", auth.RoleCustomer)
	require.NoError(t, err)
	rec, _ = call(t, e, http.MethodGet, "/owner/settings", "", customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = call(t, e, http.MethodGet, "/owner/settings", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_UpdateSettingsValidates(t *testing.T) {
	e, a := setup(t)
	token, err := a.Issue("owner-1", auth.RoleOwner)
	require.NoError(t, err)

	rec, _ := call(t, e, http.MethodPut, "/owner/settings", `{"primary_vpa":"not a vpa"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
