package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/handlers"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/models/reports"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "hostel2025"

type testServer struct {
	t      *testing.T
	router *gin.Engine
	house  *models.BoardingHouse
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.MigrateTable(db))
	require.NoError(t, config.UseDB(db))
	t.Cleanup(func() {
		_ = config.UseDB(nil)
		_ = sqlDB.Close()
	})

	house, err := models.CreateBoardingHouse(utils.SetIsAdminInContext(context.Background(), true), &models.NewBoardingHouse{
		Name: "Avondale Hostel",
		Code: "AVD",
	})
	require.NoError(t, err)

	hashed, err := utils.HashPassword(testPassword)
	require.NoError(t, err)
	for _, u := range []models.User{
		{Username: "boss", Name: "Owner", Role: models.RoleBoss},
		{Username: "warden", Name: "Warden", Role: models.RoleAdmin, BoardingHouseId: house.ID},
		{Username: "books", Name: "Bookkeeper", Role: models.RoleAccountant, BoardingHouseId: house.ID},
		{Username: "gone", Name: "Former", Role: models.RoleAdmin, BoardingHouseId: house.ID, IsActive: utils.NewFalse()},
	} {
		u.Password = string(hashed)
		require.NoError(t, db.Create(&u).Error)
	}

	r := gin.New()
	handlers.RegisterRoutes(r)
	return &testServer{t: t, router: r, house: house}
}

func (s *testServer) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(username string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": testPassword})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var info models.LoginInfo
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &info))
	require.NotEmpty(s.t, info.Token)
	return info.Token
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "warden", "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code)
	var info models.LoginInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, models.RoleAdmin, info.Role)
	assert.Equal(t, s.house.ID, info.BoardingHouseId)
	assert.Equal(t, "Avondale Hostel", info.BoardingHouseName)

	w = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "warden", "password": "wrong-pass1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "gone", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "warden"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthenticatedRequests(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodGet, "/accounts", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	warden := s.login("warden")
	w = s.do(http.MethodGet, "/accounts", warden, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var accounts []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accounts))
	assert.Len(t, accounts, 16)

	w = s.do(http.MethodGet, "/auth/me", warden, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"warden"`)
}

func TestRolesGuardLedgerWrites(t *testing.T) {
	s := newTestServer(t)
	ctx := utils.SetBoardingHouseIdInContext(context.Background(), s.house.ID)
	cash, err := models.GetSystemAccount(config.GetDB().WithContext(ctx), s.house.ID, models.SystemAccountCash)
	require.NoError(t, err)
	equity, err := models.GetSystemAccount(config.GetDB().WithContext(ctx), s.house.ID, models.SystemAccountOwnersEquity)
	require.NoError(t, err)

	journal := map[string]any{
		"journal_date": "2025-03-01T00:00:00Z",
		"reference":    "CAP-1",
		"description":  "Owner capital",
		"lines": []map[string]any{
			{"account_id": cash.ID, "debit": "500"},
			{"account_id": equity.ID, "credit": "500"},
		},
	}

	warden := s.login("warden")
	w := s.do(http.MethodPost, "/journals", warden, journal)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/accounts", warden, map[string]any{"code": "5100", "name": "Security", "type": models.AccountTypeExpense})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	books := s.login("books")
	w = s.do(http.MethodPost, "/journals", books, journal)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	unbalanced := map[string]any{
		"journal_date": "2025-03-01T00:00:00Z",
		"description":  "Typo",
		"lines": []map[string]any{
			{"account_id": cash.ID, "debit": "500"},
			{"account_id": equity.ID, "credit": "50"},
		},
	}
	w = s.do(http.MethodPost, "/journals", books, unbalanced)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/trial-balance?as_of=2025-03-31", books, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tb reports.TrialBalanceReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tb))
	assert.True(t, tb.IsBalanced)
	assert.Equal(t, "500", tb.TotalDebit.String())

	w = s.do(http.MethodGet, "/trial-balance?as_of=2025-03-31&format=xlsx", books, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reports.ExcelContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "trial-balance-2025-03-31.xlsx")

	w = s.do(http.MethodGet, "/trial-balance?format=pdf", books, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBossSelectsBoardingHouse(t *testing.T) {
	s := newTestServer(t)
	boss := s.login("boss")

	w := s.do(http.MethodGet, "/accounts", boss, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "writes and house data need a selected house")

	w = s.do(http.MethodGet, "/accounts", boss, nil, "X-Boarding-House-Id", strconv.Itoa(s.house.ID))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/accounts", boss, nil, "X-Boarding-House-Id", "abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/trial-balance?as_of=2025-03-31", boss, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tb reports.TrialBalanceReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tb))
	assert.Equal(t, 0, tb.BoardingHouseId, "no house selected consolidates")
}
