package ledger_api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-gymclass/internal/auth"
	"ms-gymclass/internal/clock"
	"ms-gymclass/internal/ledger"
	ledgerdb "ms-gymclass/internal/ledger/db"
	"ms-gymclass/internal/ledger/ledger_api"
	"ms-gymclass/internal/logger"
	"ms-gymclass/internal/models"
	"ms-gymclass/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

type noopKafka struct{}

func (noopKafka) Publish(topic string, key string, value []byte) error { return nil }

func setupTestRouter(t *testing.T) (chi.Router, *bun.DB) {
	// In-memory database behind a real service, so requests run the full
	// handler -> service -> repository path
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.SessionPackage)(nil),
		(*models.MemberPackage)(nil),
		(*models.CreditTransaction)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(context.Background())
		if err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	pkgs := []models.SessionPackage{
		{ID: "pkg_5", Name: "5-Class Pack", SessionCount: 5, Price: 80, ExpiryDays: 60, Active: true, CreatedAt: time.Now()},
		{ID: "pkg_retired", Name: "Old Pack", SessionCount: 20, Price: 200, ExpiryDays: 180, Active: false, CreatedAt: time.Now()},
	}
	_, err = bunDB.NewInsert().Model(&pkgs).Exec(context.Background())
	if err != nil {
		t.Fatalf("Failed to seed packages: %v", err)
	}

	log := logger.NewLogger()
	clk := &clock.Fixed{Time: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := ledger.NewLedgerService(&ledgerdb.DB{Bun: bunDB}, noopKafka{}, clk, log)
	handler := ledger_api.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return r, bunDB
}

func doRequest(r chi.Router, method, path, memberID, role string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req = req.WithContext(auth.WithIdentity(req.Context(), memberID, role))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGrantAndCreditsFlow(t *testing.T) {
	router, bunDB := setupTestRouter(t)
	defer bunDB.Close()

	// Test case: Admin grants a package
	body, _ := json.Marshal(models.GrantRequest{MemberID: "member001", PaymentRef: "pay_123"})
	w := doRequest(router, "POST", "/api/packages/pkg_5/grant", "admin001", models.RoleAdmin, body)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp utils.APIResponse
	err := json.NewDecoder(w.Body).Decode(&resp)
	assert.NoError(t, err)
	assert.True(t, resp.Success)

	// Test case: The member sees the credits
	w = doRequest(router, "GET", "/api/credits", "member001", models.RoleMember, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	err = json.NewDecoder(w.Body).Decode(&resp)
	assert.NoError(t, err)
	assert.True(t, resp.Success)

	balance, _ := json.Marshal(resp.Data)
	var got models.CreditBalance
	err = json.Unmarshal(balance, &got)
	assert.NoError(t, err)
	assert.Equal(t, "member001", got.MemberID)
	assert.Equal(t, 5, got.Available)
	assert.Equal(t, 1, len(got.Entries))
}

func TestGrantRequiresAdmin(t *testing.T) {
	router, bunDB := setupTestRouter(t)
	defer bunDB.Close()

	body, _ := json.Marshal(models.GrantRequest{MemberID: "member001"})

	// Test case: A plain member can't grant
	w := doRequest(router, "POST", "/api/packages/pkg_5/grant", "member001", models.RoleMember, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Test case: Neither can a coach
	w = doRequest(router, "POST", "/api/packages/pkg_5/grant", "coach001", models.RoleCoach, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Nothing was granted
	count, err := bunDB.NewSelect().
		Model((*models.MemberPackage)(nil)).
		Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGrantValidation(t *testing.T) {
	router, bunDB := setupTestRouter(t)
	defer bunDB.Close()

	// Test case: Missing member_id
	w := doRequest(router, "POST", "/api/packages/pkg_5/grant", "admin001", models.RoleAdmin, []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp utils.APIResponse
	err := json.NewDecoder(w.Body).Decode(&resp)
	assert.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid_request", resp.Error)

	// Test case: Broken JSON
	w = doRequest(router, "POST", "/api/packages/pkg_5/grant", "admin001", models.RoleAdmin, []byte(`{"member_id": `))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Test case: Unknown package
	body, _ := json.Marshal(models.GrantRequest{MemberID: "member001"})
	w = doRequest(router, "POST", "/api/packages/nope/grant", "admin001", models.RoleAdmin, body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	err = json.NewDecoder(w.Body).Decode(&resp)
	assert.NoError(t, err)
	assert.Equal(t, "package_not_found", resp.Error)

	// Test case: Retired package can't be granted either
	w = doRequest(router, "POST", "/api/packages/pkg_retired/grant", "admin001", models.RoleAdmin, body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPackagesShowsActiveOnly(t *testing.T) {
	router, bunDB := setupTestRouter(t)
	defer bunDB.Close()

	w := doRequest(router, "GET", "/api/packages", "member001", models.RoleMember, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp utils.APIResponse
	err := json.NewDecoder(w.Body).Decode(&resp)
	assert.NoError(t, err)

	raw, _ := json.Marshal(resp.Data)
	var pkgs []models.SessionPackage
	err = json.Unmarshal(raw, &pkgs)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(pkgs))
	assert.Equal(t, "pkg_5", pkgs[0].ID)
}
