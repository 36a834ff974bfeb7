package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coffee-shop/drinks-api/internal/audit"
	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/coffee-shop/drinks-api/internal/drinks"
	"github.com/coffee-shop/drinks-api/internal/jwt"
	"github.com/coffee-shop/drinks-api/internal/store"
	"github.com/coffee-shop/drinks-api/internal/testhelpers"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	issuer *testhelpers.Issuer
	server *httptest.Server
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	testhelpers.SetupLogger(t)

	issuer := testhelpers.NewIssuer(t)

	db, err := store.Open(config.DatabaseConfig{
		URL:         filepath.Join(t.TempDir(), "drinks.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Seed(context.Background(), []drinks.Drink{{
		Title:  "water",
		Recipe: []drinks.Ingredient{{Color: "blue", Name: "water", Parts: 1}},
	}})
	require.NoError(t, err)

	cfg := config.Config{Authorization: issuer.Config()}

	handler, err := configureServerRoutes(cfg, store.NewDrinkRepository(db.DB), jwt.WithHTTPClient(issuer.Server.Client()))
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &apiFixture{issuer: issuer, server: server}
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(b)
}

func TestRoutes_PublicListing(t *testing.T) {
	api := setupAPI(t)

	resp, body := api.do(t, http.MethodGet, "/drinks", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":1,"title":"water","recipe":[{"color":"blue","parts":1}]}]}`, body)
	assert.NotEmpty(t, resp.Header.Get(audit.RequestIDHeader))
	assert.Equal(t, 0, api.issuer.KeySetFetches(), "public routes never consult the identity provider")
}

func TestRoutes_Detail(t *testing.T) {
	api := setupAPI(t)

	cases := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{
			name:   "no token",
			status: http.StatusUnauthorized,
			body:   `{"code":"authorization_header_missing","description":"Authorization header is expected"}`,
		},
		{
			name:   "missing permission",
			token:  api.issuer.Token(t, "post:drinks"),
			status: http.StatusUnauthorized,
			body:   `{"code":"unauthorised","description":"Required permissions not available in the token"}`,
		},
		{
			name:   "granted",
			token:  api.issuer.Token(t, "get:drinks-detail"),
			status: http.StatusOK,
			body:   `{"success":true,"drinks":[{"id":1,"title":"water","recipe":[{"color":"blue","name":"water","parts":1}]}]}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := api.do(t, http.MethodGet, "/drinks-detail", tc.token, "")

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.JSONEq(t, tc.body, body)
		})
	}
}

func TestRoutes_SymmetricTokenNeverFetchesKeys(t *testing.T) {
	api := setupAPI(t)

	token := testhelpers.HS256Token(t, testhelpers.TestKeyID, testhelpers.Valid(josejwt.Claims{
		Issuer:   api.issuer.URL(),
		Audience: josejwt.Audience{testhelpers.TestAudience},
	}), testhelpers.Permissions("delete:drinks"))

	resp, body := api.do(t, http.MethodDelete, "/drinks/1", token, "")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"code":"invalid_header","description":"Invalid header. Use an RS256 signed JWT Access Token"}`, body)
	assert.Equal(t, 0, api.issuer.KeySetFetches())

	// the drink is untouched
	_, body = api.do(t, http.MethodGet, "/drinks", "", "")
	assert.Contains(t, body, `"title":"water"`)
}

func TestRoutes_DrinkLifecycle(t *testing.T) {
	api := setupAPI(t)
	token := api.issuer.Token(t, "post:drinks", "patch:drinks", "delete:drinks", "get:drinks-detail")

	resp, body := api.do(t, http.MethodPost, "/drinks", token,
		`{"title":"latte","recipe":[{"color":"brown","name":"espresso","parts":1},{"color":"white","name":"milk","parts":3}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var created struct {
		Success bool               `json:"success"`
		Drinks  []drinks.LongDrink `json:"drinks"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	require.Len(t, created.Drinks, 1)
	id := created.Drinks[0].ID

	resp, _ = api.do(t, http.MethodPost, "/drinks", token,
		`{"title":"latte","recipe":{"color":"white","name":"milk","parts":1}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "titles are unique")

	path := "/drinks/" + jsonNumber(id)

	resp, body = api.do(t, http.MethodPatch, path, token, `{"title":"flat white"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"title":"flat white"`)
	assert.Contains(t, body, `"name":"espresso"`)

	resp, body = api.do(t, http.MethodDelete, path, token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"delete":`+jsonNumber(id)+`}`, body)

	resp, body = api.do(t, http.MethodDelete, path, token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":404,"message":"resource not found"}`, body)

	resp, _ = api.do(t, http.MethodPatch, "/drinks/latte", token, `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoutes_PermissionsArePerRoute(t *testing.T) {
	api := setupAPI(t)
	token := api.issuer.Token(t, "patch:drinks")

	resp, _ := api.do(t, http.MethodDelete, "/drinks/1", token, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPatch, "/drinks/1", token, `{"title":"sparkling water"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_HealthCheckAndUnknownPaths(t *testing.T) {
	api := setupAPI(t)

	resp, _ := api.do(t, http.MethodGet, "/healthcheck", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := api.do(t, http.MethodGet, "/coffee", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":404,"message":"resource not found"}`, body)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	api := setupAPI(t)
	token := api.issuer.Token(t, "post:drinks", "patch:drinks", "delete:drinks", "get:drinks-detail")

	cases := []struct {
		method string
		path   string
		allow  string
	}{
		{method: http.MethodPut, path: "/drinks", allow: "GET, POST"},
		{method: http.MethodDelete, path: "/drinks", allow: "GET, POST"},
		{method: http.MethodPost, path: "/drinks-detail", allow: "GET"},
		{method: http.MethodGet, path: "/drinks/1", allow: "PATCH, DELETE"},
		{method: http.MethodPut, path: "/drinks/1", allow: "PATCH, DELETE"},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp, body := api.do(t, tc.method, tc.path, token, "")

			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
			assert.Equal(t, tc.allow, resp.Header.Get("Allow"))
			assert.JSONEq(t, `{"success":false,"error":405,"message":"method not allowed"}`, body)
		})
	}

	// the drink is untouched
	_, body := api.do(t, http.MethodGet, "/drinks", "", "")
	assert.Contains(t, body, `"title":"water"`)
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
