package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanafox/tiny-cart/internal/config"
	"github.com/nanafox/tiny-cart/internal/server"
	"github.com/nanafox/tiny-cart/internal/storage"
	"github.com/nanafox/tiny-cart/internal/testutil"
)

// setupApp builds the full application on in-memory SQLite and an in-memory
// upload directory.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	blobs, err := storage.NewDiskStore(afero.NewMemMapFs(), "uploads")
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:             "test_jwt_secret",
		TokenExpiry:           time.Hour,
		PaginationLimit:       100,
		PaginationDefaultPage: 10,
		MaxUploadSizeMB:       10,
	}
	return server.New(cfg, server.Deps{DB: testutil.NewSQLite(t), Blobs: blobs})
}

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Count      *int            `json:"count"`
	Detail     json.RawMessage `json:"detail"`
}

func (e envelope) detail() string {
	var s string
	_ = json.Unmarshal(e.Detail, &s)
	return s
}

func send(t *testing.T, app *fiber.App, req *http.Request, token string) (*http.Response, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &env), string(body))
	}
	return resp, env
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return send(t, app, req, token)
}

func doMultipart(t *testing.T, app *fiber.App, method, path, token string, fields map[string]string, images map[string]string) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range images {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return send(t, app, req, token)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type userView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type productView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	UnitPrice     string `json:"unit_price"`
	InStock       bool   `json:"in_stock"`
	NumberInStock int    `json:"number_in_stock"`
	OwnerID       string `json:"owner_id"`
	Images        []struct {
		FilePath string `json:"file_path"`
	} `json:"images"`
}

type orderView struct {
	ID        string       `json:"id"`
	ProductID string       `json:"product_id"`
	UserID    string       `json:"user_id"`
	Quantity  int          `json:"quantity"`
	Product   *productView `json:"product"`
}

// signUpAndLogin creates a user through the API and returns it with a token.
func signUpAndLogin(t *testing.T, app *fiber.App, username, role string) (userView, string) {
	t.Helper()
	resp, env := doJSON(t, app, http.MethodPost, "/api/v1/users", "", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"role":     role,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.detail())
	user := decode[userView](t, env)

	form := url.Values{"username": {username + "@example.com"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, env = send(t, app, req, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.detail())

	token := decode[struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}](t, env)
	require.Equal(t, "bearer", token.TokenType)
	return user, token.AccessToken
}

func createProduct(t *testing.T, app *fiber.App, token, name string, stock int) productView {
	t.Helper()
	resp, env := doMultipart(t, app, http.MethodPost, "/api/v1/products", token, map[string]string{
		"name":            name,
		"description":     "a " + name,
		"unit_price":      "12.50",
		"in_stock":        "true",
		"number_in_stock": fmt.Sprint(stock),
	}, map[string]string{name + ".jpg": "image bytes"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.detail())
	return decode[productView](t, env)
}

func TestAuthSignUpAndLogin(t *testing.T) {
	app := setupApp(t)
	user, token := signUpAndLogin(t, app, "alice", "buyer")
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "buyer", user.Role)

	resp, env := doJSON(t, app, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, user.ID, decode[userView](t, env).ID)
	assert.NotContains(t, string(env.Data), "password")

	// Duplicate sign-up
	resp, env = doJSON(t, app, http.MethodPost, "/api/v1/users", "", map[string]string{
		"email": "alice@example.com", "username": "alice2", "role": "buyer", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "email 'alice@example.com' already registered", env.detail())

	// Wrong password and unknown email look the same.
	resp, wrong := doJSON(t, app, http.MethodPost, "/api/v1/login", "", map[string]string{
		"username": "alice@example.com", "password": "password999",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, unknown := doJSON(t, app, http.MethodPost, "/api/v1/login", "", map[string]string{
		"username": "nobody@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, wrong.detail(), unknown.detail())

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestValidationErrors(t *testing.T) {
	app := setupApp(t)

	resp, env := doJSON(t, app, http.MethodPost, "/api/v1/users", "", map[string]string{
		"email": "not-an-email", "username": "bob", "role": "admin", "password": "short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Detail, &fields))
	assert.Contains(t, fields, "Email")
	assert.Contains(t, fields, "Role")
	assert.Contains(t, fields, "Password")

	_, token := signUpAndLogin(t, app, "bob", "buyer")
	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/users/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/orders", token, map[string]any{"orders": []any{}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUserLookupAndUpdate(t *testing.T) {
	app := setupApp(t)
	alice, aliceToken := signUpAndLogin(t, app, "alice", "buyer")
	_, bobToken := signUpAndLogin(t, app, "bob", "buyer")

	resp, env := doJSON(t, app, http.MethodGet, "/api/v1/users?username=alice", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, alice.ID, decode[userView](t, env).ID)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/users?email=ghost@example.com", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v1/users", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, env.Count)
	assert.Equal(t, 2, *env.Count)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/users/"+alice.ID, bobToken, map[string]string{"username": "mallory"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, env = doJSON(t, app, http.MethodPut, "/api/v1/users/me", aliceToken, map[string]string{"role": "seller"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "seller", decode[userView](t, env).Role)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/users/me/password", aliceToken, map[string]string{
		"current_password": "password123", "new_password": "password456",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/users/"+alice.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/users/me", aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/users/"+alice.ID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductLifecycle(t *testing.T) {
	app := setupApp(t)
	seller, sellerToken := signUpAndLogin(t, app, "seller", "seller")
	_, buyerToken := signUpAndLogin(t, app, "buyer", "buyer")

	resp, env := doMultipart(t, app, http.MethodPost, "/api/v1/products", buyerToken,
		map[string]string{"name": "lamp", "unit_price": "1", "number_in_stock": "1"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You are not authorized to perform this action.", env.detail())

	p := createProduct(t, app, sellerToken, "lamp", 5)
	assert.Equal(t, seller.ID, p.OwnerID)
	assert.True(t, p.InStock)
	require.Len(t, p.Images, 1)

	// Uploaded images are served statically.
	req := httptest.NewRequest(http.MethodGet, "/uploads/"+p.Images[0].FilePath, nil)
	imgResp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, imgResp.StatusCode)
	body, _ := io.ReadAll(imgResp.Body)
	assert.Equal(t, "image bytes", string(body))

	resp, env = doJSON(t, app, http.MethodGet, "/api/v1/products", buyerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, *env.Count)

	// A non-owner cannot change the product.
	resp, _ = doMultipart(t, app, http.MethodPut, "/api/v1/products/"+p.ID, buyerToken,
		map[string]string{"name": "stolen"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, env = doJSON(t, app, http.MethodGet, "/api/v1/products/"+p.ID, buyerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "lamp", decode[productView](t, env).Name)

	resp, env = doMultipart(t, app, http.MethodPut, "/api/v1/products/"+p.ID, sellerToken,
		map[string]string{"number_in_stock": "0"}, map[string]string{"side.png": "more"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.detail())
	updated := decode[productView](t, env)
	assert.False(t, updated.InStock)
	assert.Len(t, updated.Images, 2)

	resp, _ = doMultipart(t, app, http.MethodPut, "/api/v1/products/"+p.ID, sellerToken,
		map[string]string{"in_stock": "true"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/products/"+p.ID, buyerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/products/"+p.ID, sellerToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/products/"+p.ID, sellerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrderScenario(t *testing.T) {
	app := setupApp(t)
	_, sellerToken := signUpAndLogin(t, app, "seller", "seller")
	buyer, buyerToken := signUpAndLogin(t, app, "buyer", "buyer")
	_, otherToken := signUpAndLogin(t, app, "other", "buyer")
	p := createProduct(t, app, sellerToken, "lamp", 5)

	order := func(qty int) (*http.Response, envelope) {
		return doJSON(t, app, http.MethodPost, "/api/v1/orders", buyerToken, map[string]any{
			"orders": []map[string]any{{"product_id": p.ID, "quantity": qty}},
		})
	}

	resp, env := order(3)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.detail())
	first := decode[orderView](t, env)
	assert.Equal(t, buyer.ID, first.UserID)
	require.NotNil(t, first.Product)
	assert.Equal(t, 2, first.Product.NumberInStock)
	assert.True(t, first.Product.InStock)

	resp, env = order(3)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Product lamp has only 2 items left", env.detail())

	resp, env = order(2)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.detail())
	assert.False(t, decode[orderView](t, env).Product.InStock)

	resp, env = order(1)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Product lamp is out of stock", env.detail())

	resp, env = doJSON(t, app, http.MethodGet, "/api/v1/orders?order_by=-quantity", buyerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	orders := decode[[]orderView](t, env)
	require.Len(t, orders, 2)
	assert.Equal(t, 3, orders[0].Quantity)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v1/users/me/orders", buyerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, *env.Count)
	resp, env = doJSON(t, app, http.MethodGet, "/api/v1/products/"+p.ID+"/orders", sellerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, *env.Count)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/orders/"+first.ID, otherToken, map[string]any{
		"orders": []map[string]any{{"product_id": p.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/orders/"+first.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/orders/"+first.ID, buyerToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+first.ID, buyerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListQueryErrors(t *testing.T) {
	app := setupApp(t)
	_, token := signUpAndLogin(t, app, "alice", "buyer")

	for _, query := range []string{"skip=-1", "limit=abc", "order_by=password", "join=owner"} {
		t.Run(query, func(t *testing.T) {
			resp, env := doJSON(t, app, http.MethodGet, "/api/v1/users?"+query, token, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.detail())
		})
	}

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/products?join=owner&order_by=-name&limit=1000", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
