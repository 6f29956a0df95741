package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"viewly/internal/models"
	"viewly/internal/repositories"
	"viewly/internal/repositories/repotest"
	"viewly/internal/services/payment"
	"viewly/internal/services/viewing"
	"viewly/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "routes-test-secret"

type stubProvider struct{}

func (stubProvider) Initialize(_ context.Context, req payment.InitializeRequest) (*payment.InitializeResult, error) {
	return &payment.InitializeResult{PaymentURL: "https://pay.test/" + req.Reference, ProviderReference: "ref-" + req.Reference}, nil
}

func (stubProvider) Refund(context.Context, string, int64) error { return nil }

// jsonVerifier accepts unsigned JSON bodies of the form {"reference": "...", "succeeded": true}.
type jsonVerifier struct{}

func (jsonVerifier) ParseEvent(payload []byte, signature string) (*payment.Event, error) {
	if signature != "ok" {
		return nil, payment.ErrInvalidSignature
	}
	var body struct {
		Reference string `json:"reference"`
		Succeeded bool   `json:"succeeded"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	return &payment.Event{ProviderReference: body.Reference, Succeeded: body.Succeeded}, nil
}

type apiClient struct {
	t   *testing.T
	app *fiber.App
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	db := repotest.Open(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := viewing.NewPropertyCatalog(repositories.NewPropertyRepository(db), 2500, "USD")
	require.NoError(t, catalog.Register(context.Background(), &models.Property{ID: "prop-1", LandlordID: "landlord-1"}))
	svc := viewing.NewService(
		repositories.NewViewingRequestRepository(db),
		catalog,
		stubProvider{},
		nil,
		viewing.Config{MaxRetries: 2},
		logger,
	)

	app := fiber.New()
	SetupRoutes(app, Dependencies{
		DB:         db,
		Viewings:   svc,
		Properties: catalog,
		Webhooks:   jsonVerifier{},
		JWTSecret:  secret,
		Logger:     logger,
		Version:    "test",
	})
	return &apiClient{t: t, app: app}
}

func (a *apiClient) do(method, path, userID, role string, body interface{}) (int, map[string]interface{}) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := utils.GenerateToken(secret, userID, "", role, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (a *apiClient) webhook(reference string) int {
	a.t.Helper()
	b, _ := json.Marshal(map[string]interface{}{"reference": reference, "succeeded": true})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payments", bytes.NewReader(b))
	req.Header.Set("Stripe-Signature", "ok")
	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	return resp.StatusCode
}

func dates() []time.Time {
	base := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)
	return []time.Time{base, base.Add(24 * time.Hour), base.Add(48 * time.Hour)}
}

func dataOf(body map[string]interface{}) map[string]interface{} {
	d, _ := body["data"].(map[string]interface{})
	return d
}

func TestViewingLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)
	preferred := dates()

	status, body := api.do("POST", "/api/viewings", "tenant-1", models.RoleTenant, map[string]interface{}{
		"property_id":     "prop-1",
		"preferred_dates": preferred,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	data := dataOf(body)
	assert.Contains(t, data["payment_url"], "https://pay.test/")

	v := data["viewing"].(map[string]interface{})
	req := v["request"].(map[string]interface{})
	txn := v["transaction"].(map[string]interface{})
	id := req["id"].(string)

	// duplicate
	status, body = api.do("POST", "/api/viewings", "tenant-1", models.RoleTenant, map[string]interface{}{
		"property_id":     "prop-1",
		"preferred_dates": preferred,
	})
	assert.Equal(t, fiber.StatusConflict, status)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "DUPLICATE_REQUEST", errBody["code"])
	assert.Equal(t, id, errBody["existing_id"])

	// webhook funds the escrow
	assert.Equal(t, fiber.StatusOK, api.webhook(txn["provider_reference"].(string)))

	status, body = api.do("POST", "/api/viewings/"+id+"/schedule", "landlord-1", models.RoleLandlord, map[string]interface{}{
		"scheduled_date": preferred[1],
	})
	require.Equal(t, fiber.StatusOK, status, body)

	status, _ = api.do("POST", "/api/viewings/"+id+"/confirm", "tenant-1", models.RoleTenant, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = api.do("POST", "/api/viewings/"+id+"/confirm", "tenant-1", models.RoleTenant, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "ALREADY_CONFIRMED", body["error"].(map[string]interface{})["code"])

	status, body = api.do("POST", "/api/viewings/"+id+"/confirm", "landlord-1", models.RoleLandlord, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, dataOf(body)["both_confirmed"])
	assert.Equal(t, float64(2500), dataOf(body)["landlord_payout"])

	// a retry after the response was lost
	status, body = api.do("POST", "/api/viewings/"+id+"/confirm", "landlord-1", models.RoleLandlord, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "ALREADY_CONFIRMED", body["error"].(map[string]interface{})["code"])

	status, body = api.do("GET", "/api/viewings/"+id, "landlord-1", models.RoleLandlord, nil)
	require.Equal(t, fiber.StatusOK, status)
	got := dataOf(body)["request"].(map[string]interface{})
	assert.Equal(t, "completed", got["status"])

	status, body = api.do("GET", "/api/viewings/"+id+"/payout", "landlord-1", models.RoleLandlord, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2500), dataOf(body)["amount"])

	status, body = api.do("GET", "/api/viewings", "tenant-1", models.RoleTenant, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestRequestValidationAndAuth(t *testing.T) {
	api := newAPI(t)
	preferred := dates()

	status, _ := api.do("POST", "/api/viewings", "", "", map[string]interface{}{})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := api.do("POST", "/api/viewings", "tenant-1", models.RoleTenant, map[string]interface{}{
		"property_id":     "prop-1",
		"preferred_dates": preferred[:2],
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["error"].(map[string]interface{})["code"])

	status, _ = api.do("POST", "/api/viewings", "landlord-1", models.RoleLandlord, map[string]interface{}{
		"property_id":     "prop-1",
		"preferred_dates": preferred,
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = api.do("POST", "/api/viewings", "tenant-1", models.RoleTenant, map[string]interface{}{
		"property_id":     "prop-1",
		"preferred_dates": preferred,
	})
	require.Equal(t, fiber.StatusCreated, status)
	id := dataOf(body)["viewing"].(map[string]interface{})["request"].(map[string]interface{})["id"].(string)

	status, _ = api.do("POST", "/api/viewings/"+id+"/cancel", "tenant-2", models.RoleTenant, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = api.do("POST", "/api/admin/viewings/"+id+"/expire", "tenant-1", models.RoleTenant, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = api.do("POST", "/api/viewings/"+id+"/confirm", "tenant-1", models.RoleTenant, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", body["error"].(map[string]interface{})["code"])

	status, _ = api.do("POST", "/api/viewings/missing/cancel", "tenant-1", models.RoleTenant, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = api.do("POST", "/api/admin/viewings/"+id+"/expire", "admin-1", models.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "expired", dataOf(body)["viewing"].(map[string]interface{})["request"].(map[string]interface{})["status"])
}

func TestWebhookAndHealth(t *testing.T) {
	api := newAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payments", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "forged")
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, fiber.StatusOK, api.webhook("unknown-reference"))

	status, body := api.do("GET", "/health", "", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestPropertyOwnershipOverHTTP(t *testing.T) {
	api := newAPI(t)

	status, _ := api.do("PUT", "/api/admin/properties/prop-7", "landlord-1", models.RoleLandlord, map[string]interface{}{
		"landlord_id": "landlord-1",
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := api.do("PUT", "/api/admin/properties/prop-7", "admin-1", models.RoleAdmin, map[string]interface{}{
		"landlord_id": "landlord-7",
		"viewing_fee": 3200,
	})
	require.Equal(t, fiber.StatusOK, status, body)

	// a landlord named in the body is ignored
	status, body = api.do("POST", "/api/viewings", "tenant-1", models.RoleTenant, map[string]interface{}{
		"property_id":     "prop-7",
		"landlord_id":     "someone-else",
		"preferred_dates": dates(),
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	v := dataOf(body)["viewing"].(map[string]interface{})
	req := v["request"].(map[string]interface{})
	assert.Equal(t, "landlord-7", req["landlord_id"])
	assert.Equal(t, float64(3200), v["transaction"].(map[string]interface{})["amount"])

	status, _ = api.do("GET", "/api/viewings/"+req["id"].(string), "someone-else", models.RoleLandlord, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = api.do("POST", "/api/viewings", "tenant-1", models.RoleTenant, map[string]interface{}{
		"property_id":     "prop-unlisted",
		"preferred_dates": dates(),
	})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]interface{})["code"])
}
