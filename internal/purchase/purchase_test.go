package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignDeterministicAndOrdered(t *testing.T) {
	params := map[string]interface{}{
		"brand_code":      "acme",
		"denomination":    "25.00",
		"idempotency_key": "key-1",
		"signature":       "ignored",
		"currency":        "",
	}
	first := Sign(params, "token")
	second := Sign(params, "token")
	if first != second {
		t.Fatalf("expected deterministic signature, got %s and %s", first, second)
	}
	if first == Sign(params, "other-token") {
		t.Fatal("expected token to change signature")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(&Config{AuthToken: "t"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
	if _, err := NewClient(&Config{GatewayURL: "https://cards.example.com"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestPurchaseSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/cards/purchase" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		if body["idempotency_key"] != "key-1" {
			t.Errorf("expected idempotency key key-1, got %v", body["idempotency_key"])
		}
		if body["signature"] == "" || body["signature"] == nil {
			t.Error("expected signed request")
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": 200,
			"data": map[string]interface{}{
				"order_id":  "ord-9",
				"card_code": "GC-123-456",
				"cost":      "22.50",
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(&Config{GatewayURL: server.URL, AuthToken: "token"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	result, err := client.Purchase(context.Background(), PurchaseInput{
		IdempotencyKey: "key-1",
		BrandCode:      "acme",
		Denomination:   "25.00",
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if result.OrderID != "ord-9" || result.CardCode != "GC-123-456" || result.Cost != "22.50" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPurchaseGatewayErrorIsResponseInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": 500,
			"message":     "upstream out of stock",
		})
	}))
	defer server.Close()

	client, err := NewClient(&Config{GatewayURL: server.URL, AuthToken: "token"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	_, err = client.Purchase(context.Background(), PurchaseInput{
		IdempotencyKey: "key-1",
		BrandCode:      "acme",
		Denomination:   "25.00",
	})
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}
}

func TestPurchaseMissingCardCodeIsResponseInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status_code": 200,
			"data":        map[string]interface{}{"order_id": "ord-9"},
		})
	}))
	defer server.Close()

	client, err := NewClient(&Config{GatewayURL: server.URL, AuthToken: "token"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	_, err = client.Purchase(context.Background(), PurchaseInput{
		IdempotencyKey: "key-1",
		BrandCode:      "acme",
		Denomination:   "25.00",
	})
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}
}

func TestPurchaseTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := NewClient(&Config{GatewayURL: server.URL, AuthToken: "token"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Purchase(ctx, PurchaseInput{
		IdempotencyKey: "key-1",
		BrandCode:      "acme",
		Denomination:   "25.00",
	})
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}
}

func TestLookupStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body["idempotency_key"] {
		case "missing":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status_code": 404, "message": "not found"})
		case "processing":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status_code": 200,
				"data":        map[string]interface{}{"status": StatusProcessing},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status_code": 200,
				"data": map[string]interface{}{
					"status":    StatusFulfilled,
					"order_id":  "ord-1",
					"card_code": "GC-999",
					"cost":      "45.00",
				},
			})
		}
	}))
	defer server.Close()

	client, err := NewClient(&Config{GatewayURL: server.URL, AuthToken: "token"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	if _, _, err := client.Lookup(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	result, status, err := client.Lookup(context.Background(), "processing")
	if err != nil {
		t.Fatalf("lookup processing failed: %v", err)
	}
	if result != nil || status != StatusProcessing {
		t.Fatalf("expected processing with nil result, got %+v status %d", result, status)
	}

	result, status, err = client.Lookup(context.Background(), "fulfilled")
	if err != nil {
		t.Fatalf("lookup fulfilled failed: %v", err)
	}
	if status != StatusFulfilled || result == nil || result.CardCode != "GC-999" {
		t.Fatalf("unexpected fulfilled lookup: %+v status %d", result, status)
	}
}
