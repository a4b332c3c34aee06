package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

const baseURL = "http://localhost:8080"

// AuthResponse структура ответа при аутентификации
type AuthResponse struct {
	Token string `json:"token"`
}

// CheckoutItem — позиция корзины в запросе оформления
type CheckoutItem struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// CheckoutRequest — запрос оформления заказа
type CheckoutRequest struct {
	Items           []CheckoutItem `json:"items"`
	ShippingAddress struct {
		Street  string `json:"street"`
		City    string `json:"city"`
		Zip     string `json:"zip"`
		Country string `json:"country"`
	} `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	ItemsPriceCents int64  `json:"items_price_cents"`
	TotalCents      int64  `json:"total_cents"`
}

// OrderResponse — созданный заказ
type OrderResponse struct {
	ID      int64  `json:"id"`
	OrderNo string `json:"order_no"`
	Paid    bool   `json:"paid"`
}

// OrdersResponse — список заказов пользователя
type OrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

// ProductsResponse — каталог витрины
type ProductsResponse struct {
	Products []struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Stock int    `json:"stock"`
	} `json:"products"`
}

func authenticateUser(t *testing.T, email, password string) string {
	reqBody := []byte(`{"email": "` + email + `", "password": "` + password + `"}`)
	resp, err := http.Post(baseURL+"/api/auth", "application/json", bytes.NewBuffer(reqBody))
	assert.NoError(t, err, "Auth request should not error")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "Expected 200 OK for valid auth")

	var authResp AuthResponse
	err = json.NewDecoder(resp.Body).Decode(&authResp)
	assert.NoError(t, err, "Decoding auth response should succeed")
	assert.NotEmpty(t, authResp.Token, "Token should not be empty")
	return authResp.Token
}

func checkoutBody(items []CheckoutItem, paymentMethod string) []byte {
	var total int64
	for _, it := range items {
		total += it.UnitPriceCents * int64(it.Quantity)
	}
	req := CheckoutRequest{
		Items:           items,
		PaymentMethod:   paymentMethod,
		ItemsPriceCents: total,
		TotalCents:      total,
	}
	req.ShippingAddress.Street = "Lenina 1"
	req.ShippingAddress.City = "Moscow"
	req.ShippingAddress.Zip = "101000"
	req.ShippingAddress.Country = "RU"
	body, _ := json.Marshal(req)
	return body
}

func placeOrder(t *testing.T, token string, body []byte) *http.Response {
	req, err := http.NewRequest("POST", baseURL+"/api/orders", bytes.NewBuffer(body))
	assert.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	assert.NoError(t, err)
	return resp
}

// сценарий с успешной аутентификацией пользователя
func TestAuth(t *testing.T) {
	token := authenticateUser(t, "testuser@gmail.com", "testpass123")
	assert.NotEmpty(t, token, "token should be obtained")
}

// сценарий с безуспешной аутентификацией пользователя
func TestAuthInvalid(t *testing.T) {
	reqBody := []byte(`{"email": "", "password": ""}`)
	resp, err := http.Post(baseURL+"/api/auth", "application/json", bytes.NewBuffer(reqBody))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "expected 400 for invalid auth")
}

// сценарий просмотра каталога без авторизации
func TestListProducts(t *testing.T) {
	resp, err := http.Get(baseURL + "/api/products")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "expected 200 OK for /api/products")

	var products ProductsResponse
	err = json.NewDecoder(resp.Body).Decode(&products)
	assert.NoError(t, err)
}

// сценарий оформления заказа без авторизации
func TestCheckoutUnauthorized(t *testing.T) {
	body := checkoutBody([]CheckoutItem{{ProductID: 1, Name: "Phone X", UnitPriceCents: 1000, Quantity: 1}}, "cod")
	resp, err := http.Post(baseURL+"/api/orders", "application/json", bytes.NewBuffer(body))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "expected 401 unauthorized for missing token")
}

// сценарий оформления заказа с оплатой при получении
func TestCheckoutCOD(t *testing.T) {
	token := authenticateUser(t, "buyer-cod@test.com", "testpass123")

	body := checkoutBody([]CheckoutItem{{ProductID: 1, Name: "Phone X", UnitPriceCents: 1000, Quantity: 1}}, "cod")
	resp := placeOrder(t, token, body)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode, "expected 201 for valid checkout")

	var order OrderResponse
	err := json.NewDecoder(resp.Body).Decode(&order)
	assert.NoError(t, err)
	assert.NotEmpty(t, order.OrderNo, "order number should be assigned")
	assert.False(t, order.Paid, "COD order should stay unpaid")
}

// сценарий оформления заказа с онлайн-оплатой
func TestCheckoutOnlinePaid(t *testing.T) {
	token := authenticateUser(t, "buyer-online@test.com", "testpass123")

	body := checkoutBody([]CheckoutItem{{ProductID: 1, Name: "Phone X", UnitPriceCents: 1000, Quantity: 1}}, "online")
	resp := placeOrder(t, token, body)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var order OrderResponse
	err := json.NewDecoder(resp.Body).Decode(&order)
	assert.NoError(t, err)
	assert.True(t, order.Paid, "online order should be paid at creation")
}

// сценарий с пустой корзиной
func TestCheckoutEmptyCart(t *testing.T) {
	token := authenticateUser(t, "buyer-empty@test.com", "testpass123")

	body := checkoutBody(nil, "cod")
	resp := placeOrder(t, token, body)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "expected 400 for empty cart")
}

// сценарий нехватки остатка: запрошенное количество заведомо превышает остаток
func TestCheckoutInsufficientStock(t *testing.T) {
	token := authenticateUser(t, "buyer-greedy@test.com", "testpass123")

	body := checkoutBody([]CheckoutItem{{ProductID: 1, Name: "Phone X", UnitPriceCents: 1000, Quantity: 1000000}}, "cod")
	resp := placeOrder(t, token, body)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode, "expected 409 for insufficient stock")
}

// сценарий просмотра своих заказов после оформления
func TestMyOrders(t *testing.T) {
	token := authenticateUser(t, "buyer-history@test.com", "testpass123")

	body := checkoutBody([]CheckoutItem{{ProductID: 1, Name: "Phone X", UnitPriceCents: 1000, Quantity: 1}}, "cod")
	resp := placeOrder(t, token, body)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest("GET", baseURL+"/api/orders", nil)
	assert.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{}
	listResp, err := client.Do(req)
	assert.NoError(t, err)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusOK, listResp.StatusCode)

	var orders OrdersResponse
	err = json.NewDecoder(listResp.Body).Decode(&orders)
	assert.NoError(t, err)
	assert.NotEmpty(t, orders.Orders, "user should see the placed order")
}

// сценарий административного эндпоинта без прав администратора
func TestAdminForbidden(t *testing.T) {
	token := authenticateUser(t, "plain-user@test.com", "testpass123")

	reqBody := []byte(`{"name": "New Product", "price_cents": 500, "stock": 10}`)
	req, err := http.NewRequest("POST", baseURL+"/api/admin/products", bytes.NewBuffer(reqBody))
	assert.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "non-admin should get 403")
}
