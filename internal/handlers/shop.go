package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oakline/api/internal/domain"
	"github.com/oakline/api/internal/payments"
	"github.com/oakline/api/internal/platform/auth"
	"github.com/oakline/api/internal/platform/httpx"
	"github.com/oakline/api/internal/services"
)

const (
	maxShopRequestBody = 16 * 1024

	transactionRateLimit  = 30
	transactionRateWindow = time.Minute
)

// ShopHandlers exposes the storefront endpoints: the public catalogue plus
// the authenticated customer, order, and transaction surfaces.
type ShopHandlers struct {
	authn        *auth.Authenticator
	catalog      services.CatalogService
	contacts     services.ContactService
	transactions services.TransactionService
	limiter      rateLimiter
	txnGuard     func(http.Handler) http.Handler
}

// ShopOption customises the storefront handlers.
type ShopOption func(*ShopHandlers)

// WithTransactionGuard installs an extra middleware on the transaction
// endpoint. It runs after authentication so the guard can scope its state to
// the caller.
func WithTransactionGuard(guard func(http.Handler) http.Handler) ShopOption {
	return func(h *ShopHandlers) {
		h.txnGuard = guard
	}
}

// NewShopHandlers constructs the storefront handlers.
func NewShopHandlers(authn *auth.Authenticator, catalog services.CatalogService, contacts services.ContactService, transactions services.TransactionService, opts ...ShopOption) *ShopHandlers {
	handlers := &ShopHandlers{
		authn:        authn,
		catalog:      catalog,
		contacts:     contacts,
		transactions: transactions,
		limiter:      newWindowRateLimiter(transactionRateLimit, transactionRateWindow, time.Now),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handlers)
		}
	}
	return handlers
}

// Routes registers the storefront endpoints under the provided router.
func (h *ShopHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)

	group := r
	if h.authn != nil {
		group = group.With(h.authn.Middleware())
	}
	group.Get("/customer", h.getCustomer)
	group.Put("/customer", h.saveCustomer)
	group.Get("/orders", h.listOrders)
	if h.txnGuard != nil {
		group.With(h.txnGuard).Post("/transactions", h.createTransaction)
	} else {
		group.Post("/transactions", h.createTransaction)
	}
}

type productResponse struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Digital     bool   `json:"digital"`
}

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

type contactPayload struct {
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	Billing   addressPayload  `json:"billing"`
	Delivery  *addressPayload `json:"delivery,omitempty"`
}

type basketLineRequest struct {
	ProductCode   string `json:"productCode"`
	ProductAmount int64  `json:"productAmount"`
}

type createTransactionRequest struct {
	Basket          []basketLineRequest `json:"basket"`
	DeliveryAddress string              `json:"deliveryAddress"`
	ClientSecret    string              `json:"clientSecret"`
}

type amountsPayload struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

type createTransactionResponse struct {
	TransactionID string         `json:"transactionId"`
	ClientSecret  string         `json:"clientSecret"`
	Amounts       amountsPayload `json:"amounts"`
	TaxAddress    addressPayload `json:"taxAddress"`
}

type orderLineResponse struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
	Digital   bool   `json:"digital"`
}

type orderResponse struct {
	TransactionID string              `json:"transactionId"`
	Status        string              `json:"status"`
	Amounts       amountsPayload      `json:"amounts"`
	Lines         []orderLineResponse `json:"lines"`
	CreatedAt     string              `json:"createdAt"`
}

func (h *ShopHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("ERROR", "catalogue unavailable", http.StatusServiceUnavailable))
		return
	}

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("ERROR", "failed to load products", http.StatusInternalServerError))
		return
	}

	payload := make([]productResponse, 0, len(products))
	for _, p := range products {
		payload = append(payload, productResponse{
			Code:        p.Code,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Digital:     p.IsDigital(),
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"products": payload})
}

func (h *ShopHandlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.contacts != nil)
	if !ok {
		return
	}

	contact, err := h.contacts.GetContact(ctx, identity.UID)
	if err != nil {
		if errors.Is(err, services.ErrContactNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("CONTACT_NOT_FOUND", "no contact details saved", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("ERROR", "failed to load contact", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, contactToPayload(contact))
}

func (h *ShopHandlers) saveCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.contacts != nil)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxShopRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req contactPayload
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("INVALID_REQUEST", "request body must be valid JSON", http.StatusUnprocessableEntity))
		return
	}

	contact := domain.Contact{
		CustomerID: identity.UID,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      strings.TrimSpace(req.Email),
		Phone:      strings.TrimSpace(req.Phone),
		Billing:    addressFromPayload(req.Billing),
	}
	if req.Delivery != nil {
		delivery := addressFromPayload(*req.Delivery)
		contact.Delivery = &delivery
	}

	saved, err := h.contacts.SaveContact(ctx, contact)
	if err != nil {
		if errors.Is(err, services.ErrContactInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("INVALID_REQUEST", err.Error(), http.StatusUnprocessableEntity))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("ERROR", "failed to save contact", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, contactToPayload(saved))
}

func (h *ShopHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.transactions != nil)
	if !ok {
		return
	}

	orders, err := h.transactions.ListCustomerOrders(ctx, identity.UID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("ERROR", "failed to load orders", http.StatusInternalServerError))
		return
	}

	payload := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		lines := make([]orderLineResponse, 0, len(order.Lines))
		for _, line := range order.Lines {
			lines = append(lines, orderLineResponse{
				Code:      line.Code,
				Name:      line.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
				Digital:   line.Digital,
			})
		}
		payload = append(payload, orderResponse{
			TransactionID: order.TransactionID,
			Status:        order.Status,
			Amounts:       amountsToPayload(order.Amounts),
			Lines:         lines,
			CreatedAt:     formatTime(order.CreatedAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"orders": payload})
}

func (h *ShopHandlers) createTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.transactions != nil)
	if !ok {
		return
	}

	if h.limiter != nil && !h.limiter.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("RATE_LIMITED", "too many checkout attempts; try again shortly", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxShopRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req createTransactionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("INVALID_REQUEST", "request body must be valid JSON", http.StatusUnprocessableEntity))
		return
	}
	if len(req.Basket) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("INVALID_REQUEST", "basket must not be empty", http.StatusUnprocessableEntity))
		return
	}

	lines := make([]domain.BasketLine, 0, len(req.Basket))
	for _, line := range req.Basket {
		lines = append(lines, domain.BasketLine{
			Code:     strings.TrimSpace(line.ProductCode),
			Quantity: line.ProductAmount,
		})
	}

	result, err := h.transactions.CreateSalesTransaction(ctx, services.CreateSalesTransactionCommand{
		CustomerID:      identity.UID,
		Lines:           lines,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		ClientSecret:    strings.TrimSpace(req.ClientSecret),
	})
	if err != nil {
		writeTransactionError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, createTransactionResponse{
		TransactionID: result.TransactionID,
		ClientSecret:  result.ClientSecret,
		Amounts:       amountsToPayload(result.Amounts),
		TaxAddress:    addressToPayload(result.TaxAddress),
	})
}

func writeTransactionError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("PRODUCT_NOT_FOUND", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrContactNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("CONTACT_NOT_FOUND", "save contact details before checking out", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPricingInvalidInput), errors.Is(err, services.ErrTransactionInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("INVALID_REQUEST", err.Error(), http.StatusUnprocessableEntity))
	default:
		if code, ok := payments.ErrorCode(err); ok {
			httpx.WriteError(ctx, w, httpx.NewError(code, "payment processor rejected the request", http.StatusUnprocessableEntity))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("ERROR", "failed to process transaction", http.StatusInternalServerError))
	}
}

func requireIdentity(ctx context.Context, w http.ResponseWriter, serviceReady bool) (*auth.Identity, bool) {
	if !serviceReady {
		httpx.WriteError(ctx, w, httpx.NewError("ERROR", "service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("INVALID_REQUEST", err.Error(), status))
}

func contactToPayload(contact domain.Contact) contactPayload {
	payload := contactPayload{
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Email:     contact.Email,
		Phone:     contact.Phone,
		Billing:   addressToPayload(contact.Billing),
	}
	if contact.Delivery != nil {
		delivery := addressToPayload(*contact.Delivery)
		payload.Delivery = &delivery
	}
	return payload
}

func addressFromPayload(payload addressPayload) domain.Address {
	return domain.Address{
		Line1:      strings.TrimSpace(payload.Line1),
		Line2:      strings.TrimSpace(payload.Line2),
		City:       strings.TrimSpace(payload.City),
		Region:     strings.TrimSpace(payload.Region),
		PostalCode: strings.TrimSpace(payload.PostalCode),
		Country:    strings.TrimSpace(payload.Country),
	}
}

func addressToPayload(address domain.Address) addressPayload {
	return addressPayload{
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		Region:     address.Region,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}

func amountsToPayload(amounts domain.OrderAmounts) amountsPayload {
	return amountsPayload{
		Subtotal: amounts.Subtotal,
		Shipping: amounts.Shipping,
		Tax:      amounts.Tax,
		Total:    amounts.Total,
	}
}
