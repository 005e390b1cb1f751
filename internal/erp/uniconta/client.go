package uniconta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"billrecon/internal/config"
	"billrecon/internal/domain"
	"billrecon/internal/port"
)

const (
	debtorEntity    = "DebtorClient"
	orderEntity     = "DebtorOrderClient"
	orderLineEntity = "DebtorOrderLineClient"

	maxErrorBody = 512
)

// ErrInvalidOrderNumber is returned when an order insert answers without a usable order number.
var ErrInvalidOrderNumber = errors.New("erp returned no order number")

// StatusError is a non-2xx answer from the ERP API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// queryFilter is one entry of the Query/Get filter list. Take 0 means all rows.
type queryFilter struct {
	PropertyName      string `json:"PropertyName"`
	FilterValue       string `json:"FilterValue"`
	Skip              int    `json:"Skip"`
	Take              int    `json:"Take"`
	OrderBy           string `json:"OrderBy"`
	OrderByDescending string `json:"OrderByDescending"`
}

func filterBy(property, value string) []queryFilter {
	return []queryFilter{{
		PropertyName:      property,
		FilterValue:       value,
		OrderBy:           "true",
		OrderByDescending: "false",
	}}
}

type orderInsert struct {
	Account     string `json:"Account"`
	AccountName string `json:"AccountName,omitempty"`
	YourRef     string `json:"YourRef"`
	InvoiceDate string `json:"InvoiceDate,omitempty"`
	Simulate    bool   `json:"Simulate"`
}

// Client talks to the Uniconta REST entity API. It serves as the debtor
// source, the order gateway and the order purger.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

var (
	_ port.DebtorSource = (*Client)(nil)
	_ port.OrderGateway = (*Client)(nil)
	_ port.OrderPurger  = (*Client)(nil)
)

// NewClient creates a Client from ERP settings.
func NewClient(cfg *config.ERPConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "uniconta")),
	}
}

// LoadDebtors returns every debtor record in the company.
func (c *Client) LoadDebtors(ctx context.Context) ([]domain.Record, error) {
	var rows []domain.Record
	if err := c.do(ctx, http.MethodPost, "/Query/Get/"+debtorEntity, filterBy("Account", ""), &rows); err != nil {
		return nil, fmt.Errorf("uniconta.LoadDebtors: %w", err)
	}
	c.logger.Info("debtors loaded", zap.Int("count", len(rows)))
	return rows, nil
}

// FindOrders returns the open orders of a debtor account.
func (c *Client) FindOrders(ctx context.Context, account string) ([]domain.Record, error) {
	var rows []domain.Record
	if err := c.do(ctx, http.MethodPost, "/Query/Get/"+orderEntity, filterBy("Account", account), &rows); err != nil {
		return nil, fmt.Errorf("uniconta.FindOrders: %w", err)
	}
	return rows, nil
}

// CreateOrder inserts an order header for debtor and returns its order number.
func (c *Client) CreateOrder(ctx context.Context, debtor *domain.Debtor, meta port.OrderMetadata) (string, error) {
	body := orderInsert{
		Account:     debtor.Account(),
		AccountName: debtor.Name(),
		YourRef:     meta.YourRef,
		InvoiceDate: meta.InvoiceDate,
		Simulate:    meta.Simulate,
	}
	var created domain.Record
	if err := c.do(ctx, http.MethodPost, "/Crud/Insert/"+orderEntity, body, &created); err != nil {
		return "", fmt.Errorf("uniconta.CreateOrder: %w", err)
	}
	number := created.String("OrderNumber")
	if number == "" {
		number = created.String("invoiceNumber")
	}
	if number == "" || number == "Invalid" {
		return "", fmt.Errorf("uniconta.CreateOrder %s: %w", debtor.Account(), ErrInvalidOrderNumber)
	}
	c.logger.Info("order created",
		zap.String("account", debtor.Account()),
		zap.String("order_number", number),
		zap.Bool("simulate", meta.Simulate),
	)
	return number, nil
}

// SubmitLines inserts lines against an existing order in one request.
func (c *Client) SubmitLines(ctx context.Context, orderNumber string, lines []port.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, "/Crud/InsertList/"+orderLineEntity, lines, nil); err != nil {
		return fmt.Errorf("uniconta.SubmitLines %s: %w", orderNumber, err)
	}
	return nil
}

// ListOrdersByRef returns every order whose YourRef equals yourRef.
func (c *Client) ListOrdersByRef(ctx context.Context, yourRef string) ([]domain.Record, error) {
	var rows []domain.Record
	if err := c.do(ctx, http.MethodPost, "/Query/Get/"+orderEntity, filterBy("Account", ""), &rows); err != nil {
		return nil, fmt.Errorf("uniconta.ListOrdersByRef: %w", err)
	}
	matched := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		if r.String("YourRef") == yourRef {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// DeleteOrders deletes orders, sending them back as they were queried.
func (c *Client) DeleteOrders(ctx context.Context, orders []domain.Record) error {
	if len(orders) == 0 {
		return nil
	}
	if err := c.do(ctx, http.MethodDelete, "/Crud/DeleteList/"+orderEntity, orders, nil); err != nil {
		return fmt.Errorf("uniconta.DeleteOrders: %w", err)
	}
	c.logger.Info("orders deleted", zap.Int("count", len(orders)))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("erp request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
