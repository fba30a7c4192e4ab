package quickbooks

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	authorizeURL     = "https://appcenter.intuit.com/connect/oauth2"
	tokenURL         = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	productionAPI    = "https://quickbooks.api.intuit.com"
	sandboxAPI       = "https://sandbox-quickbooks.api.intuit.com"
	oauthScope       = "com.intuit.quickbooks.accounting"
	defaultQueryPage = 1000
)

// ClientConfig carries the OAuth application credentials.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Sandbox      bool
}

// Client talks to the QuickBooks Online API. Errors from the API are
// propagated to callers unchanged; there is no retry layer.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient constructs a QuickBooks API client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{cfg: cfg, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) apiBase() string {
	if c.cfg.Sandbox {
		return sandboxAPI
	}
	return productionAPI
}

// AuthURL builds the user-facing authorization URL. state is echoed back on
// the callback and must be verified by the caller.
func (c *Client) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", oauthScope)
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("state", state)
	return authorizeURL + "?" + q.Encode()
}

// TokenSet is the result of a code exchange or refresh.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// ExchangeCode trades an OAuth authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	return c.tokenRequest(ctx, form)
}

// RefreshTokens renews an access token from its refresh token.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.tokenRequest(ctx, form)
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenSet{}, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return TokenSet{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return TokenSet{}, fmt.Errorf("quickbooks: token endpoint returned %d: %s", resp.StatusCode, body)
	}
	var tokens TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return TokenSet{}, err
	}
	return tokens, nil
}

// Item is a QuickBooks inventory item projection.
type Item struct {
	ID          string  `json:"Id"`
	Name        string  `json:"Name"`
	SKU         string  `json:"Sku"`
	Type        string  `json:"Type"`
	UnitPrice   float64 `json:"UnitPrice"`
	QtyOnHand   float64 `json:"QtyOnHand"`
	Description string  `json:"Description"`
	Active      bool    `json:"Active"`
}

type queryResponse struct {
	QueryResponse struct {
		Item          []Item `json:"Item"`
		StartPosition int    `json:"startPosition"`
		MaxResults    int    `json:"maxResults"`
	} `json:"QueryResponse"`
}

// ListItems pages through all inventory items for the connected company.
func (c *Client) ListItems(ctx context.Context, conn Connection) ([]Item, error) {
	var all []Item
	start := 1
	for {
		query := fmt.Sprintf("SELECT * FROM Item STARTPOSITION %d MAXRESULTS %d", start, defaultQueryPage)
		endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s", c.apiBase(), conn.RealmID, url.QueryEscape(query))

		var page queryResponse
		if err := c.get(ctx, conn, endpoint, &page); err != nil {
			return nil, err
		}
		all = append(all, page.QueryResponse.Item...)
		if len(page.QueryResponse.Item) < defaultQueryPage {
			return all, nil
		}
		start += defaultQueryPage
	}
}

// InvoiceLine is one line of an invoice to create.
type InvoiceLine struct {
	ItemID    string  `json:"item_id"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

// CreateInvoice posts a sales invoice and returns its QuickBooks id.
func (c *Client) CreateInvoice(ctx context.Context, conn Connection, customerID string, lines []InvoiceLine) (string, error) {
	type ref struct {
		Value string `json:"value"`
	}
	type salesDetail struct {
		ItemRef   ref     `json:"ItemRef"`
		Qty       float64 `json:"Qty"`
		UnitPrice float64 `json:"UnitPrice"`
	}
	type line struct {
		Amount      float64     `json:"Amount"`
		DetailType  string      `json:"DetailType"`
		SalesDetail salesDetail `json:"SalesItemLineDetail"`
	}
	payload := struct {
		CustomerRef ref    `json:"CustomerRef"`
		Line        []line `json:"Line"`
	}{CustomerRef: ref{Value: customerID}}
	for _, l := range lines {
		payload.Line = append(payload.Line, line{
			Amount:     l.Qty * l.UnitPrice,
			DetailType: "SalesItemLineDetail",
			SalesDetail: salesDetail{
				ItemRef:   ref{Value: l.ItemID},
				Qty:       l.Qty,
				UnitPrice: l.UnitPrice,
			},
		})
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/invoice", c.apiBase(), conn.RealmID)
	var out struct {
		Invoice struct {
			ID string `json:"Id"`
		} `json:"Invoice"`
	}
	if err := c.post(ctx, conn, endpoint, payload, &out); err != nil {
		return "", err
	}
	return out.Invoice.ID, nil
}

// PushItem creates a QuickBooks item from local product data.
func (c *Client) PushItem(ctx context.Context, conn Connection, name, sku string, unitPrice float64) error {
	payload := map[string]any{
		"Name":      name,
		"Sku":       sku,
		"Type":      "NonInventory",
		"UnitPrice": unitPrice,
		"IncomeAccountRef": map[string]string{
			"value": "79",
		},
	}
	endpoint := fmt.Sprintf("%s/v3/company/%s/item", c.apiBase(), conn.RealmID)
	return c.post(ctx, conn, endpoint, payload, nil)
}

func (c *Client) get(ctx context.Context, conn Connection, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, conn, out)
}

func (c *Client) post(ctx context.Context, conn Connection, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, conn, out)
}

func (c *Client) do(req *http.Request, conn Connection, out any) error {
	req.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("quickbooks: api returned %d: %s", resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
