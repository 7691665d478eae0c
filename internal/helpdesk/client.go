package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client talks to a Frappe-style helpdesk REST API using token auth.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	httpc     *http.Client

	mu         sync.Mutex
	fieldNames map[string]bool
}

func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpc:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+c.apiKey+":"+c.apiSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("helpdesk %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) CreateTicket(ctx context.Context, fields map[string]any) (*Ticket, error) {
	var out struct {
		Data Ticket `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/resource/HD Ticket", fields, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) GetTicket(ctx context.Context, id string) (*Ticket, error) {
	var out struct {
		Data Ticket `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/resource/HD Ticket/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) AddCommunication(ctx context.Context, ticketID, sender, subject, content string) error {
	body := map[string]any{
		"communication_type": "Communication",
		"reference_doctype":  "HD Ticket",
		"reference_name":     ticketID,
		"sender":             sender,
		"sent_or_received":   "Received",
		"subject":            subject,
		"content":            content,
	}
	return c.do(ctx, http.MethodPost, "/api/resource/Communication", body, nil)
}

func (c *Client) EnsureContact(ctx context.Context, email, fullName string) error {
	filters := url.QueryEscape(fmt.Sprintf(`[["email_id","=",%q]]`, email))
	var found struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/resource/Contact?filters="+filters, nil, &found); err != nil {
		return err
	}
	if len(found.Data) > 0 {
		return nil
	}

	first, last := splitName(fullName, email)
	body := map[string]any{
		"first_name": first,
		"last_name":  last,
		"email_ids": []map[string]any{
			{"email_id": email, "is_primary": 1},
		},
	}
	return c.do(ctx, http.MethodPost, "/api/resource/Contact", body, nil)
}

func splitName(fullName, fallback string) (first, last string) {
	parts := strings.SplitN(strings.TrimSpace(fullName), " ", 2)
	first = parts[0]
	if first == "" {
		first = fallback
	}
	if len(parts) > 1 {
		last = parts[1]
	}
	return first, last
}

func (c *Client) TemplateFields(ctx context.Context, template string) ([]TemplateField, error) {
	var out struct {
		Message []TemplateField `json:"message"`
	}
	path := "/api/method/helpdesk.helpdesk.doctype.hd_ticket_template.api.get_fields_meta?template=" + url.QueryEscape(template)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Message, nil
}

// TicketFieldNames fetches the ticket doctype metadata once and caches the
// accepted attribute names for the lifetime of the client.
func (c *Client) TicketFieldNames(ctx context.Context) (map[string]bool, error) {
	c.mu.Lock()
	cached := c.fieldNames
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var out struct {
		Docs []struct {
			Fields []struct {
				Fieldname string `json:"fieldname"`
			} `json:"fields"`
		} `json:"docs"`
	}
	path := "/api/method/frappe.desk.form.load.getdoctype?doctype=" + url.QueryEscape("HD Ticket")
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	names := make(map[string]bool)
	for _, doc := range out.Docs {
		for _, f := range doc.Fields {
			if f.Fieldname != "" {
				names[f.Fieldname] = true
			}
		}
	}

	c.mu.Lock()
	c.fieldNames = names
	c.mu.Unlock()
	return names, nil
}
