package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a thin wrapper over the Bot API. Send and acknowledge failures
// are logged and swallowed so that one failed outward call never aborts
// processing of the rest of a batch; only getUpdates reports anything back,
// and even that degrades to an empty batch on failure.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{},
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboard) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}
	c.post(ctx, "sendMessage", payload)
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	c.post(ctx, "answerCallbackQuery", payload)
}

func (c *Client) post(ctx context.Context, method string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("telegram: %s marshal: %v", method, err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		log.Printf("telegram: %s request: %v", method, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		log.Printf("telegram: %s: %v", method, err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("telegram: %s: status %d", method, resp.StatusCode)
	}
}

type getUpdatesResp struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

// GetUpdates long-polls for new updates starting at offset. A 409 means
// another poller holds the long poll on this token; that is an expected
// condition and yields an empty batch without logging. Every other failure
// is logged and also yields an empty batch.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) []Update {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.FormatInt(int64(timeout/time.Second), 10))

	// Leave headroom over the server-side long-poll timeout.
	cctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, c.methodURL("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		log.Printf("telegram: getUpdates request: %v", err)
		return nil
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		log.Printf("telegram: getUpdates: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		// Another polling instance is active; skip silently.
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		log.Printf("telegram: getUpdates: status %d", resp.StatusCode)
		return nil
	}

	var out getUpdatesResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Printf("telegram: getUpdates decode: %v", err)
		return nil
	}
	if !out.OK {
		return nil
	}
	return out.Result
}
