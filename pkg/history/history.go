// Package history reads the signed-in user's attendance records.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-attend/internal/httpc"
	"github.com/teslashibe/go-attend/pkg/auth"
)

// ErrUnauthorized is returned when the backend rejects the token.
var ErrUnauthorized = errors.New("history: session expired")

// Record is one attendance entry.
type Record struct {
	AttendanceID int    `json:"attendance_id"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Status       string `json:"status"`
}

// Filter narrows a listing. Zero fields are omitted.
type Filter struct {
	Year  int
	Month int
	Day   int
}

// Today returns a filter for the current day.
func Today() Filter {
	now := time.Now()
	return Filter{Year: now.Year(), Month: int(now.Month()), Day: now.Day()}
}

// Validate checks field ranges.
func (f Filter) Validate() error {
	if f.Month < 0 || f.Month > 12 {
		return fmt.Errorf("history: month out of range: %d", f.Month)
	}
	if f.Day < 0 || f.Day > 31 {
		return fmt.Errorf("history: day out of range: %d", f.Day)
	}
	if f.Year < 0 {
		return fmt.Errorf("history: year out of range: %d", f.Year)
	}
	return nil
}

func (f Filter) query() url.Values {
	q := url.Values{}
	if f.Year > 0 {
		q.Set("year", strconv.Itoa(f.Year))
	}
	if f.Month > 0 {
		q.Set("month", strconv.Itoa(f.Month))
	}
	if f.Day > 0 {
		q.Set("day", strconv.Itoa(f.Day))
	}
	return q
}

// Client lists attendance records.
type Client struct {
	baseURL string
	tokens  auth.TokenSource
	http    *http.Client
}

// NewClient creates a history client. A nil http client uses httpc.Client.
func NewClient(baseURL string, tokens auth.TokenSource, client *http.Client) *Client {
	if client == nil {
		client = httpc.Client
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		http:    client,
	}
}

// List returns the records matching f.
func (c *Client) List(ctx context.Context, f Filter) ([]Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	u := c.baseURL + "/users/attendance"
	if q := f.query().Encode(); q != "" {
		u += "?" + q
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("history: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("history: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		// The backend answers 404 when there are no records.
		return []Record{}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("history: unexpected status %d", resp.StatusCode)
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("history: decode response: %w", err)
	}
	return records, nil
}
