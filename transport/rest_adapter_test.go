package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-delivery/core"
	goerrors "github.com/goliatone/go-errors"
)

type stubDoer struct {
	request  *http.Request
	response *http.Response
	err      error
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.request = req
	if d.err != nil {
		return nil, d.err
	}
	return d.response, nil
}

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestRESTAdapter_SendsSignedRequestShape(t *testing.T) {
	doer := &stubDoer{response: okResponse(`{"ok":true}`)}
	adapter := NewRESTAdapter(doer)
	adapter.DefaultHeaders["User-Agent"] = "go-delivery"

	response, err := adapter.Do(context.Background(), core.TransportRequest{
		Method:      "post",
		URL:         "https://hooks.example.com/in?tenant=acme",
		Headers:     map[string]string{"X-Webhook-Event": "order.created"},
		Query:       map[string]string{"source": "outbox"},
		Body:        []byte(`{"hello":"world"}`),
		Idempotency: "dlv-123",
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", response.StatusCode)
	}
	if doer.request.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", doer.request.Method)
	}
	query := doer.request.URL.Query()
	if query.Get("tenant") != "acme" || query.Get("source") != "outbox" {
		t.Fatalf("expected merged query, got %q", doer.request.URL.RawQuery)
	}
	if doer.request.Header.Get("User-Agent") != "go-delivery" {
		t.Fatalf("expected default header to apply")
	}
	if doer.request.Header.Get("X-Webhook-Event") != "order.created" {
		t.Fatalf("expected request header to apply")
	}
	if doer.request.Header.Get("Idempotency-Key") != "dlv-123" {
		t.Fatalf("expected idempotency key header")
	}
	if response.Headers["Content-Type"] != "application/json" {
		t.Fatalf("expected flattened response headers, got %+v", response.Headers)
	}
	if response.Metadata["kind"] != KindREST {
		t.Fatalf("expected kind metadata, got %+v", response.Metadata)
	}
}

func TestRESTAdapter_DefaultsToPost(t *testing.T) {
	doer := &stubDoer{response: okResponse("{}")}
	adapter := NewRESTAdapter(doer)

	if _, err := adapter.Do(context.Background(), core.TransportRequest{URL: "https://hooks.example.com/in"}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if doer.request.Method != http.MethodPost {
		t.Fatalf("expected POST default, got %s", doer.request.Method)
	}
}

func TestRESTAdapter_RequiresURL(t *testing.T) {
	adapter := NewRESTAdapter(&stubDoer{response: okResponse("{}")})

	_, err := adapter.Do(context.Background(), core.TransportRequest{})
	if err == nil {
		t.Fatalf("expected error for missing url")
	}
	var serviceErr *goerrors.Error
	if !errors.As(err, &serviceErr) || serviceErr.Category != goerrors.CategoryBadInput {
		t.Fatalf("expected bad input category, got %v", err)
	}
	if serviceErr.TextCode != core.DeliveryErrorBadInput {
		t.Fatalf("unexpected text code: %q", serviceErr.TextCode)
	}
}

func TestRESTAdapter_WrapsClientFailures(t *testing.T) {
	cause := errors.New("connection refused")
	adapter := NewRESTAdapter(&stubDoer{err: cause})

	_, err := adapter.Do(context.Background(), core.TransportRequest{URL: "https://hooks.example.com/in"})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	var serviceErr *goerrors.Error
	if !errors.As(err, &serviceErr) || serviceErr.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %v", err)
	}
	if serviceErr.TextCode != core.DeliveryErrorUpstreamFailed {
		t.Fatalf("unexpected text code: %q", serviceErr.TextCode)
	}
}

func TestRESTAdapter_EnforcesResponseBodyLimit(t *testing.T) {
	adapter := NewRESTAdapter(&stubDoer{response: okResponse(strings.Repeat("a", 64))})

	_, err := adapter.Do(context.Background(), core.TransportRequest{
		URL:                  "https://hooks.example.com/in",
		MaxResponseBodyBytes: 32,
	})
	if err == nil || !strings.Contains(err.Error(), "exceeds limit") {
		t.Fatalf("expected body limit error, got %v", err)
	}
}

func TestRESTAdapter_AppliesPerRequestTimeout(t *testing.T) {
	doer := &stubDoer{response: okResponse("{}")}
	adapter := NewRESTAdapter(doer)

	if _, err := adapter.Do(context.Background(), core.TransportRequest{
		URL:     "https://hooks.example.com/in",
		Timeout: 50 * time.Millisecond,
	}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if _, ok := doer.request.Context().Deadline(); !ok {
		t.Fatalf("expected request context deadline")
	}
}
