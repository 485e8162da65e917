package subscribers

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/gigscope/internal/network"
)

type stubDoer struct {
	status int
	body   string
	auth   string
	calls  int
}

func (d *stubDoer) Do(req *fhttp.Request) (*fhttp.Response, error) {
	d.calls++
	d.auth = req.Header.Get("authorization")
	return &fhttp.Response{
		StatusCode: d.status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Header:     fhttp.Header{},
		Request:    req,
	}, nil
}

var fastRetry = network.RetryPolicy{MaxRetries: 1, Initial: time.Millisecond, Multiplier: 2}

func TestHTTPActiveEmails(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []string
	}{
		{"array", `["A@x.pl", "b@x.pl"]`, []string{"A@x.pl", "b@x.pl"}},
		{"object", `{"emails": ["c@x.pl"]}`, []string{"c@x.pl"}},
	}
	for _, tc := range cases {
		doer := &stubDoer{status: 200, body: tc.body}
		src := &HTTP{URL: "https://registry.test/active", Token: "secret", Client: doer, Retry: fastRetry}
		got, err := src.ActiveEmails(context.Background())
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if strings.Join(got, ",") != strings.Join(tc.want, ",") {
			t.Fatalf("%s: got %v", tc.name, got)
		}
		if doer.auth != "Bearer secret" {
			t.Fatalf("%s: missing bearer token, got %q", tc.name, doer.auth)
		}
	}
}

func TestHTTPActiveEmailsErrors(t *testing.T) {
	src := &HTTP{URL: "https://registry.test/active", Client: &stubDoer{status: 200, body: `{"users": []}`}, Retry: fastRetry}
	if _, err := src.ActiveEmails(context.Background()); err == nil {
		t.Fatalf("expected error for a payload without emails")
	}

	src.Client = &stubDoer{status: 401, body: "nope"}
	_, err := src.ActiveEmails(context.Background())
	if !errors.Is(err, network.ErrRequestFailed) {
		t.Fatalf("expected request failure, got %v", err)
	}

	if _, err := (&HTTP{}).ActiveEmails(context.Background()); err == nil {
		t.Fatalf("expected error without url")
	}
}

func TestSnapshot(t *testing.T) {
	snap, err := Fetch(context.Background(), Static{" Ola@Example.com ", "", "ola@example.com", "jan@x.pl"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("expected 2 emails, got %d", snap.Len())
	}
	if !snap.Contains("OLA@example.COM") || snap.Contains("kasia@x.pl") {
		t.Fatalf("unexpected membership")
	}

	var empty Snapshot
	if empty.Contains("ola@example.com") {
		t.Fatalf("zero snapshot should be empty")
	}
	if _, err := Fetch(context.Background(), nil); err == nil {
		t.Fatalf("expected error without source")
	}
}
