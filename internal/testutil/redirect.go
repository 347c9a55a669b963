// Package testutil holds helpers shared by package tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
)

// RedirectClient returns a client that delivers every request to srv while
// leaving the path, query and Host header untouched. Handlers can therefore
// assert the exact provider URL the code under test built.
func RedirectClient(srv *httptest.Server) *http.Client {
	target, err := url.Parse(srv.URL)
	if err != nil {
		panic(err)
	}
	return &http.Client{Transport: &redirectTransport{target: target, next: srv.Client().Transport}}
}

type redirectTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (t *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Host == "" {
		out.Host = req.URL.Host
	}
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	return t.next.RoundTrip(out)
}
