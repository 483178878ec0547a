// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package azuretesting provides a fake HTTP transport and credential for
// exercising ARM clients without network access.
package azuretesting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// Request is a request seen by MockSender, with its body read.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// MockSender is a policy.Transporter returning queued responses in
// order and recording the requests it is given.
type MockSender struct {
	mu        sync.Mutex
	responses []*http.Response
	requests  []Request
}

// AppendResponse queues a response.
func (s *MockSender) AppendResponse(resp *http.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
}

// Requests returns the requests sent so far.
func (s *MockSender) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Do is part of policy.Transporter.
func (s *MockSender) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Body:   body,
	})
	if len(s.responses) == 0 {
		return nil, fmt.Errorf("no response queued for %s %s", req.Method, req.URL.Path)
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	resp.Request = req
	return resp, nil
}

// NewResponseWithContent returns a 200 response with a JSON body.
func NewResponseWithContent(content string) *http.Response {
	return newResponse(http.StatusOK, content)
}

// NewResponseWithStatus returns a response with the given status and
// an empty body.
func NewResponseWithStatus(code int) *http.Response {
	return newResponse(code, "")
}

// NewErrorResponse returns an ARM error response carrying code.
func NewErrorResponse(status int, code, message string) *http.Response {
	resp := newResponse(status, fmt.Sprintf(`{"error":{"code":%q,"message":%q}}`, code, message))
	resp.Header.Set("x-ms-error-code", code)
	return resp
}

func newResponse(code int, content string) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", code, http.StatusText(code)),
		StatusCode:    code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader([]byte(content))),
		ContentLength: int64(len(content)),
	}
}

// FakeCredential is an azcore.TokenCredential returning a fixed token.
type FakeCredential struct{}

// GetToken is part of azcore.TokenCredential.
func (*FakeCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     "fake-token",
		ExpiresOn: time.Now().Add(time.Hour),
	}, nil
}

// ClientOptions returns ARM client options sending through sender,
// with SDK retries disabled.
func ClientOptions(sender *MockSender) *arm.ClientOptions {
	return &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Transport: sender,
			Retry: policy.RetryOptions{
				MaxRetries: -1,
			},
		},
		DisableRPRegistration: true,
	}
}

// PathHasSuffix reports whether the request path ends with suffix,
// ignoring case.
func (r Request) PathHasSuffix(suffix string) bool {
	return strings.HasSuffix(strings.ToLower(r.Path), strings.ToLower(suffix))
}
