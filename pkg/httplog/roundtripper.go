package httplog

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

// MaxLoggedBody limits how much of a body ends up in the access log; installer images are megabytes.
const MaxLoggedBody = 16 * 1024

// RoundTripper writes an access log for every outgoing request.
// Bodies are only buffered when they are small or JSON, so large downloads still stream.
type RoundTripper struct {
	Base http.RoundTripper
}

var _ http.RoundTripper = (*RoundTripper)(nil)

// New wraps base, or http.DefaultTransport when base is nil.
func New(base http.RoundTripper) *RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	return &RoundTripper{Base: base}
}

// NewClient returns http.Client using the logging RoundTripper.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: New(nil),
		Timeout:   timeout,
	}
}

func (r *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	t0 := time.Now()

	var (
		ctx  = req.Context()
		resp *http.Response
		err  error
	)

	var reqBody []byte
	if req.Body != nil && req.Body != http.NoBody {
		var reqBodyErr error
		reqBody, reqBodyErr = io.ReadAll(req.Body)
		if reqBodyErr != nil {
			err = multierr.Append(err, fmt.Errorf("error read request body: %w", reqBodyErr))
			reqBody = []byte("")
		}

		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	base := r.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, rtErr := base.RoundTrip(req)
	if rtErr != nil {
		err = multierr.Append(err, fmt.Errorf("error doing actual request: %w", rtErr))
	}

	var (
		respBody   []byte
		respHeader http.Header
		status     int
	)
	if resp != nil {
		respHeader = resp.Header
		status = resp.StatusCode
		if resp.Body != nil && shouldBuffer(resp) {
			var respErrBody error
			respBody, respErrBody = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if respErrBody != nil {
				err = multierr.Append(err, fmt.Errorf("error read response body: %w", respErrBody))
				respBody = []byte{}
			}

			resp.Body = io.NopCloser(bytes.NewReader(respBody))
		}
	}

	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	ylog.Access(ctx, ylog.AccessLogData{
		Path: fmt.Sprintf("%s %s %d", req.Method, req.URL.String(), status),
		Request: ylog.HTTPData{
			Header:     toSimpleMap(req.Header),
			DataString: truncate(reqBody),
		},
		Response: ylog.HTTPData{
			Header:     toSimpleMap(respHeader),
			DataString: truncate(respBody),
		},
		Error:       errStr,
		ElapsedTime: time.Since(t0).Milliseconds(),
	})

	if rtErr != nil {
		return nil, rtErr
	}

	return resp, nil
}

func shouldBuffer(resp *http.Response) bool {
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return true
	}

	return resp.ContentLength >= 0 && resp.ContentLength <= MaxLoggedBody
}

func truncate(b []byte) string {
	if len(b) > MaxLoggedBody {
		return string(b[:MaxLoggedBody]) + "...(truncated)"
	}

	return string(b)
}

func toSimpleMap(h http.Header) map[string]string {
	out := map[string]string{}
	for k, v := range h {
		if strings.EqualFold(k, "Authorization") {
			out[k] = "***"
			continue
		}

		out[k] = strings.Join(v, " ")
	}

	return out
}
