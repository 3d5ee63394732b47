// Package httpc builds the HTTP clients blinkwatch uses to reach
// landmark and speech services. Clients always carry timeouts.
package httpc

import (
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

func transport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// New returns a resty client rooted at baseURL with the given request
// timeout. A zero timeout means DefaultTimeout.
func New(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetTransport(transport()).
		SetTimeout(timeout).
		SetHeader("User-Agent", "blinkwatch")
	if baseURL != "" {
		c.SetBaseURL(baseURL)
	}
	return c
}

// WithRetry enables retries on transport errors and 429/5xx responses.
func WithRetry(c *resty.Client, maxRetries int, wait time.Duration) *resty.Client {
	return c.
		SetRetryCount(maxRetries).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(wait * 10).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := r.StatusCode()
			return code == http.StatusTooManyRequests || code >= 500
		})
}
