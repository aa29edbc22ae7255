package base

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

// baseTransportConfig returns the shared HTTP transport used by vendor clients.
func baseTransportConfig() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 2 * time.Minute,
		TLSHandshakeTimeout:   10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
	}
}

// newHTTPClient creates an HTTP client for vendor requests. Scraping vendors get a
// cookie jar so a priming request can establish a session.
func newHTTPClient(timeout time.Duration, withJar bool) *http.Client {
	c := &http.Client{
		Transport: baseTransportConfig(),
		Timeout:   timeout,
	}
	if withJar {
		jar, _ := cookiejar.New(nil)
		c.Jar = jar
	}
	return c
}
