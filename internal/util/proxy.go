package util

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// SetProxy routes httpClient through proxyURL. SOCKS5, HTTP and HTTPS proxies are
// supported; an empty or unsupported URL leaves the client untouched.
func SetProxy(proxyURL string, httpClient *http.Client) *http.Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return httpClient
	}
	parsed, errParse := url.Parse(proxyURL)
	if errParse != nil {
		log.Warnf("ignoring invalid proxy url: %v", errParse)
		return httpClient
	}

	var transport *http.Transport
	switch parsed.Scheme {
	case "socks5":
		var proxyAuth *proxy.Auth
		if parsed.User != nil {
			password, _ := parsed.User.Password()
			proxyAuth = &proxy.Auth{User: parsed.User.Username(), Password: password}
		}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", parsed.Host, proxyAuth, proxy.Direct)
		if errSOCKS5 != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
			return httpClient
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
	default:
		log.Warnf("unsupported proxy scheme %q", parsed.Scheme)
	}
	if transport != nil {
		httpClient.Transport = transport
	}
	return httpClient
}
