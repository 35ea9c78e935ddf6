package netutil

import (
	"net"
	"net/url"
	"strconv"
)

// DetectLocalIPs returns all non-loopback IPv4 addresses on the host.
func DetectLocalIPs() []string {
	var ips []string

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP
		if ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		ips = append(ips, ip.String())
	}

	return ips
}

// IsWildcard reports whether host listens on every interface.
func IsWildcard(host string) bool {
	if host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsUnspecified()
}

// ListenURLs returns the URLs a browser can use to reach a server bound to
// host:port. A wildcard host yields localhost first, then one URL per local
// IPv4 address.
func ListenURLs(host string, port int) []string {
	p := strconv.Itoa(port)
	build := func(h string) string {
		u := &url.URL{Scheme: "http", Host: net.JoinHostPort(h, p)}
		return u.String()
	}

	if !IsWildcard(host) {
		return []string{build(host)}
	}

	urls := []string{build("localhost")}
	for _, ip := range DetectLocalIPs() {
		urls = append(urls, build(ip))
	}
	return urls
}
