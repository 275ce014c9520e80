package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrEmptyURL          = errors.New("URL cannot be empty")
	ErrSchemeNotAllowed  = errors.New("URL scheme not allowed")
	ErrHostNotAllowed    = errors.New("URL host not allowed")
	ErrRestrictedNetwork = errors.New("URL resolves to a restricted network")
)

// URLValidator decides whether a remote result URL may be fetched by the
// server. Hosts resolving to private, loopback or link-local addresses are
// refused.
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
	lookupIP       func(host string) ([]net.IP, error)
}

// NewURLValidator creates a new URL validator with default settings
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
		lookupIP:       net.LookupIP,
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	v := NewURLValidator()
	v.allowedSchemes = schemes
	v.allowedHosts = hosts
	return v
}

// ValidateResultURL checks that imageURL is an absolute http(s) URL whose
// host only resolves to public addresses
func (v *URLValidator) ValidateResultURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return ErrEmptyURL
	}

	parsedURL, err := url.ParseRequestURI(imageURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return fmt.Errorf("%w: %q", ErrSchemeNotAllowed, parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a valid host")
	}

	if !v.isHostAllowed(host) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}

	ips, err := v.resolve(host)
	if err != nil {
		return err
	}
	for _, ip := range ips {
		if isRestricted(ip) {
			return fmt.Errorf("%w: %s", ErrRestrictedNetwork, ip)
		}
	}

	return nil
}

func (v *URLValidator) resolve(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	ips, err := v.lookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses", host)
	}
	return ips, nil
}

// CheckIP refuses addresses in private, loopback, unspecified or link-local
// networks. It is meant for the dial step, after DNS resolution.
func CheckIP(ip net.IP) error {
	if ip == nil || isRestricted(ip) {
		return fmt.Errorf("%w: %s", ErrRestrictedNetwork, ip)
	}
	return nil
}

func isRestricted(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
