package validation

import (
	"errors"
	"net"
	"testing"
)

func staticResolver(addrs map[string][]string) func(string) ([]net.IP, error) {
	return func(host string) ([]net.IP, error) {
		list, ok := addrs[host]
		if !ok {
			return nil, errors.New("no such host")
		}
		ips := make([]net.IP, 0, len(list))
		for _, a := range list {
			ips = append(ips, net.ParseIP(a))
		}
		return ips, nil
	}
}

func newTestValidator() *URLValidator {
	v := NewURLValidator()
	v.lookupIP = staticResolver(map[string][]string{
		"cdn.example.com":   {"93.184.216.34"},
		"internal.example":  {"10.0.0.5"},
		"mixed.example.com": {"93.184.216.34", "127.0.0.1"},
	})
	return v
}

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	if validator == nil {
		t.Fatal("Expected non-nil URL validator")
	}

	expectedSchemes := []string{"http", "https"}
	if len(validator.allowedSchemes) != len(expectedSchemes) {
		t.Errorf("Expected %d schemes, got %d", len(expectedSchemes), len(validator.allowedSchemes))
	}
	for i, scheme := range expectedSchemes {
		if validator.allowedSchemes[i] != scheme {
			t.Errorf("Expected scheme %s, got %s", scheme, validator.allowedSchemes[i])
		}
	}
}

func TestValidateResultURL_ValidURLs(t *testing.T) {
	validator := newTestValidator()

	validURLs := []string{
		"https://cdn.example.com/output/abc.png",
		"http://cdn.example.com/image.jpg?sig=1",
		"https://93.184.216.34/result.webp",
	}

	for _, u := range validURLs {
		if err := validator.ValidateResultURL(u); err != nil {
			t.Errorf("Expected valid URL %s to pass validation, got error: %v", u, err)
		}
	}
}

func TestValidateResultURL_EmptyURL(t *testing.T) {
	validator := newTestValidator()

	for _, u := range []string{"", "   ", "\t\n"} {
		if err := validator.ValidateResultURL(u); !errors.Is(err, ErrEmptyURL) {
			t.Errorf("Expected ErrEmptyURL for %q, got: %v", u, err)
		}
	}
}

func TestValidateResultURL_InvalidScheme(t *testing.T) {
	validator := newTestValidator()

	invalidSchemeURLs := []string{
		"ftp://cdn.example.com/image.jpg",
		"file:///etc/passwd",
	}

	for _, u := range invalidSchemeURLs {
		if err := validator.ValidateResultURL(u); !errors.Is(err, ErrSchemeNotAllowed) {
			t.Errorf("Expected ErrSchemeNotAllowed for '%s', got: %v", u, err)
		}
	}
}

func TestValidateResultURL_InvalidFormat(t *testing.T) {
	validator := newTestValidator()

	invalidURLs := []string{
		"not-a-url",
		"://missing-scheme",
		"http://",
		"data:image/png;base64,iVBORw0KGgo=",
		"https://unknown.example.com/x.png",
	}

	for _, u := range invalidURLs {
		if err := validator.ValidateResultURL(u); err == nil {
			t.Errorf("Expected invalid URL '%s' to fail validation", u)
		}
	}
}

func TestValidateResultURL_RestrictedNetworks(t *testing.T) {
	validator := newTestValidator()

	restricted := []string{
		"http://127.0.0.1/image.png",
		"http://localhost.invalid.internal/x",
		"http://192.168.1.1/image.jpg",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/image.png",
		"http://0.0.0.0/image.png",
		"https://internal.example/image.png",
		"https://mixed.example.com/image.png",
	}

	for _, u := range restricted {
		err := validator.ValidateResultURL(u)
		if err == nil {
			t.Errorf("Expected restricted URL '%s' to fail validation", u)
			continue
		}
		if u == "http://localhost.invalid.internal/x" {
			// unresolvable, rejected without ErrRestrictedNetwork
			continue
		}
		if !errors.Is(err, ErrRestrictedNetwork) {
			t.Errorf("Expected ErrRestrictedNetwork for '%s', got: %v", u, err)
		}
	}
}

func TestValidateResultURL_RestrictedHosts(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"https"}, []string{"cdn.example.com"})
	validator.lookupIP = newTestValidator().lookupIP

	if err := validator.ValidateResultURL("https://cdn.example.com/a.png"); err != nil {
		t.Errorf("Expected allowed host to pass, got error: %v", err)
	}
	if err := validator.ValidateResultURL("https://93.184.216.34/a.png"); !errors.Is(err, ErrHostNotAllowed) {
		t.Errorf("Expected ErrHostNotAllowed, got: %v", err)
	}
	if err := validator.ValidateResultURL("http://cdn.example.com/a.png"); !errors.Is(err, ErrSchemeNotAllowed) {
		t.Errorf("Expected ErrSchemeNotAllowed, got: %v", err)
	}
}

func TestIsHostAllowed(t *testing.T) {
	validator := NewURLValidator()
	if !validator.isHostAllowed("example.com") {
		t.Error("Expected any host to be allowed when no restrictions")
	}

	restrictedValidator := NewURLValidatorWithOptions([]string{"http", "https"}, []string{"example.com", "trusted.com"})
	if !restrictedValidator.isHostAllowed("trusted.com") {
		t.Error("Expected trusted.com to be allowed")
	}
	if restrictedValidator.isHostAllowed("malicious.com") {
		t.Error("Expected malicious.com to be disallowed")
	}
}

func TestCheckIP(t *testing.T) {
	tests := []struct {
		ip      string
		allowed bool
	}{
		{ip: "93.184.216.34", allowed: true},
		{ip: "2606:2800:220:1:248:1893:25c8:1946", allowed: true},
		{ip: "127.0.0.1", allowed: false},
		{ip: "10.0.0.5", allowed: false},
		{ip: "169.254.169.254", allowed: false},
		{ip: "0.0.0.0", allowed: false},
		{ip: "::1", allowed: false},
		{ip: "not-an-ip", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			err := CheckIP(net.ParseIP(tt.ip))
			if tt.allowed && err != nil {
				t.Errorf("Expected %s to be allowed, got %v", tt.ip, err)
			}
			if !tt.allowed && !errors.Is(err, ErrRestrictedNetwork) {
				t.Errorf("Expected %s to be restricted, got %v", tt.ip, err)
			}
		})
	}
}
