package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/tellix/internal/errors"
)

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		max      int
		want     []string
		wantCode errors.ErrorCode
	}{
		{
			name: "single host",
			raw:  "example.com",
			want: []string{"example.com"},
		},
		{
			name: "trims and drops blank lines",
			raw:  "  example.com  \n\n\texample.org\r\n   \n",
			want: []string{"example.com", "example.org"},
		},
		{
			name: "mixed shapes",
			raw:  "https://example.com/login\n10.0.0.1:8443\n192.168.0.0/24\n[::1]:8080",
			want: []string{"https://example.com/login", "10.0.0.1:8443", "192.168.0.0/24", "[::1]:8080"},
		},
		{
			name:     "empty",
			raw:      "",
			wantCode: errors.CodeMissingParameter,
		},
		{
			name:     "only whitespace",
			raw:      " \n\t\n ",
			wantCode: errors.CodeMissingParameter,
		},
		{
			name:     "invalid entry fails the list",
			raw:      "example.com\nnot a host",
			wantCode: errors.CodeTargetInvalid,
		},
		{
			name: "within limit",
			raw:  "a.example\nb.example",
			max:  2,
			want: []string{"a.example", "b.example"},
		},
		{
			name:     "over limit",
			raw:      "a.example\nb.example\nc.example",
			max:      2,
			wantCode: errors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTargets(tt.raw, tt.max)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.GetCode(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		want    string
		wantErr bool
	}{
		{"host", "example.com", "example.com", false},
		{"host is lowercased", "Example.COM", "example.com", false},
		{"idn host", "bücher.example", "xn--bcher-kva.example", false},
		{"host with port", "example.com:8080", "example.com:8080", false},
		{"host with path", "example.com/admin?x=1", "example.com/admin?x=1", false},
		{"underscore host", "my_service.internal", "my_service.internal", false},
		{"ipv4", "93.184.216.34", "93.184.216.34", false},
		{"bare ipv6", "2001:db8::1", "2001:db8::1", false},
		{"bracketed ipv6 with port", "[2001:db8::1]:443", "[2001:db8::1]:443", false},
		{"cidr", "10.0.0.0/30", "10.0.0.0/30", false},
		{"http url", "http://example.com", "http://example.com", false},
		{"https url with idn host", "https://bücher.example:8443/x", "https://xn--bcher-kva.example:8443/x", false},

		{"leading dash", "-o", "", true},
		{"inner whitespace", "exa mple.com", "", true},
		{"control character", "example.com\x00", "", true},
		{"unsupported scheme", "ftp://example.com", "", true},
		{"url without host", "https:///path", "", true},
		{"port out of range", "example.com:70000", "", true},
		{"non-numeric port", "example.com:http", "", true},
		{"missing host", ":8080", "", true},
		{"malformed ipv6", "[2001:db8::1", "", true},
		{"label too long", "a123456789012345678901234567890123456789012345678901234567890123.example", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTarget(tt.target)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountTargets(t *testing.T) {
	assert.Equal(t, 0, CountTargets(""))
	assert.Equal(t, 2, CountTargets("a.example\n\n  \nb.example\n"))
	assert.Equal(t, 3, CountTargets("one\ntwo\nnot valid but counted"))
}
