package auth

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testHash hashes at the minimum cost to keep tests fast.
func testHash(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestGenerateAPIKey(t *testing.T) {
	tests := []struct {
		name        string
		keyName     string
		expectError bool
		errorMsg    string
	}{
		{name: "valid_name", keyName: "ci agent"},
		{name: "single_character_name", keyName: "A"},
		{name: "long_valid_name", keyName: strings.Repeat("A", 255)},
		{name: "name_with_unicode", keyName: "agent 🔑"},
		{
			name:        "empty_name",
			keyName:     "",
			expectError: true,
			errorMsg:    "key name cannot be empty",
		},
		{
			name:        "too_long_name",
			keyName:     strings.Repeat("A", 256),
			expectError: true,
			errorMsg:    "key name must be at most 255 characters",
		},
		{
			name:        "name_with_control_chars",
			keyName:     "agent\x00key",
			expectError: true,
			errorMsg:    "key name contains invalid characters",
		},
		{
			name:        "name_with_bidi_override",
			keyName:     "agent\u202ekey",
			expectError: true,
			errorMsg:    "key name contains invalid characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generated, err := GenerateAPIKey(tt.keyName)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, generated)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.keyName, generated.Name)
			assert.True(t, strings.HasPrefix(generated.Key, "tlx_"))
			assert.Len(t, generated.Key, len("tlx_")+APIKeyLength)
			assert.True(t, IsValidAPIKeyFormat(generated.Key))
			assert.Equal(t, CreateDisplayPrefix(generated.Key), generated.KeyPrefix)
			assert.True(t, ValidateAPIKey(generated.Key, generated.Hash))
			assert.False(t, generated.CreatedAt.IsZero())
		})
	}
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		generated, err := GenerateAPIKey("agent")
		require.NoError(t, err)
		assert.False(t, seen[generated.Key], "keys must not repeat")
		seen[generated.Key] = true
	}
}

func TestHashAndValidateAPIKey(t *testing.T) {
	_, err := HashAPIKey("")
	assert.Error(t, err)

	key := "tlx_" + strings.Repeat("a", APIKeyLength)
	hash := testHash(t, key)

	assert.True(t, ValidateAPIKey(key, hash))
	assert.False(t, ValidateAPIKey(key+"b", hash))
	assert.False(t, ValidateAPIKey("", hash))
	assert.False(t, ValidateAPIKey(key, ""))
	assert.False(t, ValidateAPIKey(key, "not-a-bcrypt-hash"))

	long := strings.Repeat("x", 100)
	assert.True(t, ValidateAPIKey(long, testHash(t, long)), "keys beyond 72 bytes are prehashed")
}

func TestIsValidAPIKeyFormat(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"tlx_" + strings.Repeat("a", 32), true},
		{"tlx_ABCdef123_456789", true},
		{"", false},
		{"sk_" + strings.Repeat("a", 32), false},
		{"tlx_short", false},
		{"tlx_" + strings.Repeat("a", 60), false},
		{"tlx_" + strings.Repeat("a", 20) + "-x", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidAPIKeyFormat(tt.key), "key %q", tt.key)
	}
}

func TestCreateDisplayPrefix(t *testing.T) {
	assert.Equal(t, "tlx_abcdefgh...", CreateDisplayPrefix("tlx_abcdefghijklmnopqrstuvwx"))
	assert.Equal(t, "invalid_key", CreateDisplayPrefix("bogus"))
}

func TestKeyStore(t *testing.T) {
	good := "tlx_" + strings.Repeat("g", APIKeyLength)
	other := "tlx_" + strings.Repeat("o", APIKeyLength)

	store := NewKeyStore([]string{testHash(t, other), testHash(t, good)})
	assert.True(t, store.Enabled())
	assert.True(t, store.Verify(good))
	assert.True(t, store.Verify(good), "cached verification")
	assert.True(t, store.Verify(other))
	assert.False(t, store.Verify("tlx_"+strings.Repeat("b", APIKeyLength)))
	assert.False(t, store.Verify("not a key"))

	empty := NewKeyStore(nil)
	assert.False(t, empty.Enabled())
	assert.False(t, empty.Verify(good))

	var nilStore *KeyStore
	assert.False(t, nilStore.Enabled())
}

func TestKeyStore_ConcurrentVerify(t *testing.T) {
	key := "tlx_" + strings.Repeat("c", APIKeyLength)
	store := NewKeyStore([]string{testHash(t, key)})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, store.Verify(key))
		}()
	}
	wg.Wait()
}
