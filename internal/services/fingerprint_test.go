package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashToken(t *testing.T) {
	h1 := HashToken("some-bearer-token")
	h2 := HashToken("some-bearer-token")
	h3 := HashToken("another-token")

	assert.Equal(t, h1, h2, "hashing is deterministic")
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64, "hex-encoded SHA-256")
	assert.NotContains(t, h1, "some-bearer-token")
}

func TestFingerprintDevice(t *testing.T) {
	t.Run("desktop browser", func(t *testing.T) {
		fp := FingerprintDevice("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		assert.Equal(t, "Chrome", fp.Browser)
		assert.Equal(t, "Windows", fp.OS)
		assert.Equal(t, "Desktop", fp.DeviceClass)
	})

	t.Run("mobile browser", func(t *testing.T) {
		fp := FingerprintDevice("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		assert.Equal(t, "Safari", fp.Browser)
		assert.Equal(t, "iOS", fp.OS)
		assert.Equal(t, "Mobile", fp.DeviceClass)
	})

	t.Run("empty input degrades to Unknown", func(t *testing.T) {
		fp := FingerprintDevice("")
		assert.Equal(t, DeviceFingerprint{Browser: "Unknown", OS: "Unknown", DeviceClass: "Unknown"}, fp)
	})

	t.Run("garbage input never fails", func(t *testing.T) {
		fp := FingerprintDevice("not-a-real-user-agent")
		assert.NotEmpty(t, fp.Browser)
		assert.NotEmpty(t, fp.OS)
		assert.NotEmpty(t, fp.DeviceClass)
	})
}
