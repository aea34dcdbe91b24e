package security

import (
	"testing"
	"time"
)

func newManagerForTest() *DeviceTokenManager {
	return NewDeviceTokenManager("roomcast-backend", "roomcast-app", "test-secret")
}

func TestDeviceTokenRoundTrip(t *testing.T) {
	m := newManagerForTest()

	raw, err := m.Sign(42, "device-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	id, err := claims.AdminUserID()
	if err != nil {
		t.Fatalf("admin user id: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected admin user 42, got %d", id)
	}
	if claims.DeviceID != "device-1" {
		t.Fatalf("expected device-1, got %q", claims.DeviceID)
	}
}

func TestDeviceTokenExpired(t *testing.T) {
	m := newManagerForTest()

	raw, err := m.Sign(1, "device-1", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(raw); err == nil {
		t.Fatal("expected expired token to fail parsing")
	}
}

func TestDeviceTokenWrongSecret(t *testing.T) {
	raw, err := newManagerForTest().Sign(1, "device-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	other := NewDeviceTokenManager("roomcast-backend", "roomcast-app", "other-secret")
	if _, err := other.Parse(raw); err == nil {
		t.Fatal("expected token signed with another secret to fail")
	}
}

func TestDeviceTokenWrongAudience(t *testing.T) {
	raw, err := newManagerForTest().Sign(1, "device-1", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	other := NewDeviceTokenManager("roomcast-backend", "another-audience", "test-secret")
	if _, err := other.Parse(raw); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}
}
