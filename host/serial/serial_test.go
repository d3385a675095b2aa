package serial

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyUSB1")
	if cfg.Device != "/dev/ttyUSB1" {
		t.Errorf("Device = %q", cfg.Device)
	}
	if cfg.Baud != 115200 {
		t.Errorf("Baud = %d, want 115200", cfg.Baud)
	}
	if cfg.ReadTimeout != 100*time.Millisecond {
		t.Errorf("ReadTimeout = %v", cfg.ReadTimeout)
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	if _, err := Open(nil); err == nil {
		t.Error("Open(nil) should fail")
	}
	if _, err := Open(&Config{Device: "/dev/null", Baud: 0}); err == nil {
		t.Error("Open with zero baud should fail")
	}
}
