package common

import (
	"runtime"
	"strings"
	"testing"
)

func TestEngineConfigDefaults(t *testing.T) {
	var cfg EngineConfig
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed on zero value: %v", err)
	}

	if cfg.Reactors != runtime.NumCPU() {
		t.Errorf("Reactors defaulted to %d, expected NumCPU (%d)", cfg.Reactors, runtime.NumCPU())
	}
	if cfg.WriteQueueCapacity != DefaultWriteQueueCapacity {
		t.Errorf("WriteQueueCapacity defaulted to %d", cfg.WriteQueueCapacity)
	}
	if cfg.ReceiveBufferSize != DefaultReceiveBufferSize {
		t.Errorf("ReceiveBufferSize defaulted to %d", cfg.ReceiveBufferSize)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel defaulted to %q", cfg.LogLevel)
	}
}

func TestEngineConfigRejectsNegativeValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  EngineConfig
	}{
		{name: "reactors", cfg: EngineConfig{Reactors: -1}},
		{name: "write queue capacity", cfg: EngineConfig{WriteQueueCapacity: -1}},
		{name: "receive buffer size", cfg: EngineConfig{ReceiveBufferSize: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
	}{
		{name: "missing endpoint", cfg: ClientConfig{}, wantErr: true},
		{name: "defaults applied", cfg: ClientConfig{Endpoint: "10.0.0.1:5701"}},
		{name: "negative timeout", cfg: ClientConfig{Endpoint: "10.0.0.1:5701", TimeoutSecond: -1}, wantErr: true},
		{name: "negative workers", cfg: ClientConfig{Endpoint: "10.0.0.1:5701", ConnectWorkers: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	cfg := ClientConfig{Endpoint: "10.0.0.1:5701"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.TimeoutSecond != 10 || cfg.ConnectWorkers != 4 {
		t.Errorf("defaults not applied: timeout=%d workers=%d", cfg.TimeoutSecond, cfg.ConnectWorkers)
	}
}

func TestConfigStringContainsFields(t *testing.T) {
	cfg := EngineConfig{Reactors: 8, TPCPortBase: 11000}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	s := cfg.String()
	for _, want := range []string{"TPC ENGINE", "Reactors", "8", "11000", "Log Level"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() is missing %q:\n%s", want, s)
		}
	}
}
