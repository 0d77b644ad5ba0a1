package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line exceeds %d characters: %q", Wrap, line)
		}
	}
	if got := WrapString("short text"); got != "short text" {
		t.Errorf("short text changed: %q", got)
	}
}

func TestParseTensor(t *testing.T) {
	testCases := []struct {
		name     string
		shape    string
		elements []string
		want     []float32
		wantErr  bool
	}{
		{"vector", "3", []string{"1", "2", "3"}, []float32{1, 2, 3}, false},
		{"matrix", "2,2", []string{"1", "2", "3", "4"}, []float32{1, 2, 3, 4}, false},
		{"broadcast", "2,3", []string{"0.5"}, []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, false},
		{"wrong count", "2,2", []string{"1", "2"}, nil, true},
		{"bad element", "1", []string{"x"}, nil, true},
		{"bad shape", "a", []string{"1"}, nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ParseTensor(tc.shape, tc.elements, tensor.CPU(0))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", v)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTensor failed: %v", err)
			}
			if diff := cmp.Diff(tc.want, v.Data()); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	if k, err := ParseKey("42"); err != nil || k != 42 {
		t.Errorf("ParseKey(42) = %d, %v", k, err)
	}
	for _, s := range []string{"-1", "abc", ""} {
		if _, err := ParseKey(s); err == nil {
			t.Errorf("ParseKey(%q) should fail", s)
		}
	}
}

func TestGetClientConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("transport-endpoints", "a:1, b:2,,")
	viper.Set("timeout", 3)
	viper.Set("transport-write-buffer", 2)
	viper.Set("transport-tcp-linger", -1)

	config := GetClientConfig()
	if diff := cmp.Diff([]string{"a:1", "b:2"}, config.Transport.Endpoints); diff != "" {
		t.Errorf("endpoints mismatch (-want +got):\n%s", diff)
	}
	if config.TimeoutSecond != 3 {
		t.Errorf("expected timeout 3, got %d", config.TimeoutSecond)
	}
	if config.Transport.WriteBufferSize != 2048 {
		t.Errorf("expected write buffer 2048, got %d", config.Transport.WriteBufferSize)
	}
	if config.Transport.TCPLingerSec != -1 {
		t.Errorf("expected linger -1, got %d", config.Transport.TCPLingerSec)
	}
}

func TestSelection(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	for _, name := range []string{"binary", "json", "gob"} {
		viper.Set("serializer", name)
		if _, err := GetSerializer(); err != nil {
			t.Errorf("GetSerializer(%s) failed: %v", name, err)
		}
	}
	viper.Set("serializer", "xml")
	if _, err := GetSerializer(); err == nil {
		t.Error("expected error for unknown serializer")
	}

	for _, name := range []string{"tcp", "unix", "http"} {
		viper.Set("transport", name)
		if _, err := GetTransport(); err != nil {
			t.Errorf("GetTransport(%s) failed: %v", name, err)
		}
		if _, err := GetServerTransport(); err != nil {
			t.Errorf("GetServerTransport(%s) failed: %v", name, err)
		}
	}
	viper.Set("transport", "carrier-pigeon")
	if _, err := GetTransport(); err == nil {
		t.Error("expected error for unknown transport")
	}
}
