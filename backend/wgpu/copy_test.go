// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"testing"

	"github.com/gogpu/naga"

	"github.com/gogpu/querypool/driver"
)

func TestCopyParamsToBytes(t *testing.T) {
	p := CopyParams{
		Start:      3,
		Count:      17,
		SlotStride: 8,
		OutStride:  24,
		Flags:      driver.ResultWide64 | driver.ResultWithAvailability,
	}
	buf := p.toBytes()

	if len(buf) != 32 {
		t.Fatalf("params length = %d, want 32", len(buf))
	}
	words := []struct {
		off  int
		want uint32
	}{
		{0, 3},
		{4, 17},
		{8, 8},
		{12, 24},
		{16, copyFlagWide | copyFlagAvailability},
		{20, 0},
		{24, 0},
		{28, 0},
	}
	for _, w := range words {
		if got := binary.LittleEndian.Uint32(buf[w.off:]); got != w.want {
			t.Errorf("word at offset %d = %d, want %d", w.off, got, w.want)
		}
	}
}

func TestCopyShaderFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags driver.ResultFlags
		want  uint32
	}{
		{"none", 0, 0},
		{"wide", driver.ResultWide64, copyFlagWide},
		{"availability", driver.ResultWithAvailability, copyFlagAvailability},
		{"both", driver.ResultWide64 | driver.ResultWithAvailability, copyFlagWide | copyFlagAvailability},
		{"wait has no kernel bit", driver.ResultWait, 0},
		{"partial has no kernel bit", driver.ResultPartial, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (CopyParams{Flags: tt.flags}).shaderFlags(); got != tt.want {
				t.Errorf("shaderFlags(%v) = %d, want %d", tt.flags, got, tt.want)
			}
		})
	}
}

func TestCopyWorkgroups(t *testing.T) {
	tests := []struct {
		count uint32
		want  uint32
	}{
		{0, 0},
		{1, 1},
		{63, 1},
		{64, 1},
		{65, 2},
		{128, 2},
		{1000, 16},
	}
	for _, tt := range tests {
		if got := copyWorkgroups(tt.count); got != tt.want {
			t.Errorf("copyWorkgroups(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

// TestCopyShaderCompilation tests that the WGSL kernel compiles to SPIR-V.
func TestCopyShaderCompilation(t *testing.T) {
	if timestampCopyWGSL == "" {
		t.Fatal("copy shader source is empty")
	}

	spirvBytes, err := naga.Compile(timestampCopyWGSL)
	if err != nil {
		// Check for known naga limitations and skip gracefully
		errStr := err.Error()
		if contains(errStr, "runtime-sized arrays not yet implemented") {
			t.Skip("Skipping: naga doesn't yet support runtime-sized arrays (needed for storage buffers)")
		}
		if contains(errStr, "not yet implemented") || contains(errStr, "not supported") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		t.Fatalf("failed to compile copy shader: %v", err)
	}

	if len(spirvBytes) < 4 {
		t.Fatal("SPIR-V too short")
	}
	magic := uint32(spirvBytes[0]) |
		uint32(spirvBytes[1])<<8 |
		uint32(spirvBytes[2])<<16 |
		uint32(spirvBytes[3])<<24
	if magic != 0x07230203 {
		t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", magic)
	}
}

// contains checks if s contains substr (simple helper to avoid strings import).
func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
