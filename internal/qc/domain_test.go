package qc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchtrack/stitchtrack/internal/stitching"
)

func TestDecodePayload(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		payload, ok := DecodePayload("DC|DC0007|42|120")
		require.True(t, ok)
		assert.Equal(t, "DC0007", payload.DCNumber)
		assert.Equal(t, int64(42), payload.DCID)
		assert.Equal(t, 120, payload.ExpectedPieces)
	})

	t.Run("extra trailing fields are tolerated", func(t *testing.T) {
		payload, ok := DecodePayload("DC|DC0007|42|120|extra")
		require.True(t, ok)
		assert.Equal(t, int64(42), payload.DCID)
	})

	t.Run("invalid payloads", func(t *testing.T) {
		cases := map[string]string{
			"wrong prefix":    "XX|DC0007|42|120",
			"too few fields":  "DC|DC0007|42",
			"non-numeric id":  "DC|DC0007|abc|120",
			"non-numeric qty": "DC|DC0007|42|many",
			"empty":           "",
			"garbage":         "hello world",
		}
		for name, data := range cases {
			t.Run(name, func(t *testing.T) {
				_, ok := DecodePayload(data)
				assert.False(t, ok)
			})
		}
	})
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name     string
		current  stitching.DCStatus
		scanType ScanType
		isMatch  bool
		scanned  int
		want     stitching.DCStatus
	}{
		{"outbound match opens", stitching.DCStatusOpen, ScanOutbound, true, 40, stitching.DCStatusOpen},
		{"outbound mismatch holds", stitching.DCStatusOpen, ScanOutbound, false, 35, stitching.DCStatusHold},
		{"inbound full count clears", stitching.DCStatusOpen, ScanInbound, true, 40, stitching.DCStatusCleared},
		{"inbound short count is partial", stitching.DCStatusOpen, ScanInbound, false, 30, stitching.DCStatusPartial},
		{"inbound zero count holds", stitching.DCStatusOpen, ScanInbound, false, 0, stitching.DCStatusHold},
		{"partial can still clear", stitching.DCStatusPartial, ScanInbound, true, 40, stitching.DCStatusCleared},
		{"hold can still clear", stitching.DCStatusHold, ScanInbound, true, 40, stitching.DCStatusCleared},
		{"manual leaves status untouched", stitching.DCStatusPartial, ScanManual, true, 40, stitching.DCStatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextStatus(tt.current, tt.scanType, tt.isMatch, tt.scanned)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanTypeIsScannable(t *testing.T) {
	assert.True(t, ScanOutbound.IsScannable())
	assert.True(t, ScanInbound.IsScannable())
	assert.False(t, ScanManual.IsScannable())
	assert.False(t, ScanType("sideways").IsScannable())
}
