package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextInSeries(t *testing.T) {
	tests := []struct {
		name   string
		latest string
		prefix string
		width  int
		want   string
	}{
		{"empty series starts at 1", "", "LOT", 3, "LOT001"},
		{"increments latest", "LOT007", "LOT", 3, "LOT008"},
		{"corrupted suffix restarts", "LOTXYZ", "LOT", 3, "LOT001"},
		{"wrong prefix restarts", "BATCH009", "LOT", 3, "LOT001"},
		{"payment series", "PAY0041", "PAY", 4, "PAY0042"},
		{"challan series", "DC0001", "DC", 4, "DC0002"},
		{"grows beyond pad width", "DC9999", "DC", 4, "DC10000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextInSeries(tt.latest, tt.prefix, tt.width))
		})
	}
}
