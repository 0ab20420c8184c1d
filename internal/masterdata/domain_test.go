package masterdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Red", "Blue"}, SplitList("Red, Blue"))
	assert.Equal(t, []string{"S", "M", "L"}, SplitList("S,M,,L,"))
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList(" , ,"))
}

func TestBuildPlanTemplate(t *testing.T) {
	t.Run("one block per detail and color", func(t *testing.T) {
		styleNo := "FS-101"
		colors := "Red, Blue"
		sizes := "S, M"
		details := []ProductDetail{
			{Category: "Shirts", StyleNo: &styleNo, AllColors: &colors, AllSizes: &sizes},
		}

		rows := BuildPlanTemplate("Shirts", details)

		require.Len(t, rows, 9) // header + 2 blocks of (1 header + 2 sizes + 1 blank)
		assert.Equal(t, planHeader, rows[0])
		assert.Equal(t, []string{"Shirts", "", "FS-101", "Red", "", "", ""}, rows[1])
		assert.Equal(t, []string{"", "", "", "", "", "S", ""}, rows[2])
		assert.Equal(t, []string{"", "", "", "", "", "M", ""}, rows[3])
		assert.Nil(t, rows[4])
		assert.Equal(t, []string{"Shirts", "", "FS-101", "Blue", "", "", ""}, rows[5])
	})

	t.Run("night set defaults sub category to top", func(t *testing.T) {
		styleNo := "NS-01"
		colors := "White"
		details := []ProductDetail{
			{Category: "Night Set", StyleNo: &styleNo, AllColors: &colors},
		}

		rows := BuildPlanTemplate("Night Set", details)
		require.Len(t, rows, 3)
		assert.Equal(t, "top", rows[1][1])
	})

	t.Run("no details still yields the header", func(t *testing.T) {
		rows := BuildPlanTemplate("Shirts", nil)
		require.Len(t, rows, 1)
		assert.Equal(t, planHeader, rows[0])
	})
}

func TestParsePlanBlocks(t *testing.T) {
	t.Run("reads blocks with their size ratios", func(t *testing.T) {
		rows := [][]string{
			planHeader,
			{"Shirts", "", "FS-101", "Red", "100", "", ""},
			{"", "", "", "", "", "S", "2"},
			{"", "", "", "", "", "M", "3"},
			{},
			{"Shirts", "", "FS-101", "Blue", "50", "", ""},
			{"", "", "", "", "", "S", "1"},
		}

		blocks := ParsePlanBlocks(rows, "Shirts")
		require.Len(t, blocks, 2)

		assert.Equal(t, "FS-101", blocks[0].StyleCode)
		assert.Equal(t, "Red", blocks[0].ColorName)
		assert.Equal(t, 100, blocks[0].TotalPieces)
		require.Len(t, blocks[0].Ratios, 2)
		assert.Equal(t, RatioEntry{SizeName: "S", Ratio: 2}, blocks[0].Ratios[0])
		assert.Equal(t, RatioEntry{SizeName: "M", Ratio: 3}, blocks[0].Ratios[1])

		assert.Equal(t, "Blue", blocks[1].ColorName)
		assert.Equal(t, 50, blocks[1].TotalPieces)
	})

	t.Run("blocks without a positive total are skipped", func(t *testing.T) {
		rows := [][]string{
			planHeader,
			{"Shirts", "", "FS-101", "Red", "", "", ""},
			{"", "", "", "", "", "S", "2"},
			{},
			{"Shirts", "", "FS-101", "Blue", "0", "", ""},
			{"", "", "", "", "", "S", "1"},
			{},
			{"Shirts", "", "FS-101", "Green", "30", "", ""},
			{"", "", "", "", "", "S", "1"},
		}

		blocks := ParsePlanBlocks(rows, "Shirts")
		require.Len(t, blocks, 1)
		assert.Equal(t, "Green", blocks[0].ColorName)
	})

	t.Run("blocks missing style or color are skipped", func(t *testing.T) {
		rows := [][]string{
			planHeader,
			{"Shirts", "", "", "Red", "100", "", ""},
			{"", "", "", "", "", "S", "2"},
			{},
			{"Shirts", "", "FS-101", "", "100", "", ""},
		}
		assert.Empty(t, ParsePlanBlocks(rows, "Shirts"))
	})

	t.Run("empty category falls back to the default", func(t *testing.T) {
		rows := [][]string{
			planHeader,
			{"", "", "FS-101", "Red", "10", "", ""},
			{"", "", "", "", "", "S", "1"},
		}
		blocks := ParsePlanBlocks(rows, "Shirts")
		require.Len(t, blocks, 1)
		assert.Equal(t, "Shirts", blocks[0].Category)
	})

	t.Run("unparsable ratio counts as zero", func(t *testing.T) {
		rows := [][]string{
			planHeader,
			{"Shirts", "", "FS-101", "Red", "10", "", ""},
			{"", "", "", "", "", "S", "x"},
			{"", "", "", "", "", "M", "1"},
		}
		blocks := ParsePlanBlocks(rows, "Shirts")
		require.Len(t, blocks, 1)
		assert.Equal(t, 0.0, blocks[0].Ratios[0].Ratio)
	})
}

func TestPlanPieces(t *testing.T) {
	t.Run("apportions by ratio", func(t *testing.T) {
		pieces := PlanPieces(100, []RatioEntry{
			{SizeName: "S", Ratio: 2},
			{SizeName: "M", Ratio: 3},
		})
		require.Len(t, pieces, 2)
		assert.Equal(t, SizePieces{SizeName: "S", Pieces: 40}, pieces[0])
		assert.Equal(t, SizePieces{SizeName: "M", Pieces: 60}, pieces[1])
	})

	t.Run("last size absorbs the rounding remainder", func(t *testing.T) {
		pieces := PlanPieces(100, []RatioEntry{
			{SizeName: "S", Ratio: 1},
			{SizeName: "M", Ratio: 1},
			{SizeName: "L", Ratio: 1},
		})
		total := 0
		for _, p := range pieces {
			total += p.Pieces
		}
		assert.Equal(t, 100, total)
	})

	t.Run("zero ratios leave all pieces at zero for the listed sizes", func(t *testing.T) {
		pieces := PlanPieces(50, []RatioEntry{
			{SizeName: "S", Ratio: 0},
			{SizeName: "M", Ratio: 0},
		})
		require.Len(t, pieces, 2)
		assert.Equal(t, 0, pieces[0].Pieces)
		// The remainder rule still forces the sum to the total.
		assert.Equal(t, 50, pieces[1].Pieces)
	})

	t.Run("no ratios yields nothing", func(t *testing.T) {
		assert.Nil(t, PlanPieces(100, nil))
	})
}
