package group

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/drsplit/internal/apperr"
	"github.com/klytics/drsplit/internal/normalize"
	"github.com/klytics/drsplit/internal/table"
)

func zoneTable(zones ...table.Value) *table.Table {
	rows := make([]table.Row, len(zones))
	for i, z := range zones {
		rows[i] = table.Row{table.NumValue(float64(i)), z}
	}
	return table.New([]string{"id", "zone"}, rows)
}

func s(v string) table.Value { return table.StrValue(v) }

func TestByRawFirstAppearanceOrder(t *testing.T) {
	tbl := zoneTable(s("THIES"), s("DAKAR"), s("THIES"), s("LOUGA"), s("DAKAR"))

	groups, err := By(tbl, "zone", Raw)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "THIES", groups[0].Value.Text())
	assert.Equal(t, "DAKAR", groups[1].Value.Text())
	assert.Equal(t, "LOUGA", groups[2].Value.Text())

	// row order within a group follows input order
	assert.Equal(t, 0.0, groups[0].Rows[0][0].Num)
	assert.Equal(t, 2.0, groups[0].Rows[1][0].Num)
}

func TestByRawExactEquality(t *testing.T) {
	tbl := zoneTable(s("1"), table.NumValue(1), s("dakar"), s("DAKAR"), table.Value{}, s(""))

	groups, err := By(tbl, "zone", Raw)
	require.NoError(t, err)
	require.Len(t, groups, 5)
	assert.True(t, groups[4].Missing)
	assert.Equal(t, 2, groups[4].Len())
}

func TestByPartitionProperty(t *testing.T) {
	zones := []table.Value{s("A"), s("B"), table.Value{}, s("A"), s("C"), s("b"), s("B"), table.Value{}}
	tbl := zoneTable(zones...)

	for name, key := range map[string]KeyFunc{
		"raw":        Raw,
		"normalized": Normalized(normalize.New()),
	} {
		t.Run(name, func(t *testing.T) {
			groups, err := By(tbl, "zone", key)
			require.NoError(t, err)

			seen := make(map[float64]int)
			for _, g := range groups {
				for _, row := range g.Rows {
					seen[row[0].Num]++
					assert.Equal(t, g.Key, key(row[1]))
				}
			}
			assert.Len(t, seen, tbl.Len())
			for id, n := range seen {
				assert.Equal(t, 1, n, "row %v", id)
			}
			assert.Equal(t, tbl.Len(), Summarize(groups).TotalRowCount)
		})
	}
}

func TestByNormalizedScenario(t *testing.T) {
	var zones []table.Value
	for i := 0; i < 40; i++ {
		zones = append(zones, s("DAKAR-1"))
	}
	for i := 0; i < 35; i++ {
		zones = append(zones, s("dakar1"))
	}
	for i := 0; i < 25; i++ {
		zones = append(zones, s(""))
	}
	tbl := zoneTable(zones...)

	groups, err := By(tbl, "zone", Normalized(normalize.New()))
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "DAKAR1", groups[0].Key)
	assert.Equal(t, 75, groups[0].Len())
	assert.Equal(t, normalize.Unknown, groups[1].Key)
	assert.Equal(t, 25, groups[1].Len())
	assert.Equal(t, Stats{GroupCount: 2, TotalRowCount: 100}, Summarize(groups))
}

func TestByMissingColumn(t *testing.T) {
	_, err := By(zoneTable(s("A")), "zone_drvnew", Raw)
	assert.True(t, errors.Is(err, apperr.ErrMissingColumn))
}

func TestByEmptyTable(t *testing.T) {
	groups, err := By(zoneTable(), "zone", nil)
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Equal(t, Stats{}, Summarize(groups))
}

func TestSizes(t *testing.T) {
	groups, err := By(zoneTable(s("A"), s("B"), s("A")), "zone", Raw)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1}, Sizes(groups))
}
