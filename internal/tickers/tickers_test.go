package tickers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadTickersFromFile(t *testing.T) {
	cases := map[string]string{
		"list.txt":  "# comment\naapl\nMSFT\n\naapl\n",
		"list.json": `["aapl","MSFT","AAPL"]`,
		"list.yaml": "- aapl\n- MSFT\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := LoadTickersFromFile(writeFile(t, name, body))
			require.NoError(t, err)
			assert.Equal(t, []string{"AAPL", "MSFT"}, got)
		})
	}
	_, err := LoadTickersFromFile(writeFile(t, "list.csv", "AAPL"))
	assert.Error(t, err)
}

func TestLoadUniverse(t *testing.T) {
	p := writeFile(t, "u.yaml", "Yahoo:\n  Equity: [aapl, msft]\n  forex: [EURUSD=X]\n")
	u, err := LoadUniverse(p)
	require.NoError(t, err)
	got, ok := u.Lookup("yahoo", "equity")
	require.True(t, ok)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)
	_, ok = u.Lookup("yahoo", "crypto")
	assert.False(t, ok)
	_, ok = Universe(nil).Lookup("yahoo", "equity")
	assert.False(t, ok)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, ParseList("btcusdt, ETHUSDT,,btcusdt"))
}
