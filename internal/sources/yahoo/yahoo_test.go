package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/macrotracker/internal/macro"
)

// chartServer answers per symbol with the given body; unknown symbols get 404.
func chartServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
		body, ok := bodies[symbol]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func metaBody(price float64) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"regularMarketPrice":%v},"indicators":{"quote":[{"close":[1,2]}]}}],"error":null}`, price)
}

func TestFetch(t *testing.T) {
	srv := chartServer(t, map[string]string{
		SymbolGold:   metaBody(2345.6),
		SymbolDollar: metaBody(104.25),
	})
	c := New(Config{BaseURL: srv.URL})

	r, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, macro.Some(2345.6), r.GoldPrice)
	assert.Equal(t, macro.Some(104.25), r.DollarIndex)
}

func TestPrice_FallsBackToLastClose(t *testing.T) {
	srv := chartServer(t, map[string]string{
		SymbolGold: `{"chart":{"result":[{"meta":{},"indicators":{"quote":[{"close":[2300.1,2310.5,null]}]}}]}}`,
	})
	c := New(Config{BaseURL: srv.URL})

	v, err := c.Price(context.Background(), SymbolGold)
	require.NoError(t, err)
	assert.Equal(t, macro.Some(2310.5), v)
}

func TestPrice_NoData(t *testing.T) {
	srv := chartServer(t, map[string]string{
		SymbolGold: `{"chart":{"result":[],"error":null}}`,
	})
	c := New(Config{BaseURL: srv.URL})

	_, err := c.Price(context.Background(), SymbolGold)
	assert.ErrorIs(t, err, errNoPrice)
}

func TestFetch_OneSymbolFails(t *testing.T) {
	srv := chartServer(t, map[string]string{
		SymbolGold: metaBody(2345.6),
	})
	c := New(Config{BaseURL: srv.URL})

	r, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, r.GoldPrice.Present())
	assert.False(t, r.DollarIndex.Present())
}

func TestFetch_AllSymbolsFail(t *testing.T) {
	srv := chartServer(t, nil)
	c := New(Config{BaseURL: srv.URL})

	_, err := c.Fetch(context.Background())
	assert.Error(t, err)
}
