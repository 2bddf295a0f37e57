package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	datafeed "github.com/fazecat/contractionscout/Internal/database"
	"github.com/fazecat/contractionscout/Internal/utils/config"
)

func TestBuild_CSVFeed(t *testing.T) {
	s, err := Build(context.Background(), config.Default(), Options{CSVDir: t.TempDir(), NoStore: true})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &datafeed.CSVFeed{}, s.Feed)
	assert.Nil(t, s.Store)
	assert.NotNil(t, s.Scanner)
}

func TestBuild_AlpacaNeedsKeys(t *testing.T) {
	t.Setenv("ALPACA_API_KEY", "")
	t.Setenv("ALPACA_API_SECRET", "")

	_, err := Build(context.Background(), config.Default(), Options{NoStore: true})
	assert.Error(t, err)
}

func TestRequest(t *testing.T) {
	s := &Services{Config: config.Default()}

	req, err := s.Request("AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, "standard", req.Profile)
	assert.Equal(t, "1Day", req.Timeframe)
	assert.Equal(t, 250, req.HistoryBars)
	assert.Equal(t, 60, req.Config.ScanLength)

	_, err = s.Request("AAPL", "missing")
	assert.ErrorIs(t, err, config.ErrUnknownProfile)
}
