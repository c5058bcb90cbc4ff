package fx_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketdata/internal/date"
	"marketdata/internal/fx"
	"marketdata/internal/provider"
	"marketdata/internal/provider/cache"
)

const archiveCSV = "Date,USD,GBP,\n2010-05-11,1.2794,0.8609,\n2010-05-10,1.2765,0.8620,\n"

func zipped(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestConverter_DownloadsOnce(t *testing.T) {
	t.Parallel()

	// Arrange: the archive is requested a single time
	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	sender.EXPECT().
		Send(gomock.Any(), fx.DefaultURL, true).
		Return(zipped(t, fx.DefaultFileName, archiveCSV), nil).
		Times(1)

	conv := fx.NewConverter(sender)

	// Act
	rate, err := conv.ExchangeRate(t.Context(), "USD", "GBP", nil)
	require.NoError(t, err)
	again, err := conv.ExchangeRate(t.Context(), "GBP", "USD", nil)
	require.NoError(t, err)
	currencies, err := conv.AvailableCurrencies(t.Context())
	require.NoError(t, err)

	// Assert
	require.InDelta(t, 0.8609/1.2794, rate, 1e-12)
	require.InDelta(t, 1/rate, again, 1e-12)
	require.Equal(t, []string{"EUR", "GBP", "USD"}, currencies)
}

func TestConverter_ResetReloads(t *testing.T) {
	t.Parallel()

	// Arrange: a cached read first, then a forced one after Reset
	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	gomock.InOrder(
		sender.EXPECT().
			Send(gomock.Any(), "https://example.test/rates.zip", true).
			Return(zipped(t, "rates.csv", archiveCSV), nil),
		sender.EXPECT().
			Send(gomock.Any(), "https://example.test/rates.zip", false).
			Return(zipped(t, "rates.csv", archiveCSV), nil),
	)

	conv := fx.NewConverter(sender, fx.WithURL("https://example.test/rates.zip"), fx.WithFileName("rates.csv"))

	// Act / Assert
	require.NoError(t, conv.EnsureLoaded(t.Context()))
	require.NoError(t, conv.EnsureLoaded(t.Context()))
	conv.Reset()
	require.NoError(t, conv.EnsureLoaded(t.Context()))
	require.NoError(t, conv.EnsureLoaded(t.Context()))
}

func TestConverter_ResetSeesNewTradingDays(t *testing.T) {
	t.Parallel()

	// Arrange: upstream publishes a new day between the two downloads
	ctrl := gomock.NewController(t)
	fetcher := NewMockFetcher(ctrl)
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), fx.DefaultURL).
			Return(zipped(t, fx.DefaultFileName, archiveCSV), nil),
		fetcher.EXPECT().Fetch(gomock.Any(), fx.DefaultURL).
			Return(zipped(t, fx.DefaultFileName, "Date,USD,GBP,\n2010-05-12,1.2686,0.8520,\n2010-05-11,1.2794,0.8609,\n2010-05-10,1.2765,0.8620,\n"), nil),
	)
	conv := fx.NewConverter(cache.New(fetcher, zerolog.Nop()))

	tbl, err := conv.Table(t.Context())
	require.NoError(t, err)
	latest, _ := tbl.Latest()
	require.Equal(t, date.MustParse("2010-05-11"), latest)

	// Act
	conv.Reset()
	tbl, err = conv.Table(t.Context())

	// Assert
	require.NoError(t, err)
	latest, _ = tbl.Latest()
	require.Equal(t, date.MustParse("2010-05-12"), latest)
	require.Equal(t, 3, tbl.Len())
}

func TestConverter_FailedLoadIsRetried(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	gomock.InOrder(
		sender.EXPECT().Send(gomock.Any(), fx.DefaultURL, true).Return(nil, &provider.FetchError{URL: fx.DefaultURL, StatusCode: 503}),
		sender.EXPECT().Send(gomock.Any(), fx.DefaultURL, true).Return(zipped(t, fx.DefaultFileName, archiveCSV), nil),
	)

	conv := fx.NewConverter(sender)

	_, err := conv.ExchangeRate(t.Context(), "USD", "GBP", nil)
	var fe *provider.FetchError
	require.ErrorAs(t, err, &fe)

	_, err = conv.ExchangeRate(t.Context(), "USD", "GBP", nil)
	require.NoError(t, err)
}

func TestDownload_SingleCSVFallback(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), "u", true).Return(zipped(t, "other-name.csv", archiveCSV), nil)

	tbl, err := fx.Download(t.Context(), sender, "u", fx.DefaultFileName)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
}

func TestDownload_NotAnArchive(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), "u", true).Return([]byte("<html>maintenance</html>"), nil)

	_, err := fx.Download(t.Context(), sender, "u", fx.DefaultFileName)
	var fe *provider.FetchError
	require.True(t, errors.As(err, &fe), "want FetchError, got %v", err)
}

func TestDownload_BadCSVIsFetchErrorWithDataFormatCause(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), "u", true).Return(zipped(t, fx.DefaultFileName, "When,USD\n"), nil)

	_, err := fx.Download(t.Context(), sender, "u", fx.DefaultFileName)
	var fe *provider.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "u", fe.URL)
	var dfe *provider.DataFormatError
	require.ErrorAs(t, err, &dfe)
}

func TestConverter_WithTableSkipsDownload(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := NewMockSender(ctrl)

	tbl := fx.NewTable(map[date.Date]map[string]float64{date.MustParse("2020-01-02"): {"USD": 1.1}})
	conv := fx.NewConverter(sender, fx.WithTable(tbl))

	rate, err := conv.ExchangeRate(t.Context(), "EUR", "USD", nil)
	require.NoError(t, err)
	require.Equal(t, 1.1, rate)
}
