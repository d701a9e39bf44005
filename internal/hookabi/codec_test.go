package hookabi

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// asWord reads the low half of one ABI word as an integer string.
func asWord(t *testing.T, word []byte) string {
	t.Helper()
	require.Len(t, word, 32)
	for _, b := range word[:16] {
		require.Zero(t, b, "upper half of word must stay clear")
	}
	return new(big.Int).SetBytes(word[16:32]).String()
}

func TestSelectorsMatchPinnedBytes(t *testing.T) {
	require.Equal(t, [4]byte{0x83, 0x7a, 0xef, 0x47}, SelectorAfterInitialize)
	require.Equal(t, [4]byte{0xc2, 0xba, 0xbb, 0x57}, SelectorAfterSwap)
	require.Equal(t, [4]byte{0x17, 0xd7, 0xde, 0x7c}, SelectorGetName)
}

func TestToWADGoldenValues(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1000000000000000000"},
		{"0.0025", "2500000000000000"},
		{"0.003", "3000000000000000"},
		{"100", "100000000000000000000"},
		{"0.0000000000000000019", "1"}, // truncates past 18 places
	}
	for _, tc := range cases {
		w, err := ToWAD(d(tc.in))
		require.NoError(t, err)
		require.Equal(t, tc.want, w.String(), "ToWAD(%s)", tc.in)
	}
}

func TestToWADRejectsOutOfRange(t *testing.T) {
	_, err := ToWAD(d("-0.003"))
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = ToWAD(d("1e21"))
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestFromWADRoundTrip(t *testing.T) {
	require.True(t, FromWAD(WAD).Equal(d("1")))
	require.True(t, FromWAD(big.NewInt(1)).Equal(d("0.000000000000000001")))
	require.True(t, FromWAD(FeeWAD(25)).Equal(d("0.0025")))
}

func TestFeeWAD(t *testing.T) {
	require.Equal(t, "3000000000000000", FeeWAD(30).String())
	require.Equal(t, MaxFee.String(), FeeWAD(1000).String())
}

func TestEncodeAfterInitializeLayout(t *testing.T) {
	buf, err := EncodeAfterInitialize(d("100"), d("10000"))
	require.NoError(t, err)
	require.Len(t, buf, AfterInitializeSize)

	require.Equal(t, SelectorAfterInitialize[:], buf[0:4])
	require.Equal(t, "100000000000000000000", asWord(t, buf[4:36]))
	require.Equal(t, "10000000000000000000000", asWord(t, buf[36:68]))
}

func TestEncodeAfterSwapLayout(t *testing.T) {
	trade := domain.TradeInfo{
		Pool:      "p0",
		Side:      domain.SideBuy,
		AmountX:   d("1.5"),
		AmountY:   d("150"),
		ReserveX:  d("101.5"),
		ReserveY:  d("9850"),
		Timestamp: 42,
	}

	buf, err := EncodeAfterSwap(trade)
	require.NoError(t, err)
	require.Len(t, buf, AfterSwapSize)

	require.Equal(t, SelectorAfterSwap[:], buf[0:4])
	require.Equal(t, byte(1), buf[35])
	for _, b := range buf[4:35] {
		require.Zero(t, b)
	}
	require.Equal(t, "1500000000000000000", asWord(t, buf[36:68]))
	require.Equal(t, "150000000000000000000", asWord(t, buf[68:100]))
	require.Equal(t, "42", asWord(t, buf[100:132]))
	require.Equal(t, "101500000000000000000", asWord(t, buf[132:164]))
	require.Equal(t, "9850000000000000000000", asWord(t, buf[164:196]))

	trade.Side = domain.SideSell
	buf, err = EncodeAfterSwap(trade)
	require.NoError(t, err)
	require.Equal(t, byte(0), buf[35])
}

func TestEncodeAfterSwapRejectsBadFields(t *testing.T) {
	trade := domain.TradeInfo{
		Side:      domain.SideBuy,
		AmountX:   d("-1"),
		AmountY:   d("150"),
		ReserveX:  d("101.5"),
		ReserveY:  d("9850"),
		Timestamp: 7,
	}
	_, err := EncodeAfterSwap(trade)
	require.ErrorIs(t, err, ErrOutOfRange)
	require.Contains(t, err.Error(), "amountX")

	trade.AmountX = d("1")
	trade.Timestamp = -1
	_, err = EncodeAfterSwap(trade)
	require.Error(t, err)
}

func TestEncodeGetName(t *testing.T) {
	require.Equal(t, SelectorGetName[:], EncodeGetName())
}

func TestFeePairRoundTrip(t *testing.T) {
	frame, err := EncodeFeePair(d("0.003"), d("0.005"))
	require.NoError(t, err)
	require.Len(t, frame, FeePairSize)

	quote, ok := DecodeFeePair(frame)
	require.True(t, ok)
	require.True(t, quote.BidFee.Equal(d("0.003")))
	require.True(t, quote.AskFee.Equal(d("0.005")))
}

func TestDecodeFeePairAcceptsBoundaries(t *testing.T) {
	quote, ok := DecodeFeePair(make([]byte, FeePairSize))
	require.True(t, ok)
	require.True(t, quote.BidFee.IsZero())
	require.True(t, quote.AskFee.IsZero())

	frame, err := EncodeFeePair(d("0.1"), d("0.1"))
	require.NoError(t, err)
	quote, ok = DecodeFeePair(frame)
	require.True(t, ok)
	require.True(t, quote.AskFee.Equal(d("0.1")))
}

func TestDecodeFeePairRejectsBadPayloads(t *testing.T) {
	valid, err := EncodeFeePair(d("0.003"), d("0.003"))
	require.NoError(t, err)

	t.Run("short", func(t *testing.T) {
		_, ok := DecodeFeePair(valid[:FeePairSize-1])
		require.False(t, ok)
	})

	t.Run("bid over max fee", func(t *testing.T) {
		frame := make([]byte, FeePairSize)
		over := new(big.Int).Add(MaxFee, big.NewInt(1))
		over.FillBytes(frame[16:32])
		FeeWAD(30).FillBytes(frame[48:64])
		_, ok := DecodeFeePair(frame)
		require.False(t, ok)
	})

	t.Run("ask over max fee", func(t *testing.T) {
		frame := make([]byte, FeePairSize)
		FeeWAD(30).FillBytes(frame[16:32])
		new(big.Int).Add(MaxFee, big.NewInt(1)).FillBytes(frame[48:64])
		_, ok := DecodeFeePair(frame)
		require.False(t, ok)
	})

	t.Run("dirty upper half", func(t *testing.T) {
		frame := append([]byte(nil), valid...)
		frame[0] = 1
		_, ok := DecodeFeePair(frame)
		require.False(t, ok)

		frame = append([]byte(nil), valid...)
		frame[32] = 1
		_, ok = DecodeFeePair(frame)
		require.False(t, ok)
	})
}
