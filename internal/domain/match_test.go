package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchResultWinner(t *testing.T) {
	cases := []struct {
		name         string
		participants []ParticipantResult
		want         string
	}{
		{"empty", nil, ""},
		{
			"head to head decided",
			[]ParticipantResult{
				{Strategy: "spread", Wins: 60, Placement: 1},
				{Strategy: "fixed", Wins: 40, Placement: 2},
			},
			"spread",
		},
		{
			"head to head drawn",
			[]ParticipantResult{
				{Strategy: "spread", Wins: 50, Placement: 1},
				{Strategy: "fixed", Wins: 50, Placement: 2},
			},
			"",
		},
		{
			"three way keeps first even on equal wins",
			[]ParticipantResult{
				{Strategy: "tiered", Wins: 30, Placement: 1},
				{Strategy: "spread", Wins: 30, Placement: 2},
				{Strategy: "fixed", Wins: 20, Placement: 3},
			},
			"tiered",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := MatchResult{Participants: tc.participants}
			require.Equal(t, tc.want, m.Winner())
		})
	}
}

func TestTradeInfoImpliedPrice(t *testing.T) {
	trade := TradeInfo{AmountX: d("4"), AmountY: d("100")}
	require.True(t, trade.ImpliedPrice().Equal(d("25")))

	empty := TradeInfo{AmountX: d("0"), AmountY: d("100")}
	require.True(t, empty.ImpliedPrice().IsZero())
}
