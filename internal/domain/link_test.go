package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLink_Accumulate(t *testing.T) {
	tests := []struct {
		name         string
		startAmount  decimal.Decimal
		startRate    decimal.Decimal
		addAmount    decimal.Decimal
		addRate      decimal.Decimal
		expectAmount decimal.Decimal
		expectRate   decimal.Decimal
	}{
		{
			name:         "Same rate keeps rate and sums amounts",
			startAmount:  decimal.NewFromInt(100),
			startRate:    decimal.NewFromInt(10),
			addAmount:    decimal.NewFromInt(50),
			addRate:      decimal.NewFromInt(10),
			expectAmount: decimal.NewFromInt(150),
			expectRate:   decimal.NewFromInt(10),
		},
		{
			name:         "Different rates blend by magnitude",
			startAmount:  decimal.NewFromInt(100),
			startRate:    decimal.NewFromInt(10),
			addAmount:    decimal.NewFromInt(300),
			addRate:      decimal.NewFromInt(20),
			expectAmount: decimal.NewFromInt(400),
			expectRate:   decimal.NewFromFloat(17.5), // (1000 + 6000) / 400
		},
		{
			name:         "Empty link takes the new rate",
			startAmount:  decimal.Zero,
			startRate:    decimal.Zero,
			addAmount:    decimal.NewFromInt(90),
			addRate:      decimal.NewFromInt(5),
			expectAmount: decimal.NewFromInt(90),
			expectRate:   decimal.NewFromInt(5),
		},
		{
			name:         "Zero combined amount keeps the stored rate",
			startAmount:  decimal.Zero,
			startRate:    decimal.NewFromInt(7),
			addAmount:    decimal.Zero,
			addRate:      decimal.NewFromInt(50),
			expectAmount: decimal.Zero,
			expectRate:   decimal.NewFromInt(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &Link{Amount: tt.startAmount, FeeRate: tt.startRate}
			link.Accumulate(tt.addAmount, tt.addRate)

			assert.True(t, link.Amount.Equal(tt.expectAmount), "amount: expected %s, got %s", tt.expectAmount, link.Amount)
			assert.True(t, link.FeeRate.Equal(tt.expectRate), "rate: expected %s, got %s", tt.expectRate, link.FeeRate)
		})
	}
}

func TestLinkFilter_Matches(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	link := &Link{SenderID: a, ReceiverID: b}

	assert.True(t, LinkFilter{}.Matches(link))
	assert.True(t, OutgoingLinks(a).Matches(link))
	assert.True(t, IncomingLinks(b).Matches(link))
	assert.False(t, OutgoingLinks(b).Matches(link))
	assert.False(t, IncomingLinks(c).Matches(link))
	assert.True(t, LinkFilter{SenderID: &a, ReceiverID: &b}.Matches(link))
	assert.False(t, LinkFilter{SenderID: &a, ReceiverID: &c}.Matches(link))
}

func TestLink_Validate(t *testing.T) {
	valid := Link{
		SenderID:   uuid.New(),
		ReceiverID: uuid.New(),
		Amount:     decimal.NewFromInt(10),
		FeeRate:    decimal.NewFromInt(3),
	}
	assert.NoError(t, valid.Validate())

	missingReceiver := valid
	missingReceiver.ReceiverID = uuid.Nil
	assert.EqualError(t, missingReceiver.Validate(), "link must have a sender and a receiver")

	negative := valid
	negative.Amount = decimal.NewFromInt(-1)
	assert.EqualError(t, negative.Validate(), "link amount cannot be negative")
}

func TestLink_Contribution(t *testing.T) {
	link := &Link{Amount: decimal.NewFromInt(40), FeeRate: decimal.NewFromInt(5)}

	assert.True(t, link.Contribution(LinkSumAmount).Equal(decimal.NewFromInt(40)))
	assert.True(t, link.Contribution(LinkSumWeightedRate).Equal(decimal.NewFromInt(200)))
}
