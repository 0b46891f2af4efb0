package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransaction_Validate(t *testing.T) {
	base := func() Transaction {
		return Transaction{
			ID:                   uuid.New(),
			SenderID:             uuid.New(),
			ReceiverID:           uuid.New(),
			Amount:               decimal.NewFromInt(100),
			FeeRate:              decimal.NewFromInt(10),
			InitialSenderBalance: decimal.NewFromInt(500),
			FinalSenderBalance:   decimal.NewFromInt(390),
			CreatedAt:            time.Now(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "Valid fee-bearing transaction should pass",
			mutate:  func(tx *Transaction) {},
			wantErr: false,
		},
		{
			name:    "Zero fee rate is valid",
			mutate:  func(tx *Transaction) { tx.FeeRate = decimal.Zero; tx.FinalSenderBalance = decimal.NewFromInt(400) },
			wantErr: false,
		},
		{
			name:    "Missing sender should fail",
			mutate:  func(tx *Transaction) { tx.SenderID = uuid.Nil },
			wantErr: true,
			errMsg:  "transaction must have a sender and a receiver",
		},
		{
			name:    "Zero amount should fail",
			mutate:  func(tx *Transaction) { tx.Amount = decimal.Zero },
			wantErr: true,
			errMsg:  "transaction amount must be positive",
		},
		{
			name:    "Negative fee rate should fail",
			mutate:  func(tx *Transaction) { tx.FeeRate = decimal.NewFromInt(-1) },
			wantErr: true,
			errMsg:  "transaction fee rate cannot be negative",
		},
		{
			name:    "Final balance above initial should fail",
			mutate:  func(tx *Transaction) { tx.FinalSenderBalance = decimal.NewFromInt(600) },
			wantErr: true,
			errMsg:  "initial sender balance cannot be below final sender balance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base()
			tt.mutate(&tx)

			err := tx.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.errMsg, err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransaction_Fee(t *testing.T) {
	tx := Transaction{
		Amount:               decimal.NewFromInt(100),
		InitialSenderBalance: decimal.NewFromInt(500),
		FinalSenderBalance:   decimal.NewFromInt(390),
	}

	assert.True(t, tx.Fee().Equal(decimal.NewFromInt(10)))
}
