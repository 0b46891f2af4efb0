package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/linkledger-backend/internal/domain"
	"github.com/simaogato/linkledger-backend/internal/logging"
	"github.com/simaogato/linkledger-backend/internal/metrics"
	"github.com/simaogato/linkledger-backend/internal/usecase/distribution"
	"github.com/simaogato/linkledger-backend/internal/usecase/valuation"
)

var (
	hundred = decimal.NewFromInt(100)
	// Split of every fee between the intermediary's reserve and its balance
	reserveShare = decimal.New(9, -1)
	balanceShare = decimal.New(1, -1)
)

// Distributor is the part of the distribution engine the transfer processor hands off to
type Distributor interface {
	Track(ctx context.Context, account *domain.Account) error
	SweepEligible(ctx context.Context) (*distribution.SweepReport, error)
}

// TransferInput represents the input for a transfer between two accounts
type TransferInput struct {
	SenderAccountNumber   string
	ReceiverAccountNumber string
	Amount                decimal.Decimal
	FeeRate               *decimal.Decimal // Required; zero is a valid rate
}

// TransferService handles deposits, withdrawals and fee-bearing transfers
type TransferService struct {
	UnitOfWork     domain.UnitOfWork
	Distributor    Distributor
	IntermediaryID uuid.UUID
	Logger         logrus.FieldLogger

	now func() time.Time
}

// NewTransferService creates a new TransferService instance
func NewTransferService(
	uow domain.UnitOfWork,
	distributor Distributor,
	intermediaryID uuid.UUID,
	logger logrus.FieldLogger,
) *TransferService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TransferService{
		UnitOfWork:     uow,
		Distributor:    distributor,
		IntermediaryID: intermediaryID,
		Logger:         logger,
		now:            time.Now,
	}
}

// Deposit adds cash to an account balance
func (s *TransferService) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error) {
	if accountNumber == "" {
		return nil, domain.Validationf("account number is required")
	}
	if !amount.IsPositive() {
		return nil, domain.Validationf("deposit amount must be positive")
	}

	account, err := s.adjustBalance(ctx, accountNumber, func(account *domain.Account) error {
		account.Balance = account.Balance.Add(amount)
		return nil
	})
	if err != nil {
		metrics.ObserveTransfer(metrics.KindDeposit, metrics.OutcomeFailure)
		return nil, err
	}

	metrics.ObserveTransfer(metrics.KindDeposit, metrics.OutcomeSuccess)
	s.Logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"amount":     amount.String(),
	}).Info("deposit applied")
	return account, nil
}

// Withdraw removes cash from an account balance
func (s *TransferService) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error) {
	if accountNumber == "" {
		return nil, domain.Validationf("account number is required")
	}
	if !amount.IsPositive() {
		return nil, domain.Validationf("amount must be greater than zero")
	}

	account, err := s.adjustBalance(ctx, accountNumber, func(account *domain.Account) error {
		if account.Balance.LessThan(amount) {
			return fmt.Errorf("account %s: %w", account.AccountNumber, domain.ErrInsufficientFunds)
		}
		account.Balance = account.Balance.Sub(amount)
		return nil
	})
	if err != nil {
		metrics.ObserveTransfer(metrics.KindWithdraw, metrics.OutcomeFailure)
		return nil, err
	}

	metrics.ObserveTransfer(metrics.KindWithdraw, metrics.OutcomeSuccess)
	s.Logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"amount":     amount.String(),
	}).Info("withdrawal applied")
	return account, nil
}

// adjustBalance loads an account, applies mutate, recomputes its value and saves it in one unit of work
func (s *TransferService) adjustBalance(ctx context.Context, accountNumber string, mutate func(*domain.Account) error) (*domain.Account, error) {
	var account *domain.Account
	err := s.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		account, err = repos.Accounts.GetByAccountNumber(ctx, accountNumber)
		if err != nil {
			return domain.Internal(err)
		}
		if err := mutate(account); err != nil {
			return err
		}
		if err := valuation.Refresh(ctx, repos.Links, account); err != nil {
			return domain.Internal(err)
		}
		return domain.Internal(repos.Accounts.Save(ctx, account))
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Transfer moves money between two accounts, routing the fee through the intermediary
// Logic:
//  1. Validate input and load sender and receiver
//  2. Fee = Amount * FeeRate / 100; sender must hold Amount + Fee
//  3. FeeRate == 0: move Amount, no links
//  4. FeeRate > 0: sender pays Amount + Fee, receiver gets Amount,
//     links sender -> intermediary (Amount) and intermediary -> receiver (Amount - Fee),
//     intermediary reserve += 90% of Fee, balance += 10% of Fee, transaction count + 1
//  5. Record the transaction, recompute values (and the sender's public rate when a fee applies),
//     append to both histories and persist
//  6. After commit, track the intermediary and sweep eligible distributions
func (s *TransferService) Transfer(ctx context.Context, input TransferInput) (*domain.Transaction, error) {
	if err := validateTransferInput(input); err != nil {
		metrics.ObserveTransfer(metrics.KindTransfer, metrics.OutcomeFailure)
		return nil, err
	}

	feeRate := *input.FeeRate
	kind := metrics.KindTransfer
	if feeRate.IsZero() {
		kind = metrics.KindFeeless
	}

	var (
		tx           *domain.Transaction
		intermediary *domain.Account
	)
	err := s.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		tx, intermediary, err = s.transfer(ctx, repos, input.SenderAccountNumber, input.ReceiverAccountNumber, input.Amount, feeRate)
		return err
	})
	if err != nil {
		metrics.ObserveTransfer(kind, metrics.OutcomeFailure)
		return nil, err
	}
	metrics.ObserveTransfer(kind, metrics.OutcomeSuccess)

	log := s.Logger.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"sender_id":      tx.SenderID,
		"receiver_id":    tx.ReceiverID,
		"amount":         tx.Amount.String(),
		"fee_rate":       tx.FeeRate.String(),
	})
	log.Info("transfer committed")

	if intermediary != nil {
		if err := s.Distributor.Track(ctx, intermediary); err != nil {
			log.WithError(err).Warn("failed to track intermediary eligibility")
		}
	}

	// Distribution runs after every transfer; its failures never undo the transfer
	report, err := s.Distributor.SweepEligible(ctx)
	if err != nil {
		log.WithError(err).Error("distribution sweep failed")
	} else if len(report.Failed) > 0 {
		log.WithField("failed_accounts", len(report.Failed)).Warn("distribution sweep completed with failures")
	}

	return tx, nil
}

func validateTransferInput(input TransferInput) error {
	if input.SenderAccountNumber == "" || input.ReceiverAccountNumber == "" || input.FeeRate == nil {
		return domain.Validationf("all fields are required")
	}
	if !input.Amount.IsPositive() {
		return domain.Validationf("transfer amount must be positive")
	}
	if input.FeeRate.IsNegative() || input.FeeRate.GreaterThan(hundred) {
		return domain.Validationf("fee rate must be between 0 and 100")
	}
	if input.SenderAccountNumber == input.ReceiverAccountNumber {
		return domain.Validationf("sender and receiver must differ")
	}
	return nil
}

// transfer applies a validated transfer inside a unit of work.
// The returned intermediary is nil on the fee-free path.
func (s *TransferService) transfer(
	ctx context.Context,
	repos domain.Repositories,
	senderNumber, receiverNumber string,
	amount, feeRate decimal.Decimal,
) (*domain.Transaction, *domain.Account, error) {
	// Rows are locked intermediary first, then the two parties by account number,
	// matching the distributor-first order of a distribution.
	var intermediary *domain.Account
	if feeRate.IsPositive() {
		var err error
		intermediary, err = repos.Accounts.GetByID(ctx, s.IntermediaryID)
		if err != nil {
			return nil, nil, fmt.Errorf("intermediary account: %w", domain.Internal(err))
		}
	}
	sender, receiver, err := lockParties(ctx, repos, senderNumber, receiverNumber, intermediary)
	if err != nil {
		return nil, nil, err
	}

	fee := decimal.Zero
	if feeRate.IsPositive() {
		fee = amount.Mul(feeRate).Div(hundred)
	}

	if sender.Balance.LessThan(amount.Add(fee)) {
		return nil, nil, fmt.Errorf("account %s: %w", sender.AccountNumber, domain.ErrInsufficientFunds)
	}

	if feeRate.IsZero() {
		sender.Balance = sender.Balance.Sub(amount)
		receiver.Balance = receiver.Balance.Add(amount)
	} else {
		sender.Balance = sender.Balance.Sub(amount.Add(fee))
		receiver.Balance = receiver.Balance.Add(amount)

		if err := upsertLink(ctx, repos, sender, intermediary, amount, feeRate); err != nil {
			return nil, nil, err
		}
		if err := upsertLink(ctx, repos, intermediary, receiver, amount.Sub(fee), feeRate); err != nil {
			return nil, nil, err
		}

		intermediary.Auxiliary = intermediary.Auxiliary.Add(fee.Mul(reserveShare))
		intermediary.Balance = intermediary.Balance.Add(fee.Mul(balanceShare))
		intermediary.TransactionCount++
		if err := valuation.Refresh(ctx, repos.Links, intermediary); err != nil {
			return nil, nil, domain.Internal(err)
		}
		if err := repos.Accounts.Save(ctx, intermediary); err != nil {
			return nil, nil, domain.Internal(err)
		}

		s.Logger.WithFields(logrus.Fields{
			"intermediary_id":   intermediary.ID,
			"auxiliary":         intermediary.Auxiliary.String(),
			"transaction_count": intermediary.TransactionCount,
		}).Debug("intermediary updated")
	}

	tx := &domain.Transaction{
		ID:                    uuid.New(),
		SenderID:              sender.ID,
		ReceiverID:            receiver.ID,
		SenderAccountNumber:   sender.AccountNumber,
		ReceiverAccountNumber: receiver.AccountNumber,
		SenderName:            sender.Name,
		ReceiverName:          receiver.Name,
		Amount:                amount,
		FeeRate:               feeRate,
		// Reconstructed from the post-transfer balance
		InitialSenderBalance: sender.Balance.Add(amount).Add(fee),
		FinalSenderBalance:   sender.Balance,
		CreatedAt:            s.now(),
	}
	if err := tx.Validate(); err != nil {
		return nil, nil, domain.Validationf("%v", err)
	}
	if err := repos.Transactions.Create(ctx, tx); err != nil {
		return nil, nil, domain.Internal(err)
	}

	if err := valuation.Refresh(ctx, repos.Links, sender, receiver); err != nil {
		return nil, nil, domain.Internal(err)
	}
	if feeRate.IsPositive() {
		rate, err := valuation.PublicRate(ctx, repos.Links, sender)
		if err != nil {
			return nil, nil, domain.Internal(err)
		}
		sender.PublicRate = rate
	}

	sender.AppendTransaction(tx.ID)
	receiver.AppendTransaction(tx.ID)
	if err := repos.Accounts.Save(ctx, sender); err != nil {
		return nil, nil, domain.Internal(err)
	}
	if err := repos.Accounts.Save(ctx, receiver); err != nil {
		return nil, nil, domain.Internal(err)
	}

	return tx, intermediary, nil
}

// lockParties loads sender and receiver in account-number order. A party that is the
// already-loaded intermediary is returned as that same record so every mutation lands on it.
func lockParties(
	ctx context.Context,
	repos domain.Repositories,
	senderNumber, receiverNumber string,
	intermediary *domain.Account,
) (*domain.Account, *domain.Account, error) {
	first, second := senderNumber, receiverNumber
	if second < first {
		first, second = second, first
	}

	loaded := make(map[string]*domain.Account, 2)
	for _, number := range []string{first, second} {
		if intermediary != nil && intermediary.AccountNumber == number {
			loaded[number] = intermediary
			continue
		}
		account, err := repos.Accounts.GetByAccountNumber(ctx, number)
		if err != nil {
			return nil, nil, domain.Internal(err)
		}
		loaded[number] = account
	}
	return loaded[senderNumber], loaded[receiverNumber], nil
}

func upsertLink(ctx context.Context, repos domain.Repositories, from, to *domain.Account, amount, feeRate decimal.Decimal) error {
	// Links are deleted at zero, so a zero obligation never creates one.
	// An account never owes itself; this happens when the intermediary is a party.
	if !amount.IsPositive() || from.ID == to.ID {
		return nil
	}
	_, err := repos.Links.UpsertOrAccumulate(ctx, &domain.Link{
		ID:           uuid.New(),
		SenderID:     from.ID,
		ReceiverID:   to.ID,
		SenderName:   from.Name,
		ReceiverName: to.Name,
		Amount:       amount,
		FeeRate:      feeRate,
	})
	return domain.Internal(err)
}
