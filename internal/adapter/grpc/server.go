package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/linkledger-backend/internal/domain"
	"github.com/simaogato/linkledger-backend/internal/usecase/distribution"
	"github.com/simaogato/linkledger-backend/internal/usecase/transfer"
)

// Server implements the LedgerService gRPC server
type Server struct {
	TransferService    *transfer.TransferService
	DistributionEngine *distribution.Engine
}

var _ LedgerServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(
	transferService *transfer.TransferService,
	distributionEngine *distribution.Engine,
) *Server {
	return &Server{
		TransferService:    transferService,
		DistributionEngine: distributionEngine,
	}
}

// Deposit handles the Deposit RPC
func (s *Server) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountNumber, err := stringField(req, "account_number")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}

	account, err := s.TransferService.Deposit(ctx, accountNumber, amount)
	if err != nil {
		return nil, mapError(err)
	}
	return respond("account", accountFields(account))
}

// Withdraw handles the Withdraw RPC
func (s *Server) Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountNumber, err := stringField(req, "account_number")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}

	account, err := s.TransferService.Withdraw(ctx, accountNumber, amount)
	if err != nil {
		return nil, mapError(err)
	}
	return respond("account", accountFields(account))
}

// Transfer handles the Transfer RPC
func (s *Server) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sender, err := stringField(req, "sender_account_number")
	if err != nil {
		return nil, err
	}
	receiver, err := stringField(req, "receiver_account_number")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}
	// Zero is a valid fee rate; only a missing one is rejected
	feeRate, err := decimalField(req, "fee_rate")
	if err != nil {
		return nil, err
	}

	tx, err := s.TransferService.Transfer(ctx, transfer.TransferInput{
		SenderAccountNumber:   sender,
		ReceiverAccountNumber: receiver,
		Amount:                amount,
		FeeRate:               &feeRate,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return respond("transaction", transactionFields(tx))
}

// OpenAccount handles the OpenAccount RPC
func (s *Server) OpenAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountNumber, err := stringField(req, "account_number")
	if err != nil {
		return nil, err
	}
	trigger, err := intField(req, "trigger", 0)
	if err != nil {
		return nil, err
	}

	input := transfer.OpenAccountInput{
		AccountNumber: accountNumber,
		Name:          optionalStringField(req, "name"),
		Trigger:       trigger,
	}
	if _, ok := field(req, "public_rate"); ok {
		if input.PublicRate, err = decimalField(req, "public_rate"); err != nil {
			return nil, err
		}
	}

	account, err := s.TransferService.OpenAccount(ctx, input)
	if err != nil {
		return nil, mapError(err)
	}
	return respond("account", accountFields(account))
}

// GetAccount handles the GetAccount RPC
func (s *Server) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountNumber, err := stringField(req, "account_number")
	if err != nil {
		return nil, err
	}

	account, err := s.TransferService.GetAccount(ctx, accountNumber)
	if err != nil {
		return nil, mapError(err)
	}
	return respond("account", accountFields(account))
}

// GetTransaction handles the GetTransaction RPC
func (s *Server) GetTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidField(req, "transaction_id")
	if err != nil {
		return nil, err
	}

	tx, err := s.TransferService.GetTransaction(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return respond("transaction", transactionFields(tx))
}

// ListTransactions handles the ListTransactions RPC
func (s *Server) ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit, err := intField(req, "limit", 50)
	if err != nil {
		return nil, err
	}
	offset, err := intField(req, "offset", 0)
	if err != nil {
		return nil, err
	}

	txs, err := s.TransferService.ListTransactions(ctx, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	return respond("transactions", transactionList(txs))
}

// GetTransactionHistory handles the GetTransactionHistory RPC
func (s *Server) GetTransactionHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := uuidField(req, "account_id")
	if err != nil {
		return nil, err
	}

	txs, err := s.TransferService.GetTransactionHistory(ctx, accountID)
	if err != nil {
		return nil, mapError(err)
	}
	return respond("transactions", transactionList(txs))
}

// ListDistributions handles the ListDistributions RPC
func (s *Server) ListDistributions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := uuidField(req, "account_id")
	if err != nil {
		return nil, err
	}

	records, err := s.DistributionEngine.ListDistributions(ctx, accountID)
	if err != nil {
		return nil, mapError(err)
	}

	list := make([]any, 0, len(records))
	for _, record := range records {
		list = append(list, distributionFields(record))
	}
	return respond("distributions", list)
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return status.Errorf(codes.InvalidArgument, "%s", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		return status.Errorf(codes.FailedPrecondition, "%s", err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	// Default to Internal error for store failures and anything unclassified
	return status.Errorf(codes.Internal, "%s", err.Error())
}
