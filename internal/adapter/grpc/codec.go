package grpc

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/linkledger-backend/internal/domain"
)

// field returns the value stored under name, treating an explicit null as absent
func field(req *structpb.Struct, name string) (*structpb.Value, bool) {
	v, ok := req.GetFields()[name]
	if !ok || v == nil {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := field(req, name)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	s, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString || s.StringValue == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a non-empty string", name)
	}
	return s.StringValue, nil
}

func optionalStringField(req *structpb.Struct, name string) string {
	v, ok := field(req, name)
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// decimalField accepts decimal strings and JSON numbers
func decimalField(req *structpb.Struct, name string) (decimal.Decimal, error) {
	v, ok := field(req, name)
	if !ok {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}

	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		if math.IsNaN(kind.NumberValue) || math.IsInf(kind.NumberValue, 0) {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s must be a finite number", name)
		}
		return decimal.NewFromFloat(kind.NumberValue), nil
	default:
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s must be a number or a decimal string", name)
	}
}

func intField(req *structpb.Struct, name string, fallback int) (int, error) {
	v, ok := field(req, name)
	if !ok {
		return fallback, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return int(n.NumberValue), nil
}

func uuidField(req *structpb.Struct, name string) (uuid.UUID, error) {
	raw, err := stringField(req, name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return id, nil
}

func accountFields(a *domain.Account) map[string]any {
	history := make([]any, 0, len(a.TransactionHistory))
	for _, id := range a.TransactionHistory {
		history = append(history, id.String())
	}
	return map[string]any{
		"id":                  a.ID.String(),
		"account_number":      a.AccountNumber,
		"name":                a.Name,
		"balance":             a.Balance.String(),
		"auxiliary":           a.Auxiliary.String(),
		"value":               a.Value.String(),
		"public_rate":         a.PublicRate.String(),
		"trigger":             a.Trigger,
		"transaction_count":   a.TransactionCount,
		"transaction_history": history,
	}
}

func transactionFields(tx *domain.Transaction) map[string]any {
	return map[string]any{
		"id":                      tx.ID.String(),
		"sender_id":               tx.SenderID.String(),
		"receiver_id":             tx.ReceiverID.String(),
		"sender_account_number":   tx.SenderAccountNumber,
		"receiver_account_number": tx.ReceiverAccountNumber,
		"sender_name":             tx.SenderName,
		"receiver_name":           tx.ReceiverName,
		"amount":                  tx.Amount.String(),
		"fee_rate":                tx.FeeRate.String(),
		"fee":                     tx.Fee().String(),
		"initial_sender_balance":  tx.InitialSenderBalance.String(),
		"final_sender_balance":    tx.FinalSenderBalance.String(),
		"created_at":              tx.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func distributionFields(r *domain.DistributionRecord) map[string]any {
	var linkID any
	if r.LinkID != nil {
		linkID = r.LinkID.String()
	}
	return map[string]any{
		"id":             r.ID.String(),
		"distributor_id": r.DistributorID.String(),
		"participant_id": r.ParticipantID.String(),
		"link_id":        linkID,
		"share":          r.Share.String(),
		"fully_settled":  r.FullySettled,
		"created_at":     r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// respond wraps a payload under key as the response message
func respond(key string, payload any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(map[string]any{key: payload})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

func transactionList(txs []*domain.Transaction) []any {
	list := make([]any, 0, len(txs))
	for _, tx := range txs {
		list = append(list, transactionFields(tx))
	}
	return list
}
