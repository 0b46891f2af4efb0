package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "linkledger.v1.LedgerService"

// Method names of the ledger service
const (
	MethodDeposit               = "Deposit"
	MethodWithdraw              = "Withdraw"
	MethodTransfer              = "Transfer"
	MethodOpenAccount           = "OpenAccount"
	MethodGetAccount            = "GetAccount"
	MethodGetTransaction        = "GetTransaction"
	MethodListTransactions      = "ListTransactions"
	MethodGetTransactionHistory = "GetTransactionHistory"
	MethodListDistributions     = "ListDistributions"
)

// LedgerServer is the server API of the ledger service.
// Requests and responses are google.protobuf.Struct messages.
type LedgerServer interface {
	Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	OpenAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetTransactionHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListDistributions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv LedgerServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// LedgerServiceDesc describes the ledger service for grpc.Server registration
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodDeposit, LedgerServer.Deposit),
		unaryMethod(MethodWithdraw, LedgerServer.Withdraw),
		unaryMethod(MethodTransfer, LedgerServer.Transfer),
		unaryMethod(MethodOpenAccount, LedgerServer.OpenAccount),
		unaryMethod(MethodGetAccount, LedgerServer.GetAccount),
		unaryMethod(MethodGetTransaction, LedgerServer.GetTransaction),
		unaryMethod(MethodListTransactions, LedgerServer.ListTransactions),
		unaryMethod(MethodGetTransactionHistory, LedgerServer.GetTransactionHistory),
		unaryMethod(MethodListDistributions, LedgerServer.ListDistributions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linkledger/v1/ledger.proto",
}

// RegisterLedgerServer registers the ledger service on a gRPC server
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// FullMethod returns the full gRPC method path for a ledger method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// LedgerClient calls the ledger service over a client connection
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

// NewLedgerClient creates a client for the ledger service
func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

// Call invokes a ledger method with the given fields
func (c *LedgerClient) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
