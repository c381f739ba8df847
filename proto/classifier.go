// Package proto defines the gRPC contract between the API and an external
// classifier. Messages are google.protobuf.Struct values so model servers in
// any language can implement the service without generated stubs.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName            = "clairvoyant.inference.v1.Classifier"
	ClassifyMethod         = "/" + ServiceName + "/Classify"
	ClassifyFeaturesMethod = "/" + ServiceName + "/ClassifyFeatures"
)

// ClassifierClient is the client API for the Classifier service.
type ClassifierClient interface {
	Classify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ClassifyFeatures(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type classifierClient struct {
	cc grpc.ClientConnInterface
}

// NewClassifierClient binds a client to an established connection.
func NewClassifierClient(cc grpc.ClientConnInterface) ClassifierClient {
	return &classifierClient{cc: cc}
}

func (c *classifierClient) Classify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ClassifyMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *classifierClient) ClassifyFeatures(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ClassifyFeaturesMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ClassifierServer is the server API for the Classifier service.
type ClassifierServer interface {
	Classify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ClassifyFeatures(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedClassifierServer can be embedded for forward compatibility.
type UnimplementedClassifierServer struct{}

func (UnimplementedClassifierServer) Classify(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Classify not implemented")
}

func (UnimplementedClassifierServer) ClassifyFeatures(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ClassifyFeatures not implemented")
}

// RegisterClassifierServer attaches srv to a gRPC server.
func RegisterClassifierServer(s grpc.ServiceRegistrar, srv ClassifierServer) {
	s.RegisterService(&ClassifierServiceDesc, srv)
}

func classifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassifierServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ClassifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClassifierServer).Classify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func classifyFeaturesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassifierServer).ClassifyFeatures(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ClassifyFeaturesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClassifierServer).ClassifyFeatures(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ClassifierServiceDesc describes the Classifier service to grpc.
var ClassifierServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClassifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Classify", Handler: classifyHandler},
		{MethodName: "ClassifyFeatures", Handler: classifyFeaturesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clairvoyant/inference/v1/classifier",
}
