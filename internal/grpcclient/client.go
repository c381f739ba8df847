package grpcclient

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Muthahireen/clairvoyant/internal/inference"
	"github.com/Muthahireen/clairvoyant/internal/logging"
	proto "github.com/Muthahireen/clairvoyant/proto"
)

// DialClassifier returns a ready-to-use gRPC client for an external model server.
func DialClassifier(ctx context.Context, addr string, logger *zap.Logger) (inference.Classifier, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_classifier", "", err)
		logger.Error("failed to dial classifier", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewClassifier(conn, logger), conn, nil
}

// NewClassifier adapts an existing connection to inference.Classifier.
func NewClassifier(conn grpc.ClientConnInterface, logger *zap.Logger) inference.Classifier {
	return &grpcClassifier{client: proto.NewClassifierClient(conn), logger: logger.Named("grpc_classifier")}
}

type grpcClassifier struct {
	client proto.ClassifierClient
	logger *zap.Logger
}

func (g *grpcClassifier) Classify(ctx context.Context, input inference.Input) (*inference.Prediction, error) {
	req, err := proto.ClassifyRequest{UserID: input.UserID, ContentType: input.ContentType, Image: input.Data}.Encode()
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.encode_request", "", err)
	}
	resp, err := g.client.Classify(ctx, req)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.classify", "", err)
		g.logger.Error("classifier call failed", zap.Error(wrapped), zap.String("user_id", input.UserID))
		return nil, wrapped
	}
	return toPrediction(resp)
}

func (g *grpcClassifier) ClassifyFeatures(ctx context.Context, userID string, features inference.Features) (*inference.Prediction, error) {
	req, err := proto.FeaturesRequest{UserID: userID, Features: features.AsMap()}.Encode()
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.encode_request", "", err)
	}
	resp, err := g.client.ClassifyFeatures(ctx, req)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.classify_features", "", err)
		g.logger.Error("classifier call failed", zap.Error(wrapped), zap.String("user_id", userID))
		return nil, wrapped
	}
	return toPrediction(resp)
}

func toPrediction(resp *structpb.Struct) (*inference.Prediction, error) {
	pred, err := proto.DecodePrediction(resp)
	if err != nil {
		return nil, logging.NewOperationError("grpcclient.decode_prediction", "", err)
	}
	return &inference.Prediction{
		Label:        pred.Label,
		Confidence:   float32(pred.Confidence),
		ModelVersion: pred.ModelVersion,
	}, nil
}
