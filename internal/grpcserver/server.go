package grpcserver

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Muthahireen/clairvoyant/internal/inference"
	proto "github.com/Muthahireen/clairvoyant/proto"
)

// ClassifierService exposes an inference.Classifier over gRPC.
type ClassifierService struct {
	proto.UnimplementedClassifierServer
	classifier inference.Classifier
	logger     *zap.Logger
}

// NewClassifierService wraps a classifier.
func NewClassifierService(classifier inference.Classifier, logger *zap.Logger) *ClassifierService {
	return &ClassifierService{classifier: classifier, logger: logger.Named("classifier_service")}
}

func (s *ClassifierService) Classify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := proto.DecodeClassifyRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	pred, err := s.classifier.Classify(ctx, inference.Input{UserID: req.UserID, ContentType: req.ContentType, Data: req.Image})
	if err != nil {
		return nil, s.toStatus("classify", err)
	}
	return encodePrediction(pred)
}

func (s *ClassifierService) ClassifyFeatures(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := proto.DecodeFeaturesRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	pred, err := s.classifier.ClassifyFeatures(ctx, req.UserID, inference.FeaturesFromMap(req.Features))
	if err != nil {
		return nil, s.toStatus("classify_features", err)
	}
	return encodePrediction(pred)
}

func (s *ClassifierService) toStatus(method string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error("classifier failed", zap.String("method", method), zap.Error(err))
		return status.Error(codes.Internal, "classification failed")
	}
}

func encodePrediction(pred *inference.Prediction) (*structpb.Struct, error) {
	out, err := proto.Prediction{
		Label:        pred.Label,
		Confidence:   float64(pred.Confidence),
		ModelVersion: pred.ModelVersion,
	}.Encode()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Server serves the classifier until the context is cancelled.
type Server struct {
	grpc   *grpc.Server
	logger *zap.Logger
}

// New registers the service on a fresh gRPC server.
func New(classifier inference.Classifier, logger *zap.Logger) *Server {
	srv := grpc.NewServer()
	proto.RegisterClassifierServer(srv, NewClassifierService(classifier, logger))
	return &Server{grpc: srv, logger: logger}
}

// Serve blocks until ctx is done or the listener fails, then stops gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("stopping classifier server")
		s.grpc.GracefulStop()
		return <-errCh
	}
}
