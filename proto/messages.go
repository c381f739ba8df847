package proto

import (
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Field names used in request and response structs.
const (
	FieldUserID       = "user_id"
	FieldContentType  = "content_type"
	FieldImage        = "image_base64"
	FieldFeatures     = "features"
	FieldLabel        = "label"
	FieldConfidence   = "confidence"
	FieldModelVersion = "model_version"
)

// ClassifyRequest carries an image to the classifier.
type ClassifyRequest struct {
	UserID      string
	ContentType string
	Image       []byte
}

// FeaturesRequest carries manual measurements to the classifier.
type FeaturesRequest struct {
	UserID   string
	Features map[string]float64
}

// Prediction is the classifier's answer.
type Prediction struct {
	Label        string
	Confidence   float64
	ModelVersion string
}

// Encode converts the request to its wire form.
func (r ClassifyRequest) Encode() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		FieldUserID:      r.UserID,
		FieldContentType: r.ContentType,
		FieldImage:       base64.StdEncoding.EncodeToString(r.Image),
	})
}

// DecodeClassifyRequest parses a wire request.
func DecodeClassifyRequest(s *structpb.Struct) (ClassifyRequest, error) {
	fields := s.GetFields()
	image, err := base64.StdEncoding.DecodeString(fields[FieldImage].GetStringValue())
	if err != nil {
		return ClassifyRequest{}, fmt.Errorf("decode %s: %w", FieldImage, err)
	}
	if len(image) == 0 {
		return ClassifyRequest{}, errors.New("image is required")
	}
	return ClassifyRequest{
		UserID:      fields[FieldUserID].GetStringValue(),
		ContentType: fields[FieldContentType].GetStringValue(),
		Image:       image,
	}, nil
}

// Encode converts the request to its wire form.
func (r FeaturesRequest) Encode() (*structpb.Struct, error) {
	features := make(map[string]interface{}, len(r.Features))
	for k, v := range r.Features {
		features[k] = v
	}
	return structpb.NewStruct(map[string]interface{}{
		FieldUserID:   r.UserID,
		FieldFeatures: features,
	})
}

// DecodeFeaturesRequest parses a wire request.
func DecodeFeaturesRequest(s *structpb.Struct) (FeaturesRequest, error) {
	fields := s.GetFields()
	raw := fields[FieldFeatures].GetStructValue()
	if raw == nil {
		return FeaturesRequest{}, errors.New("features are required")
	}
	features := make(map[string]float64, len(raw.GetFields()))
	for k, v := range raw.GetFields() {
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok {
			return FeaturesRequest{}, fmt.Errorf("feature %s is not a number", k)
		}
		features[k] = v.GetNumberValue()
	}
	return FeaturesRequest{UserID: fields[FieldUserID].GetStringValue(), Features: features}, nil
}

// Encode converts the prediction to its wire form.
func (p Prediction) Encode() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		FieldLabel:        p.Label,
		FieldConfidence:   p.Confidence,
		FieldModelVersion: p.ModelVersion,
	})
}

// DecodePrediction parses a wire prediction.
func DecodePrediction(s *structpb.Struct) (Prediction, error) {
	fields := s.GetFields()
	label := fields[FieldLabel].GetStringValue()
	if label == "" {
		return Prediction{}, errors.New("prediction has no label")
	}
	confidence := fields[FieldConfidence].GetNumberValue()
	if confidence < 0 || confidence > 1 {
		return Prediction{}, fmt.Errorf("confidence %v out of range", confidence)
	}
	return Prediction{
		Label:        label,
		Confidence:   confidence,
		ModelVersion: fields[FieldModelVersion].GetStringValue(),
	}, nil
}
