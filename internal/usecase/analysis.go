package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/inference"
	"github.com/Muthahireen/clairvoyant/internal/logging"
	"github.com/Muthahireen/clairvoyant/internal/repository"
)

const (
	statusProcessing = "processing"
	statusFailed     = "failed"

	processingTTL = time.Minute
	resultTTL     = 5 * time.Minute

	defaultListLimit = 20
	maxListLimit     = 100
)

// AnalysisUseCase runs uploads and manual entries through the classifier and
// keeps the results.
type AnalysisUseCase struct {
	repo       AnalysisRepository
	cache      Cache
	classifier inference.Classifier
	storage    ObjectStorage
	publisher  EventPublisher
	observer   AnalysisObserver
	limits     inference.Limits
	logger     *zap.Logger
	now        func() time.Time
	redisRetry
}

// AnalysisOption customises an AnalysisUseCase.
type AnalysisOption func(*AnalysisUseCase)

// WithStorage keeps original uploads in the given object storage.
func WithStorage(storage ObjectStorage) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.storage = storage }
}

// WithPublisher announces completed analyses.
func WithPublisher(publisher EventPublisher) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.publisher = publisher }
}

// WithObserver records business metrics.
func WithObserver(observer AnalysisObserver) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.observer = observer }
}

// WithImageLimits bounds decoded upload dimensions.
func WithImageLimits(limits inference.Limits) AnalysisOption {
	return func(uc *AnalysisUseCase) { uc.limits = limits }
}

// DuplicateReport lists earlier analyses of the same content.
type DuplicateReport struct {
	Analysis   *repository.Analysis
	Duplicates []*repository.Analysis
}

type cachedAnalysis struct {
	RequestID           string    `json:"request_id"`
	UserID              string    `json:"user_id"`
	Source              string    `json:"source"`
	FileName            string    `json:"file_name"`
	ContentType         string    `json:"content_type"`
	Hash                string    `json:"sha256_hash"`
	ObjectKey           string    `json:"object_key"`
	Label               string    `json:"label"`
	Confidence          float32   `json:"confidence"`
	ModelVersion        string    `json:"model_version"`
	ProcessingLatencyMs int64     `json:"processing_latency_ms"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewAnalysisUseCase constructs a new use case instance.
func NewAnalysisUseCase(repo AnalysisRepository, cache Cache, classifier inference.Classifier, logger *zap.Logger, opts ...AnalysisOption) *AnalysisUseCase {
	named := logger.Named("analysis_usecase")
	uc := &AnalysisUseCase{
		repo:       repo,
		cache:      cache,
		classifier: classifier,
		observer:   nopObserver{},
		logger:     named,
		now:        time.Now,
		redisRetry: newRedisRetry(named),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// AnalyzeImage validates an upload, classifies it and records the outcome.
func (uc *AnalysisUseCase) AnalyzeImage(ctx context.Context, userID, fileName string, data []byte) (*repository.Analysis, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithUser(logging.WithOperation(uc.logger, "usecase.analyze_image", requestID), userID)

	prepared, err := inference.Preprocess(userID, fileName, data, uc.limits)
	if err != nil {
		opLogger.Info("upload rejected", zap.Error(err), zap.String("file_name", fileName))
		return nil, err
	}

	if err := uc.markProcessing(ctx, requestID); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	sum := sha256.Sum256(data)
	analysis := &repository.Analysis{
		RequestID:   requestID,
		UserID:      userID,
		Source:      repository.SourceImage,
		FileName:    baseName(fileName),
		ContentType: prepared.ContentType,
		SHA256Hash:  hex.EncodeToString(sum[:]),
	}

	if uc.storage != nil {
		analysis.ObjectKey = objectKey(userID, requestID, prepared.ContentType)
		if err := uc.storage.Put(ctx, analysis.ObjectKey, prepared.ContentType, data); err != nil {
			wrapped := logging.NewOperationError("usecase.store_upload", requestID, err)
			opLogger.Error("failed to store upload", zap.Error(wrapped))
			uc.markFailed(ctx, requestID)
			return nil, wrapped
		}
	}

	start := uc.now()
	pred, err := uc.classifier.Classify(ctx, prepared.Model)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.classify_image", requestID, err)
		opLogger.Error("classification failed", zap.Error(wrapped))
		uc.markFailed(ctx, requestID)
		return nil, wrapped
	}

	if err := uc.record(ctx, opLogger, analysis, pred, uc.now().Sub(start)); err != nil {
		return nil, err
	}
	return analysis, nil
}

// AnalyzeManual classifies measurements entered by hand.
func (uc *AnalysisUseCase) AnalyzeManual(ctx context.Context, userID string, features inference.Features) (*repository.Analysis, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithUser(logging.WithOperation(uc.logger, "usecase.analyze_manual", requestID), userID)

	if err := uc.markProcessing(ctx, requestID); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	start := uc.now()
	pred, err := uc.classifier.ClassifyFeatures(ctx, userID, features)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.classify_features", requestID, err)
		opLogger.Error("classification failed", zap.Error(wrapped))
		uc.markFailed(ctx, requestID)
		return nil, wrapped
	}

	analysis := &repository.Analysis{
		RequestID: requestID,
		UserID:    userID,
		Source:    repository.SourceManual,
	}
	if err := uc.record(ctx, opLogger, analysis, pred, uc.now().Sub(start)); err != nil {
		return nil, err
	}
	return analysis, nil
}

// GetAnalysis retrieves a cached analysis or loads it from persistence.
// Analyses owned by other users are reported as not found.
func (uc *AnalysisUseCase) GetAnalysis(ctx context.Context, userID, requestID string) (*repository.Analysis, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_analysis", requestID)

	cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", func() (string, error) {
		return uc.cache.Get(ctx, cacheKey(requestID))
	})
	switch {
	case err == nil && cached != statusProcessing && cached != statusFailed:
		var payload cachedAnalysis
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			opLogger.Warn("failed to decode cached result", zap.Error(err))
		} else if payload.UserID == userID {
			return payload.toAnalysis(), nil
		}
	case err != nil && !errors.Is(err, redis.Nil):
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	analysis, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return analysis, nil
}

// ListAnalyses returns the user's most recent analyses.
func (uc *AnalysisUseCase) ListAnalyses(ctx context.Context, userID string, limit int) ([]*repository.Analysis, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return uc.repo.ListByUser(ctx, userID, limit)
}

// GetDuplicateReport builds a duplicate detection report for an image analysis.
func (uc *AnalysisUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	analysis, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	report := &DuplicateReport{Analysis: analysis, Duplicates: []*repository.Analysis{}}
	if analysis.SHA256Hash == "" {
		return report, nil
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, userID, analysis.SHA256Hash, analysis.RequestID)
	if err != nil {
		return nil, err
	}
	report.Duplicates = duplicates
	return report, nil
}

func (uc *AnalysisUseCase) record(ctx context.Context, opLogger *zap.Logger, analysis *repository.Analysis, pred *inference.Prediction, latency time.Duration) error {
	analysis.Label = pred.Label
	analysis.Confidence = pred.Confidence
	analysis.ModelVersion = pred.ModelVersion
	analysis.ProcessingLatencyMs = latency.Milliseconds()
	analysis.CreatedAt = uc.now().UTC()

	if err := uc.repo.Save(ctx, analysis); err != nil {
		wrapped := logging.NewOperationError("usecase.save_analysis", analysis.RequestID, err)
		opLogger.Error("failed to persist analysis", zap.Error(wrapped))
		return wrapped
	}

	serialized, err := json.Marshal(newCachedAnalysis(analysis))
	if err != nil {
		opLogger.Error("failed to serialize analysis", zap.Error(err))
		return err
	}
	if err := uc.withRedisRetry(ctx, analysis.RequestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, cacheKey(analysis.RequestID), string(serialized), resultTTL)
	}); err != nil {
		opLogger.Error("failed to cache analysis", zap.Error(err))
		return err
	}

	if uc.publisher != nil {
		event := AnalysisCompleted{
			RequestID:    analysis.RequestID,
			UserID:       analysis.UserID,
			Source:       analysis.Source,
			Label:        analysis.Label,
			Confidence:   analysis.Confidence,
			ModelVersion: analysis.ModelVersion,
			CreatedAt:    analysis.CreatedAt,
		}
		if err := uc.publisher.PublishAnalysisCompleted(ctx, event); err != nil {
			opLogger.Warn("failed to publish analysis event", zap.Error(err))
		}
	}

	uc.observer.ObserveAnalysis(analysis.Source, analysis.Label, latency)
	opLogger.Info("analysis complete",
		zap.String("label", analysis.Label),
		zap.Float32("confidence", analysis.Confidence),
		zap.Int64("latency_ms", analysis.ProcessingLatencyMs),
	)
	return nil
}

func (uc *AnalysisUseCase) markProcessing(ctx context.Context, requestID string) error {
	return uc.withRedisRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey(requestID), statusProcessing, processingTTL)
	})
}

func (uc *AnalysisUseCase) markFailed(ctx context.Context, requestID string) {
	if err := uc.cache.Set(ctx, cacheKey(requestID), statusFailed, processingTTL); err != nil {
		logging.WithOperation(uc.logger, "cache.set.failed", requestID).Warn("failed to mark analysis as failed", zap.Error(err))
	}
}

func baseName(fileName string) string {
	if fileName == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(fileName, "\\", "/"))
}

func cacheKey(requestID string) string {
	return fmt.Sprintf("analysis:%s", requestID)
}

func objectKey(userID, requestID, contentType string) string {
	ext := ".bin"
	switch contentType {
	case inference.ContentTypePDF:
		ext = ".pdf"
	case inference.ContentTypeJPEG:
		ext = ".jpg"
	case inference.ContentTypePNG:
		ext = ".png"
	}
	return fmt.Sprintf("uploads/%s/%s%s", userID, requestID, ext)
}

func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func newCachedAnalysis(a *repository.Analysis) cachedAnalysis {
	return cachedAnalysis{
		RequestID:           a.RequestID,
		UserID:              a.UserID,
		Source:              a.Source,
		FileName:            a.FileName,
		ContentType:         a.ContentType,
		Hash:                a.SHA256Hash,
		ObjectKey:           a.ObjectKey,
		Label:               a.Label,
		Confidence:          a.Confidence,
		ModelVersion:        a.ModelVersion,
		ProcessingLatencyMs: a.ProcessingLatencyMs,
		CreatedAt:           a.CreatedAt,
	}
}

func (c cachedAnalysis) toAnalysis() *repository.Analysis {
	return &repository.Analysis{
		RequestID:           c.RequestID,
		UserID:              c.UserID,
		Source:              c.Source,
		FileName:            c.FileName,
		ContentType:         c.ContentType,
		SHA256Hash:          c.Hash,
		ObjectKey:           c.ObjectKey,
		Label:               c.Label,
		Confidence:          c.Confidence,
		ModelVersion:        c.ModelVersion,
		ProcessingLatencyMs: c.ProcessingLatencyMs,
		CreatedAt:           c.CreatedAt,
	}
}
