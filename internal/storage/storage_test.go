package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeS3 struct {
	objects   map[string][]byte
	types     map[string]string
	buckets   map[string]bool
	putErr    error
	createErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}, buckets: map[string]bool{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = body
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.buckets[aws.ToString(in.Bucket)] {
		return nil, errors.New("not found")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func TestS3StorePut(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, "uploads", zap.NewNop())

	require.NoError(t, store.Put(context.Background(), "uploads/u1/r1.png", "image/png", []byte("png-bytes")))
	assert.Equal(t, []byte("png-bytes"), fake.objects["uploads/uploads/u1/r1.png"])
	assert.Equal(t, "image/png", fake.types["uploads/uploads/u1/r1.png"])

	fake.putErr = errors.New("access denied")
	err := store.Put(context.Background(), "k", "image/png", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fake.putErr)
}

func TestS3StoreEnsureBucket(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, "uploads", zap.NewNop())

	require.NoError(t, store.EnsureBucket(context.Background()))
	assert.True(t, fake.buckets["uploads"])

	fake.createErr = errors.New("should not be called")
	assert.NoError(t, store.EnsureBucket(context.Background()))
}
