package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const coverQuality = 80

var ErrInvalidImage = errors.New("invalid image")

// ObjectPutter is the subset of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client with static credentials. Empty keys fall
// back to the default AWS credential chain.
func NewS3Client(ctx context.Context, region, accessKeyID, secretAccessKey string) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// CoverStore stores announcement cover images as normalized JPEGs.
type CoverStore struct {
	client ObjectPutter
	bucket string
	maxDim int
	logger *zap.Logger
}

func NewCoverStore(client ObjectPutter, bucket string, maxDim int, logger *zap.Logger) *CoverStore {
	return &CoverStore{client: client, bucket: bucket, maxDim: maxDim, logger: logger}
}

// CoverKey is the object key for an announcement's cover.
func CoverKey(announcementID uuid.UUID) string {
	return "covers/" + announcementID.String() + ".jpg"
}

// UploadCover normalizes data and uploads it, returning the object key.
func (s *CoverStore) UploadCover(ctx context.Context, announcementID uuid.UUID, data []byte) (string, error) {
	normalized, err := NormalizeCover(data, s.maxDim)
	if err != nil {
		return "", err
	}

	key := CoverKey(announcementID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(normalized),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("upload cover %s: %w", key, err)
	}

	s.logger.Info("cover uploaded",
		zap.String("key", key),
		zap.Int("input_bytes", len(data)),
		zap.Int("output_bytes", len(normalized)),
	)
	return key, nil
}

// NormalizeCover decodes any supported image, fits it inside maxDim on both
// sides and re-encodes it as JPEG.
func NormalizeCover(data []byte, maxDim int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := img.Bounds()
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(coverQuality)); err != nil {
		return nil, fmt.Errorf("encode cover: %w", err)
	}
	return buf.Bytes(), nil
}
