package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implementa repository.DocumentStore sobre un bucket GridFS.
// La referencia de un documento es el ObjectID en hexadecimal.
type DocumentStore struct {
	bucket *gridfs.Bucket
}

// NewDocumentStore abre (o crea al primer uso) el bucket indicado.
func NewDocumentStore(db *mongo.Database, bucketName string) (*DocumentStore, error) {
	if bucketName == "" {
		bucketName = "invoices"
	}
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("mongo: abrir bucket %s: %w", bucketName, err)
	}
	return &DocumentStore{bucket: bucket}, nil
}

func (s *DocumentStore) Put(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	if dl, ok := ctx.Deadline(); ok {
		if err := s.bucket.SetWriteDeadline(dl); err != nil {
			return "", err
		}
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	id, err := s.bucket.UploadFromStream(filename, r, opts)
	if err != nil {
		return "", fmt.Errorf("mongo: subir %s: %w", filename, err)
	}
	return id.Hex(), nil
}

func (s *DocumentStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	id, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := s.bucket.SetReadDeadline(dl); err != nil {
			return nil, err
		}
	}
	stream, err := s.bucket.OpenDownloadStream(id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: abrir %s: %w", ref, err)
	}
	return stream, nil
}

func (s *DocumentStore) Delete(ctx context.Context, ref string) error {
	id, err := parseRef(ref)
	if err != nil {
		return err
	}
	err = s.bucket.DeleteContext(ctx, id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mongo: eliminar %s: %w", ref, err)
	}
	return nil
}

func parseRef(ref string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("referencia de documento inválida %q: %w", ref, domain.ErrNotFound)
	}
	return id, nil
}
