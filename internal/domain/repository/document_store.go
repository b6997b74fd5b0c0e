package repository

import (
	"context"
	"io"
)

// DocumentStore almacén de blobs para los documentos de factura de las compras.
// No participa en las transacciones de la base relacional.
type DocumentStore interface {
	Put(ctx context.Context, filename, contentType string, r io.Reader) (ref string, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}
