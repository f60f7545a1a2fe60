package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"
)

const bundleFile = "index.gob.gz"

// BundleStore keeps each index as a compressed chromem export under
// {dir}/{id}/index.gob.gz.
type BundleStore struct {
	dir string
}

func NewBundleStore(dir string) *BundleStore {
	return &BundleStore{dir: dir}
}

func (b *BundleStore) path(id string) string {
	return filepath.Join(b.dir, id, bundleFile)
}

func (b *BundleStore) Save(ctx context.Context, id string, idx *Index) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(b.dir, id), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := idx.db.ExportToFile(b.path(id), true, ""); err != nil {
		return fmt.Errorf("export index %s: %w", id, err)
	}
	return nil
}

func (b *BundleStore) Load(ctx context.Context, id string, embed chromem.EmbeddingFunc) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := b.path(id)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("index %s: %w", id, ErrIndexNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("stat index %s: %w", id, err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, ""); err != nil {
		return nil, fmt.Errorf("import index %s: %w", id, err)
	}

	// Re-acquire collection reference after import.
	col := db.GetCollection(collectionName, embed)
	if col == nil {
		return nil, fmt.Errorf("collection %q not found in index %s", collectionName, id)
	}
	return &Index{db: db, collection: col}, nil
}

func (b *BundleStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(b.dir, id)); err != nil {
		return fmt.Errorf("delete index %s: %w", id, err)
	}
	return nil
}
