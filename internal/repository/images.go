package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/debemdeboas/folio/internal/db"
	"github.com/debemdeboas/folio/internal/model"
	"github.com/debemdeboas/folio/internal/util"
	"golang.org/x/sync/errgroup"
)

const DefaultImageFilename = "image"

const imageMetaColumns = `id, post_id, hash, filename, mimetype,
	original_width, original_height, normal_width, normal_height, thumbnail_width, thumbnail_height,
	published, created_at`

const imageColumns = imageMetaColumns + `, original, normal, thumbnail, blob_key`

func scanImageMeta(row scanner, extra ...any) (*model.Image, error) {
	var img model.Image
	dest := []any{&img.ID, &img.PostID, &img.Hash, &img.Filename, &img.Mimetype,
		&img.OriginalDims.Width, &img.OriginalDims.Height,
		&img.NormalDims.Width, &img.NormalDims.Height,
		&img.ThumbnailDims.Width, &img.ThumbnailDims.Height,
		&img.Published, &img.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}

// scanImage reads a full row, fetching the variants from the blob store when
// they were offloaded.
func (s *PostStore) scanImage(ctx context.Context, row scanner) (*model.Image, error) {
	var (
		original, normal, thumbnail []byte
		blobKey                     sql.NullString
	)
	img, err := scanImageMeta(row, &original, &normal, &thumbnail, &blobKey)
	if err != nil {
		return nil, err
	}

	if !blobKey.Valid {
		img.Original, img.Normal, img.Thumbnail = original, normal, thumbnail
		return img, nil
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("image %s is offloaded but no blob store is configured", img.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	data := make([][]byte, len(model.ImageVariants))
	for i, v := range model.ImageVariants {
		g.Go(func() error {
			b, err := s.blobs.Get(gctx, variantKey(blobKey.String, v))
			if err != nil {
				return fmt.Errorf("error fetching %s of image %s: %w", v, img.ID, err)
			}
			data[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, v := range model.ImageVariants {
		img.SetVariant(v, data[i])
	}
	return img, nil
}

// imageFilenames maps the post's images to their filenames. The ids are also
// returned in creation order.
func imageFilenames(ctx context.Context, q db.Querier, postID model.PostID) (map[model.ImageID]string, []model.ImageID, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, filename FROM images WHERE post_id = ? ORDER BY created_at, rowid`, postID)
	if err != nil {
		return nil, nil, fmt.Errorf("error querying image filenames: %w", err)
	}
	defer rows.Close()

	names := make(map[model.ImageID]string)
	order := make([]model.ImageID, 0)
	for rows.Next() {
		var (
			id   model.ImageID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, nil, fmt.Errorf("error scanning image filename: %w", err)
		}
		names[id] = name
		order = append(order, id)
	}
	return names, order, rows.Err()
}

func imageBlobKeys(ctx context.Context, q db.Querier, postID model.PostID) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT blob_key FROM images WHERE post_id = ? AND blob_key IS NOT NULL`, postID)
	if err != nil {
		return nil, fmt.Errorf("error querying image blobs: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("error scanning image blob: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// uploadVariants stores the three variants under key. Anything already
// uploaded is removed again when one of them fails.
func (s *PostStore) uploadVariants(ctx context.Context, key string, img *model.Image) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, v := range model.ImageVariants {
		data := img.Variant(v)
		g.Go(func() error {
			if err := s.blobs.Put(gctx, variantKey(key, v), data, img.Mimetype); err != nil {
				return fmt.Errorf("error uploading %s of image %s: %w", v, img.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.deleteBlobs(ctx, []string{key})
		return err
	}
	return nil
}

// InsertImage stores an upload for a post. A filename already used in the
// post gets the smallest free "n-" prefix.
func (s *PostStore) InsertImage(ctx context.Context, upload model.NewImage) (*model.Image, error) {
	img := &model.Image{
		ID:            newImageID(),
		PostID:        upload.PostID,
		Hash:          upload.Hash,
		Filename:      upload.Filename,
		Mimetype:      upload.Mimetype,
		Original:      upload.Original,
		OriginalDims:  upload.OriginalDims,
		Normal:        upload.Normal,
		NormalDims:    upload.NormalDims,
		Thumbnail:     upload.Thumbnail,
		ThumbnailDims: upload.ThumbnailDims,
		CreatedAt:     s.Now(),
	}
	if img.Hash == "" {
		img.Hash = util.ContentHash(upload.Original)
	}
	if img.Filename == "" {
		img.Filename = DefaultImageFilename
	}

	var blobKey sql.NullString
	original, normal, thumbnail := img.Original, img.Normal, img.Thumbnail
	if s.blobs != nil {
		blobKey = sql.NullString{String: string(img.ID), Valid: true}
		if err := s.uploadVariants(ctx, blobKey.String, img); err != nil {
			return nil, err
		}
		original, normal, thumbnail = nil, nil, nil
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getPost(ctx, tx, img.PostID); err != nil {
			return err
		}

		names, _, err := imageFilenames(ctx, tx, img.PostID)
		if err != nil {
			return err
		}
		taken := make(map[string]bool, len(names))
		for _, n := range names {
			taken[n] = true
		}
		img.Filename = util.DisambiguateFilename(img.Filename, func(n string) bool { return taken[n] })

		_, err = tx.ExecContext(ctx,
			`INSERT INTO images (id, post_id, hash, filename, mimetype,
			original, original_width, original_height,
			normal, normal_width, normal_height,
			thumbnail, thumbnail_width, thumbnail_height,
			blob_key, published, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			img.ID, img.PostID, img.Hash, img.Filename, img.Mimetype,
			original, img.OriginalDims.Width, img.OriginalDims.Height,
			normal, img.NormalDims.Width, img.NormalDims.Height,
			thumbnail, img.ThumbnailDims.Width, img.ThumbnailDims.Height,
			blobKey, img.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("error saving image: %w", err)
		}
		return nil
	})
	if err != nil {
		if blobKey.Valid {
			s.deleteBlobs(ctx, []string{blobKey.String})
		}
		return nil, err
	}

	repoLogger.Debug().
		Str("post_id", string(img.PostID)).
		Str("image_id", string(img.ID)).
		Str("filename", img.Filename).
		Bool("offloaded", blobKey.Valid).
		Msg("Image stored")
	return img, nil
}

func (s *PostStore) GetImage(ctx context.Context, id model.ImageID) (*model.Image, error) {
	img, err := s.GetImageOrNil(ctx, id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrImageNotFound, id)
	}
	return img, nil
}

func (s *PostStore) GetImageOrNil(ctx context.Context, id model.ImageID) (*model.Image, error) {
	row := s.db.Get().QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	img, err := s.scanImage(ctx, row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading image %s: %w", id, err)
	}
	return img, nil
}

// GetImagesForPost lists the post's images without their binary variants,
// oldest first.
func (s *PostStore) GetImagesForPost(ctx context.Context, postID model.PostID) ([]model.Image, error) {
	rows, err := s.db.Get().QueryContext(ctx,
		`SELECT `+imageMetaColumns+` FROM images WHERE post_id = ? ORDER BY created_at, rowid`, postID)
	if err != nil {
		return nil, fmt.Errorf("error querying images: %w", err)
	}
	defer rows.Close()

	images := make([]model.Image, 0)
	for rows.Next() {
		img, err := scanImageMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning image: %w", err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

// GetImageOrNilByURLAndFilename resolves a published image through the url of
// its post.
func (s *PostStore) GetImageOrNilByURLAndFilename(ctx context.Context, postURL, filename string) (*model.Image, error) {
	row := s.db.Get().QueryRowContext(ctx,
		`SELECT `+prefixColumns("i.", imageColumns)+` FROM images i
		JOIN posts p ON p.id = i.post_id
		WHERE p.url = ? AND i.filename = ? AND i.published = 1`,
		postURL, filename,
	)
	img, err := s.scanImage(ctx, row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading image %q of %q: %w", filename, postURL, err)
	}
	return img, nil
}

func (s *PostStore) DeleteImage(ctx context.Context, id model.ImageID) error {
	var blobKey sql.NullString
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT blob_key FROM images WHERE id = ?`, id).Scan(&blobKey)
		if isNoRows(err) {
			return fmt.Errorf("%w: %s", model.ErrImageNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("error loading image %s: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id); err != nil {
			return fmt.Errorf("error deleting image %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if blobKey.Valid {
		s.deleteBlobs(ctx, []string{blobKey.String})
	}
	repoLogger.Debug().Str("image_id", string(id)).Msg("Image deleted")
	return nil
}
