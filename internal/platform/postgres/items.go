package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zagip/zagip-game/internal/domain"
)

const itemColumns = `n.id, n.name, n.description, n.price, n.gradient_color1, n.gradient_color2,
	n.image_url, n.owner_id, n.created_at`

func itemDest(it *domain.Item) []any {
	return []any{&it.ID, &it.Name, &it.Description, &it.Price, &it.GradientColor1, &it.GradientColor2,
		&it.ImageURL, &it.OwnerID, &it.CreatedAt}
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var it domain.Item
	if err := row.Scan(itemDest(&it)...); err != nil {
		return nil, mapErr(err)
	}
	return &it, nil
}

func collectItems(rows pgx.Rows) ([]*domain.Item, error) {
	defer rows.Close()
	var out []*domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, mapErr(rows.Err())
}

func (t *pgTx) ItemByID(ctx context.Context, id int64) (*domain.Item, error) {
	return scanItem(t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM nfts n WHERE n.id = $1`, id))
}

func (t *pgTx) LockItem(ctx context.Context, id int64) (*domain.Item, error) {
	return scanItem(t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM nfts n WHERE n.id = $1 FOR UPDATE`, id))
}

func (t *pgTx) CreateItems(ctx context.Context, items []*domain.Item) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO nfts (name, description, price, gradient_color1, gradient_color2, image_url, owner_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			it.Name, it.Description, it.Price, it.GradientColor1, it.GradientColor2, it.ImageURL, it.OwnerID)
	}

	br := t.tx.SendBatch(ctx, batch)
	for i, it := range items {
		if err := br.QueryRow().Scan(&it.ID, &it.CreatedAt); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert nft %d of %d: %w", i+1, len(items), mapErr(err))
		}
	}
	return mapErr(br.Close())
}

func (t *pgTx) UpdateItemOwner(ctx context.Context, itemID int64, ownerID *int64) error {
	return t.execOne(ctx, `UPDATE nfts SET owner_id = $2 WHERE id = $1`, itemID, ownerID)
}

func (t *pgTx) DeleteItem(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM auctions WHERE nft_id = $1`, id); err != nil {
		return mapErr(err)
	}
	return t.execOne(ctx, `DELETE FROM nfts WHERE id = $1`, id)
}

func (t *pgTx) CountItemsWithImage(ctx context.Context, imageURL string) (int, error) {
	return t.count(ctx, `SELECT COUNT(*) FROM nfts WHERE image_url = $1`, imageURL)
}

func (t *pgTx) UnownedItems(ctx context.Context) ([]*domain.Item, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+itemColumns+` FROM nfts n WHERE n.owner_id IS NULL ORDER BY n.id`)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectItems(rows)
}

func (t *pgTx) ItemsOwnedBy(ctx context.Context, userID int64, excludeListed bool) ([]*domain.Item, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+itemColumns+`
		FROM nfts n
		WHERE n.owner_id = $1
			AND (NOT $2 OR NOT EXISTS (
				SELECT 1 FROM auctions a WHERE a.nft_id = n.id AND a.status = 'ACTIVE'))
		ORDER BY n.id`, userID, excludeListed)
	if err != nil {
		return nil, mapErr(err)
	}
	return collectItems(rows)
}
