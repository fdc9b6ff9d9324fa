package postgres

import (
	"context"

	"github.com/zagip/zagip-game/internal/domain"
)

const auctionColumns = `a.id, a.nft_id, a.seller_id, a.buyer_id, a.price, a.status, a.created_at, a.closed_at`

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		a      domain.Auction
		status string
	)
	if err := row.Scan(&a.ID, &a.ItemID, &a.SellerID, &a.BuyerID, &a.Price, &status, &a.CreatedAt, &a.ClosedAt); err != nil {
		return nil, mapErr(err)
	}
	a.Status = domain.AuctionStatus(status)
	return &a, nil
}

func (t *pgTx) CreateAuction(ctx context.Context, a *domain.Auction) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO auctions (nft_id, seller_id, price, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		a.ItemID, a.SellerID, a.Price, string(a.Status),
	).Scan(&a.ID, &a.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) LockAuction(ctx context.Context, id int64) (*domain.Auction, error) {
	return scanAuction(t.tx.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions a WHERE a.id = $1 FOR UPDATE`, id))
}

func (t *pgTx) ActiveAuctionForItem(ctx context.Context, itemID int64) (*domain.Auction, error) {
	return scanAuction(t.tx.QueryRow(ctx,
		`SELECT `+auctionColumns+` FROM auctions a WHERE a.nft_id = $1 AND a.status = 'ACTIVE'`, itemID))
}

func (t *pgTx) UpdateAuction(ctx context.Context, a *domain.Auction) error {
	return t.execOne(ctx,
		`UPDATE auctions SET status = $2, buyer_id = $3, closed_at = $4 WHERE id = $1`,
		a.ID, string(a.Status), a.BuyerID, a.ClosedAt)
}

func (t *pgTx) ActiveAuctions(ctx context.Context) ([]*domain.AuctionListing, error) {
	return t.listings(ctx, `a.status = 'ACTIVE'`, nil)
}

func (t *pgTx) AuctionsBySeller(ctx context.Context, sellerID int64) ([]*domain.AuctionListing, error) {
	return t.listings(ctx, `a.seller_id = $1`, []any{sellerID})
}

func (t *pgTx) listings(ctx context.Context, where string, args []any) ([]*domain.AuctionListing, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+auctionColumns+`, `+itemColumns+`, COALESCE(u.username, '')
		FROM auctions a
		JOIN nfts n ON n.id = a.nft_id
		LEFT JOIN users u ON u.id = a.seller_id
		WHERE `+where+`
		ORDER BY a.id DESC`, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*domain.AuctionListing
	for rows.Next() {
		var (
			l      domain.AuctionListing
			status string
		)
		dest := []any{&l.ID, &l.ItemID, &l.SellerID, &l.BuyerID, &l.Price, &status, &l.CreatedAt, &l.ClosedAt}
		dest = append(dest, itemDest(&l.Item)...)
		dest = append(dest, &l.SellerUsername)
		if err := rows.Scan(dest...); err != nil {
			return nil, mapErr(err)
		}
		l.Status = domain.AuctionStatus(status)
		out = append(out, &l)
	}
	return out, mapErr(rows.Err())
}
