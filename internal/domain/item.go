package domain

import "time"

// Item is a collectible ("NFT"). A nil OwnerID means the item is on sale in the shop.
type Item struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Price          int64     `json:"price"`
	GradientColor1 string    `json:"gradientColor1"`
	GradientColor2 string    `json:"gradientColor2"`
	ImageURL       string    `json:"imageUrl"`
	OwnerID        *int64    `json:"ownerId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (i *Item) OwnedBy(userID int64) bool {
	return i.OwnerID != nil && *i.OwnerID == userID
}

func (i *Item) Clone() *Item {
	c := *i
	if i.OwnerID != nil {
		v := *i.OwnerID
		c.OwnerID = &v
	}
	return &c
}

// ItemDefinition is the shared metadata for a bulk mint.
type ItemDefinition struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Price          int64  `json:"price"`
	GradientColor1 string `json:"gradientColor1"`
	GradientColor2 string `json:"gradientColor2"`
	ImageURL       string `json:"imageUrl"`
}

func (d ItemDefinition) NewItem(now time.Time) *Item {
	return &Item{
		Name:           d.Name,
		Description:    d.Description,
		Price:          d.Price,
		GradientColor1: d.GradientColor1,
		GradientColor2: d.GradientColor2,
		ImageURL:       d.ImageURL,
		CreatedAt:      now,
	}
}

type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "ACTIVE"
	AuctionSold      AuctionStatus = "SOLD"
	AuctionCancelled AuctionStatus = "CANCELLED"
)

// Auction references an item and its seller by id; it never owns either.
type Auction struct {
	ID        int64         `json:"id"`
	ItemID    int64         `json:"nftId"`
	SellerID  int64         `json:"sellerId"`
	BuyerID   *int64        `json:"buyerId,omitempty"`
	Price     int64         `json:"price"`
	Status    AuctionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	ClosedAt  *time.Time    `json:"closedAt,omitempty"`
}

func (a *Auction) Active() bool {
	return a.Status == AuctionActive
}

// Close moves an active auction to a terminal status.
func (a *Auction) Close(status AuctionStatus, buyerID *int64, at time.Time) {
	a.Status = status
	a.BuyerID = buyerID
	a.ClosedAt = &at
}

func (a *Auction) Clone() *Auction {
	c := *a
	if a.BuyerID != nil {
		v := *a.BuyerID
		c.BuyerID = &v
	}
	if a.ClosedAt != nil {
		v := *a.ClosedAt
		c.ClosedAt = &v
	}
	return &c
}

// AuctionListing is an auction joined with its item and seller for display.
type AuctionListing struct {
	Auction
	Item           Item   `json:"nft"`
	SellerUsername string `json:"sellerUsername,omitempty"`
}
