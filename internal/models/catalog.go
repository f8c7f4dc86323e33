package models

import "github.com/shopspring/decimal"

// SellerEntity is a producer profile owned by an account.
type SellerEntity struct {
	ID      string `json:"id" db:"id"`
	OwnerID string `json:"owner_id" db:"owner_id"`
	Name    string `json:"name" db:"name"`
}

// Product is a listing offered by a seller entity.
type Product struct {
	ID             string          `json:"id" db:"id"`
	SellerEntityID string          `json:"seller_entity_id" db:"seller_entity_id"`
	Name           string          `json:"name" db:"name"`
	Price          decimal.Decimal `json:"price" db:"price"`
	Unit           string          `json:"unit" db:"unit"`
	Available      bool            `json:"available" db:"available"`
}
