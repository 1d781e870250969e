package products

type CreateProductRequest struct {
	Barcode    string  `json:"barcode" validate:"required,max=64"`
	Name       string  `json:"name" validate:"required,max=200"`
	CategoryID int64   `json:"category_id" validate:"required,gt=0"`
	SupplierID int64   `json:"supplier_id,omitempty"`
	MinPrice   float64 `json:"min_price" validate:"gte=0"`
	MaxPrice   float64 `json:"max_price" validate:"gte=0"`
}

type UpdateProductRequest struct {
	Name       *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	CategoryID *int64   `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	SupplierID *int64   `json:"supplier_id,omitempty"`
	MinPrice   *float64 `json:"min_price,omitempty" validate:"omitempty,gte=0"`
	MaxPrice   *float64 `json:"max_price,omitempty" validate:"omitempty,gte=0"`
	IsActive   *bool    `json:"is_active,omitempty"`
}

type ListProductsRequest struct {
	CategoryID int64
	Search     string
	IsActive   *bool
	LowStock   *float64
	Limit      int
	Offset     int
}
