package repository

type PremiumEntitlement struct {
	PaymentID string
	OrderID   string
	Expiry    string
	CreatedAt int64
}

type Conversion struct {
	ID        string
	IP        string
	Kind      string
	UploadKey string
	OutputKey string
	CreatedAt int64
}
