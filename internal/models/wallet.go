package models

// Wallet binds an owner public key to its signing secret. The secret is
// either base58 or a comma-separated 64-byte array; see settlement.ParseSigningKey.
// Wallet rows are reference data and are never mutated by the bot.
type Wallet struct {
	SolPublicKey  string `gorm:"primaryKey" json:"solPublicKey"`
	SolPrivateKey string `json:"-"`
}
