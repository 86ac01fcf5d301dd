package keystore

import "time"

// Record is a KeyRecord per spec §3: at most one active record per
// user, enforced by the store's uniqueness constraint on
// (user_id, is_active=true).
type Record struct {
	KeyID             string
	UserID            int64
	PublicKeyHex      string
	SealedPrivateKey  string // "iv_hex:tag_hex:ciphertext_hex"
	KeyVersion        int
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Info is the public-facing view of a Record (no private key
// material, sealed or otherwise).
type Info struct {
	UserID       int64     `json:"user_id"`
	PublicKeyHex string    `json:"public_key"`
	KeyVersion   int       `json:"key_version"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Generated is returned exactly once by Generate — the only
// point at which the plaintext private key is exposed.
type Generated struct {
	PublicKeyHex  string
	PrivateKeyHex string
	KeyVersion    int
}

func (r *Record) toInfo() *Info {
	return &Info{
		UserID:       r.UserID,
		PublicKeyHex: r.PublicKeyHex,
		KeyVersion:   r.KeyVersion,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
