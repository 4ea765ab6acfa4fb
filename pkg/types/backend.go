package types

import "time"

// LoginRequest represents a username/password login against the backend
type LoginRequest struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

// LoginResponse carries the session token issued by the backend
type LoginResponse struct {
	Token    string `json:"token"`
	UserName string `json:"user_name,omitempty"`
	User     *User  `json:"user,omitempty"`
}

// WalletVerifyRequest asks the backend whether a wallet belongs to the logged-in user
type WalletVerifyRequest struct {
	Wallet string `json:"wallet"`
}

// WalletVerifyResponse is the backend verdict for a wallet
type WalletVerifyResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// User represents a user record in the backend
type User struct {
	ID            uint64    `json:"id,omitempty"`
	UserName      string    `json:"user_name"`
	Password      string    `json:"password,omitempty"`
	FullName      string    `json:"full_name,omitempty"`
	Email         string    `json:"email,omitempty"`
	Role          string    `json:"role,omitempty"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// PinResponse is the pinning service reply to an upload
type PinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}
