package model

import "time"

// Role values stored in users.role and carried in the access token.
const (
    RoleCustomer = "CUSTOMER"
    RoleAdmin    = "ADMIN"
)

// User is an account of the built-in identity provider.  AccountKey is a
// 64-hex secret minted at registration; it is empty for legacy rows that
// predate key provisioning.
type User struct {
    ID           uint64
    Email        string
    PasswordHash string
    Role         string
    AccountKey   string
    IsActive     bool
    CreatedAt    time.Time
    UpdatedAt    time.Time
}
