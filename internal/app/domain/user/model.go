package user

import "time"

// User owns trading accounts. Exchange credentials live on the accounts, not
// the user itself.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
