package domain

// User is the session user record kept under the session marker key. The
// phone number doubles as the key that scopes persisted orders.
type User struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}
