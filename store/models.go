package store

// User is a stored user record.
type User struct {
	// ID is assigned by the store and never supplied by clients.
	ID int64 `db:"id" json:"id"`

	// Name is the display name. Required.
	Name string `db:"name" json:"name"`

	// Email is the contact address. Required, format is not checked.
	Email string `db:"email" json:"email"`
}

// Clone returns a copy of the user so callers cannot mutate stored state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
