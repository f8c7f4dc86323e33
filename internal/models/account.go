package models

// Role is the mode an account is currently acting in.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Visibility controls who may see an account's profile and listings.
type Visibility string

const (
	VisibilityOpen       Visibility = "open"
	VisibilityRestricted Visibility = "restricted"
)

// Account is a marketplace user. Balance is held in minor units
// (100 per token) and only ever changes through the token ledger.
type Account struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	Email      string     `json:"email" db:"email"`
	Phone      string     `json:"phone,omitempty" db:"phone"`
	Zone       string     `json:"zone,omitempty" db:"zone"`
	ActiveRole Role       `json:"active_role" db:"active_role"`
	Active     bool       `json:"active" db:"active"`
	Balance    int64      `json:"balance" db:"balance"`
	Reputation int        `json:"reputation" db:"reputation"`
	Visibility Visibility `json:"visibility" db:"visibility"`
}

// ProfileComplete reports whether the fields that earn the profile bonus are filled in.
func (a *Account) ProfileComplete() bool {
	return a.Name != "" && a.Phone != "" && a.Zone != ""
}
