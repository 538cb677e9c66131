package identity

import "fmt"

// Kind distinguishes customer principals from staff principals.
type Kind int

const (
	KindNone Kind = iota
	KindStaff
	KindCustomer
)

func (k Kind) String() string {
	switch k {
	case KindStaff:
		return "staff"
	case KindCustomer:
		return "customer"
	default:
		return "none"
	}
}

// Principal is the resolved caller of a request.
type Principal struct {
	Kind Kind
	ID   uint
	Role Role
}

// Staff builds a staff principal.
func Staff(id uint, role Role) Principal {
	return Principal{Kind: KindStaff, ID: id, Role: role}
}

// Customer builds a customer principal.
func Customer(id uint) Principal {
	return Principal{Kind: KindCustomer, ID: id, Role: RoleCustomer}
}

func (p Principal) IsZero() bool {
	return p.Kind == KindNone || p.ID == 0
}

func (p Principal) IsCustomer() bool {
	return p.Kind == KindCustomer && p.ID != 0
}

func (p Principal) IsStaff() bool {
	return p.Kind == KindStaff && p.ID != 0
}

func (p Principal) String() string {
	return fmt.Sprintf("%s:%d(%s)", p.Kind, p.ID, p.Role)
}
