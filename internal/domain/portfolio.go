package domain

// Portfolio groups wallet addresses tracked for one user.
type Portfolio struct {
	ID        string // uuid
	UserID    string
	Addresses map[Network]string // wallet address per network
	CreatedAt int64              // Unix timestamp in milliseconds
}

// Clone returns a deep copy of the portfolio.
func (p *Portfolio) Clone() *Portfolio {
	c := *p
	c.Addresses = make(map[Network]string, len(p.Addresses))
	for k, v := range p.Addresses {
		c.Addresses[k] = v
	}
	return &c
}
