package domain

// Principal is the authenticated identity for one request. Authorities are
// a snapshot taken at authentication time; claims minted from a principal
// reflect the roles as they were then, not as they may later become.
type Principal struct {
	UserID      int64
	Email       string
	DisplayName string
	Authorities []string
}
