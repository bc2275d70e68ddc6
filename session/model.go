package session

// Session binds a session id to its owner and to the jti of the only refresh
// token currently allowed to rotate it.
type Session struct {
	SessionID  string
	UserID     string
	RefreshJTI string
	CreatedAt  int64
}
