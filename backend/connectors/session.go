package connectors

import "time"

// Session holds the credentials returned by a connector login along with
// their expiry. Sessions are always checked before use and refreshed when
// stale, they are never cached beyond their lifetime.
type Session struct {
	Token  string
	Expiry time.Time
}

func (s *Session) Valid() bool {
	return s.Token != "" && time.Now().Before(s.Expiry)
}
