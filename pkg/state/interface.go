package state

// Registry tracks live connections per user. A user is online exactly while
// they hold at least one registered connection.
type Registry interface {
	// Connect registers conn under userID and reports whether this was the
	// user's first live connection. Registering the same connection twice is a no-op.
	Connect(userID string, conn *Connection) (cameOnline bool)
	// TryConnect is Connect that refuses conn when the user already holds
	// limit connections. A limit of zero or less disables the check.
	TryConnect(userID string, conn *Connection, limit int) (cameOnline, admitted bool)
	// Disconnect removes conn and reports whether it was the user's last live
	// connection. Unknown or already removed connections return false.
	Disconnect(userID string, conn *Connection) (wentOffline bool)
	IsOnline(userID string) bool
	// Send writes payload to every live connection of userID and returns how
	// many accepted it. Connections that fail are evicted and closed.
	Send(userID string, payload []byte) (delivered int)

	ConnectionCount(userID string) int
	OldestConnection(userID string) (*Connection, bool)
	OnlineUsers() []string
	Connections() []*Connection

	// SetOfflineHandler registers a callback for users that go offline
	// because a failed send evicted their last connection.
	SetOfflineHandler(handler func(userID string))
}
