package session

import (
	"context"
	"sync"
)

// Connector is the persistent connection manager fed by the session. Its
// reconnection policy is its own business.
type Connector interface {
	Connect(ctx context.Context, userID string, credential Credential) error
	Disconnect(ctx context.Context) error
}

// CredentialSource exposes the credential of the active session
type CredentialSource interface {
	StatusSource
	Credential() (Credential, bool)
}

// BindRealtime opens conn when the session resolves to a user and closes it
// when the session ends. A refresh that keeps the same user does not
// reconnect. The returned function unsubscribes and closes any open
// connection.
func BindRealtime(ctx context.Context, src CredentialSource, conn Connector, logger Logger) (stop func()) {
	if logger == nil {
		logger = defLogger{}
	}

	var mu sync.Mutex
	connectedUser := ""

	disconnect := func() {
		if connectedUser == "" {
			return
		}
		if err := conn.Disconnect(ctx); err != nil {
			logger.Warn("realtime disconnect for user %s failed: %v", connectedUser, err)
		}
		connectedUser = ""
	}

	unsubscribe := src.Subscribe(func(status Status) {
		mu.Lock()
		defer mu.Unlock()

		switch status.Kind() {
		case StatusAuthenticated:
			user, _ := status.User()
			if connectedUser == user.ID {
				return
			}
			disconnect()

			credential, ok := src.Credential()
			if !ok {
				logger.Warn("realtime: authenticated status without credential for user %s", user.ID)
				return
			}
			if err := conn.Connect(ctx, user.ID, credential); err != nil {
				logger.Error("realtime connect for user %s failed: %v", user.ID, err)
				return
			}
			connectedUser = user.ID
		case StatusUnauthenticated:
			disconnect()
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			mu.Lock()
			defer mu.Unlock()
			disconnect()
		})
	}
}
