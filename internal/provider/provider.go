package provider

import "context"

// NotificationKind tags push events from the wallet provider.
type NotificationKind int

const (
	// NotifyDisconnected: the provider tore down the session on its side.
	NotifyDisconnected NotificationKind = iota
	// NotifyAccountsChanged: the account list changed; an empty list is
	// treated by the manager as an implicit disconnect.
	NotifyAccountsChanged
)

// Notification is one push event from the provider.
type Notification struct {
	Kind     NotificationKind
	Accounts []string
}

// Provider is the wallet capability surface. The wallet-connect handshake
// itself lives in the external bridge; this service only consumes its
// results. Implementations classify their failures with errs kinds
// (UserRejected, ProviderBusy, NoSession) where they can.
type Provider interface {
	// Connect opens a new session, prompting the user. Returns the account
	// list, which the caller must verify is non-empty.
	Connect(ctx context.Context) ([]string, error)
	// ReconnectSession resumes a previously established session without
	// user interaction.
	ReconnectSession(ctx context.Context) ([]string, error)
	// Disconnect tears down the provider-side session. Best effort.
	Disconnect(ctx context.Context) error
	// SignTransaction asks the wallet to sign the msgpack-encoded unsigned
	// transaction with the given account and returns the signed blob.
	SignTransaction(ctx context.Context, txn []byte, signer string) ([]byte, error)
	// Notifications delivers provider push events until Close.
	Notifications() <-chan Notification
	// Close stops the notification stream.
	Close()
}
