package mailbox

import "context"

// Client is the narrow mailbox surface required by mailrelay.
type Client interface {
	Search(ctx context.Context, q Query) ([]Thread, error)
}
