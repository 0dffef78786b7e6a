package domain

// BookFeed is the live top-of-book source for exit decisions. Latest never
// blocks: it returns the last cached snapshot, or ok=false before the first
// update for a token arrives.
type BookFeed interface {
	Subscribe(tokenIDs ...string)
	Unsubscribe(tokenIDs ...string)
	Latest(tokenID string) (OrderbookSnapshot, bool)
	OnUpdate(fn func(OrderbookSnapshot))
	Degraded() bool
}
