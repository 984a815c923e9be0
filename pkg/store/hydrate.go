package store

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Hydrate loads rooms, friends and friend requests concurrently and returns
// the first failure. Loads that succeed are kept either way.
func Hydrate(ctx context.Context, rooms *Rooms, dir *Directory) error {
	g, ctx := errgroup.WithContext(ctx)
	if rooms != nil {
		g.Go(func() error { return rooms.LoadRooms(ctx) })
	}
	if dir != nil {
		g.Go(func() error { return dir.LoadFriends(ctx) })
		g.Go(func() error { return dir.LoadFriendRequests(ctx) })
	}
	return g.Wait()
}
