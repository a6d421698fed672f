package provider

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// EnrichedListing bundles a property record with its related sub-resources.
// A failed sub-resource lookup leaves the corresponding slice empty; it
// never fails the listing or the batch.
type EnrichedListing struct {
	Property   PropertyRecord
	Rooms      []RoomRecord
	Media      []MediaRecord
	OpenHouses []OpenHouseRecord
}

// Enricher fans out related-resource lookups. All three sub-resource
// queries for a listing run concurrently and all listings within a batch
// run concurrently; batches themselves run sequentially to bound peak
// concurrent connections upstream.
type Enricher struct {
	client    *Client
	batchSize int
}

func NewEnricher(client *Client, batchSize int) *Enricher {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Enricher{client: client, batchSize: batchSize}
}

func (e *Enricher) EnrichAll(ctx context.Context, records []PropertyRecord) []EnrichedListing {
	out := make([]EnrichedListing, len(records))

	for start := 0; start < len(records); start += e.batchSize {
		end := start + e.batchSize
		if end > len(records) {
			end = len(records)
		}
		e.enrichBatch(ctx, records[start:end], out[start:end])

		if ctx.Err() != nil {
			// Cancelled between batches; remaining listings stay unenriched.
			for i := end; i < len(records); i++ {
				out[i] = EnrichedListing{Property: records[i]}
			}
			break
		}
	}

	return out
}

func (e *Enricher) enrichBatch(ctx context.Context, records []PropertyRecord, out []EnrichedListing) {
	g, gctx := errgroup.WithContext(ctx)

	for i := range records {
		i := i
		out[i] = EnrichedListing{Property: records[i]}
		g.Go(func() error {
			e.enrichOne(gctx, &out[i])
			return nil
		})
	}

	g.Wait()
}

func (e *Enricher) enrichOne(ctx context.Context, listing *EnrichedListing) {
	key := listing.Property.ListingKey

	var inner errgroup.Group
	inner.Go(func() error {
		rooms, err := e.client.FetchRooms(ctx, key)
		if err != nil {
			log.Printf("Warning: rooms lookup failed for %s: %v", key, err)
			return nil
		}
		listing.Rooms = rooms
		return nil
	})
	inner.Go(func() error {
		media, err := e.client.FetchMedia(ctx, key)
		if err != nil {
			log.Printf("Warning: media lookup failed for %s: %v", key, err)
			return nil
		}
		listing.Media = media
		return nil
	})
	inner.Go(func() error {
		openHouses, err := e.client.FetchOpenHouses(ctx, key)
		if err != nil {
			log.Printf("Warning: open house lookup failed for %s: %v", key, err)
			return nil
		}
		listing.OpenHouses = openHouses
		return nil
	})
	inner.Wait()
}
