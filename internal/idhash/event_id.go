// Package idhash derives deterministic identifiers for feed-delivered
// records. Identical events always hash to the same ID, so reconnect
// redeliveries dedupe at the storage layer instead of accumulating.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// ComputeEventID computes a deterministic listing event_id using SHA256.
// Formula: SHA256(marketplace|brand|reference|listing_id|status|observed_at_unix|price)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	marketplace string,
	brand string,
	reference string,
	listingID string,
	status domain.ListingStatus,
	observedAt time.Time,
	price *float64,
) string {
	priceStr := ""
	if price != nil {
		priceStr = strconv.FormatFloat(*price, 'f', -1, 64)
	}

	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%s",
		marketplace,
		brand,
		reference,
		listingID,
		string(status),
		observedAt.Unix(),
		priceStr,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
