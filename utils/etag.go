package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag builds a weak validator from a document id and the
// modification times its representation depends on. count distinguishes lists
// whose newest entry did not change but whose length did. A zero stamp stands
// for a missing related document.
func GenerateETag(id primitive.ObjectID, count int, stamps ...time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d", id.Hex(), count)
	for _, ts := range stamps {
		if ts.IsZero() {
			b.WriteString(":-")
			continue
		}
		fmt.Fprintf(&b, ":%d", ts.UnixNano())
	}
	sum := sha1.Sum([]byte(b.String()))
	return `W/"` + hex.EncodeToString(sum[:]) + `"`
}
