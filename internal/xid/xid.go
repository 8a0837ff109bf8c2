// Package xid generates prefixed record ids ("drug-", "batch-", "sale-",
// "cust-", "audit-"). Ids embed a nanosecond timestamp, so they sort
// roughly by creation time, followed by random bytes for uniqueness.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const randomLen = 8

// New returns an id of the form "<prefix>-<unixnano>-<hex>".
func New(prefix string) string {
	buf := make([]byte, randomLen)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}
