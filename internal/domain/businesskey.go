package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// maxKeyDescriptionLen bounds how much of the description participates in
// the fingerprint. Truncation keeps keys stable when a source pads or
// extends merchant text between exports.
const maxKeyDescriptionLen = 50

// BusinessKey computes the content fingerprint used for deduplication.
// It is a pure function of its inputs: the same logical record always maps
// to the same key regardless of which run computed it. MD5 is deliberate,
// this is a fingerprint, not a security boundary.
func BusinessKey(sourceID string, date civil.Date, amount decimal.Decimal, description string) string {
	desc := strings.ToLower(strings.TrimSpace(description))
	if runes := []rune(desc); len(runes) > maxKeyDescriptionLen {
		desc = string(runes[:maxKeyDescriptionLen])
	}
	payload := fmt.Sprintf("%s|%s|%s|%s", sourceID, date.String(), amount.StringFixed(2), desc)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
