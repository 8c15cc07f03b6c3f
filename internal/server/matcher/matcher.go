// Package matcher locates private vaults from partial client credentials:
// a fragment of the client's phone number or of the studio (owner) name.
package matcher

import (
	"strings"
	"unicode"

	"github.com/dmitrijs2005/vaultgate/internal/common"
	"github.com/dmitrijs2005/vaultgate/internal/server/models"
)

const (
	// MinPhoneDigits is the shortest phone fragment that is matched.
	MinPhoneDigits = 4
	// MinStudioChars is the shortest studio fragment that is matched.
	MinStudioChars = 3
)

// Query holds the optional search fragments. Either may be empty.
type Query struct {
	Phone  string `json:"phone"`
	Studio string `json:"studio"`
}

// Find returns the first vault, in the given order, that matches q.
// Callers pass vaults in registry order (creation time, then id), which
// makes the choice stable when several vaults match.
//
// Only active private vaults are candidates. Returns common.ErrNotFound when
// nothing matches or both fragments are below their length floors.
func Find(vaults []*models.Vault, q Query) (*models.Vault, error) {
	phone := NormalizeDigits(q.Phone)
	usePhone := len(phone) >= MinPhoneDigits

	studio := strings.ToLower(strings.TrimSpace(q.Studio))
	useStudio := len([]rune(studio)) >= MinStudioChars

	if !usePhone && !useStudio {
		return nil, common.ErrNotFound
	}

	for _, v := range vaults {
		if v == nil || !v.IsPrivate() || !v.IsActive() {
			continue
		}
		if usePhone && strings.Contains(NormalizeDigits(v.ClientPhone), phone) {
			return v, nil
		}
		if useStudio && strings.Contains(strings.ToLower(v.OwnerName), studio) {
			return v, nil
		}
	}
	return nil, common.ErrNotFound
}

// NormalizeDigits strips everything except ASCII digits.
func NormalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
