package ingest

import (
	"slices"
	"strings"

	accountdomain "github.com/smallbiznis/meterreadings/internal/account/domain"
	"github.com/smallbiznis/meterreadings/internal/reading/validator"
)

// ReferencedAccounts returns the known accounts named in the first field of
// any line of content, sorted and without repeats. The snapshot only needs
// persisted readings of these accounts; rows naming any other account are
// rejected before the duplicate and order checks.
func ReferencedAccounts(content []byte, known accountdomain.IDSet) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64

	rest := strings.TrimPrefix(string(content), utf8BOM)
	for rest != "" {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		field, _, _ := strings.Cut(line, ",")

		id, err := validator.ParseAccountID(field)
		if err != nil || !known.Has(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids
}
