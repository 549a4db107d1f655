package cache

import (
	"fmt"
	"strings"
)

// Key identifies one cached product-detail response.
type Key struct {
	// ProductNumber is the manufacturer or DigiKey part number.
	ProductNumber string

	// ManufacturerID narrows the lookup (0 when unfiltered).
	ManufacturerID int
}

// String generates a deterministic cache key string.
// Format: digikey:details:<product-number>:mid=<manufacturer-id>
//
// Part numbers can contain colons and spaces; they are normalized so a key
// never collides with the field separators.
func (k Key) String() string {
	pn := strings.ReplaceAll(k.ProductNumber, ":", "_")
	pn = strings.ReplaceAll(pn, " ", "_")
	return fmt.Sprintf("digikey:details:%s:mid=%d", pn, k.ManufacturerID)
}
