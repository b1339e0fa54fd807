//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package memory

import "fmt"

// ReserveMapped falls back to the heap where anonymous mappings are not
// available.
func ReserveMapped(n int) (Region, error) {
	r, err := ReserveHeap(n)
	if err != nil {
		return nil, fmt.Errorf("mapped regions unsupported, heap fallback: %w", err)
	}
	return r, nil
}
