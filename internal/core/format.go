package core

import "strconv"

// Ftoa renders a float with the shortest representation that round-trips,
// using '.' as the decimal separator. All table output goes through it so
// identical runs produce identical bytes.
func Ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
