package cache

import "strings"

// Namespaced keys. Identical inputs always map to the same key.

func CountryKey(code string) string {
	return "country:" + strings.ToUpper(strings.TrimSpace(code))
}

func StockKey(symbol string) string {
	return "stock:" + strings.ToUpper(strings.TrimSpace(symbol))
}

func SearchKey(query string) string {
	return "search:" + NormalizeQuery(query)
}

// AdviceKey caches TP/SL suggestions per position.
func AdviceKey(positionID string) string {
	return "advice:" + positionID
}

// NormalizeQuery lowercases, trims and collapses inner whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
