package watchlist

import "strings"

// Country is a market that can be analyzed.
type Country struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Flag   string `json:"flag"`
	Region string `json:"region"`
	// PEA marks countries eligible for the French PEA account.
	PEA bool `json:"pea"`
}

// Catalog lists the supported countries grouped by region.
var Catalog = []Country{
	{Code: "KR", Name: "Corée du Sud", Flag: "🇰🇷", Region: "Asie", PEA: false},
	{Code: "IN", Name: "Inde", Flag: "🇮🇳", Region: "Asie", PEA: false},
	{Code: "ID", Name: "Indonésie", Flag: "🇮🇩", Region: "Asie", PEA: false},
	{Code: "MY", Name: "Malaisie", Flag: "🇲🇾", Region: "Asie", PEA: false},
	{Code: "PH", Name: "Philippines", Flag: "🇵🇭", Region: "Asie", PEA: false},
	{Code: "TH", Name: "Thaïlande", Flag: "🇹🇭", Region: "Asie", PEA: false},
	{Code: "VN", Name: "Vietnam", Flag: "🇻🇳", Region: "Asie", PEA: false},
	{Code: "CN", Name: "Chine", Flag: "🇨🇳", Region: "Asie", PEA: false},
	{Code: "JP", Name: "Japon", Flag: "🇯🇵", Region: "Asie", PEA: false},
	{Code: "TW", Name: "Taïwan", Flag: "🇹🇼", Region: "Asie", PEA: false},
	{Code: "SG", Name: "Singapour", Flag: "🇸🇬", Region: "Asie", PEA: false},
	{Code: "HK", Name: "Hong Kong", Flag: "🇭🇰", Region: "Asie", PEA: false},
	{Code: "US", Name: "États-Unis", Flag: "🇺🇸", Region: "Amérique", PEA: false},
	{Code: "BR", Name: "Brésil", Flag: "🇧🇷", Region: "Amérique", PEA: false},
	{Code: "MX", Name: "Mexique", Flag: "🇲🇽", Region: "Amérique", PEA: false},
	{Code: "AR", Name: "Argentine", Flag: "🇦🇷", Region: "Amérique", PEA: false},
	{Code: "CL", Name: "Chili", Flag: "🇨🇱", Region: "Amérique", PEA: false},
	{Code: "CO", Name: "Colombie", Flag: "🇨🇴", Region: "Amérique", PEA: false},
	{Code: "PE", Name: "Pérou", Flag: "🇵🇪", Region: "Amérique", PEA: false},
	{Code: "GB", Name: "Royaume-Uni", Flag: "🇬🇧", Region: "Europe", PEA: true},
	{Code: "DE", Name: "Allemagne", Flag: "🇩🇪", Region: "Europe", PEA: true},
	{Code: "FR", Name: "France", Flag: "🇫🇷", Region: "Europe", PEA: true},
	{Code: "SE", Name: "Suède", Flag: "🇸🇪", Region: "Europe", PEA: true},
	{Code: "NO", Name: "Norvège", Flag: "🇳🇴", Region: "Europe", PEA: true},
	{Code: "DK", Name: "Danemark", Flag: "🇩🇰", Region: "Europe", PEA: true},
	{Code: "FI", Name: "Finlande", Flag: "🇫🇮", Region: "Europe", PEA: true},
	{Code: "NL", Name: "Pays-Bas", Flag: "🇳🇱", Region: "Europe", PEA: true},
	{Code: "BE", Name: "Belgique", Flag: "🇧🇪", Region: "Europe", PEA: true},
	{Code: "IT", Name: "Italie", Flag: "🇮🇹", Region: "Europe", PEA: true},
	{Code: "ES", Name: "Espagne", Flag: "🇪🇸", Region: "Europe", PEA: true},
	{Code: "PT", Name: "Portugal", Flag: "🇵🇹", Region: "Europe", PEA: true},
	{Code: "GR", Name: "Grèce", Flag: "🇬🇷", Region: "Europe", PEA: true},
	{Code: "PL", Name: "Pologne", Flag: "🇵🇱", Region: "Europe", PEA: true},
	{Code: "CZ", Name: "Tchéquie", Flag: "🇨🇿", Region: "Europe", PEA: true},
	{Code: "HU", Name: "Hongrie", Flag: "🇭🇺", Region: "Europe", PEA: true},
	{Code: "RO", Name: "Roumanie", Flag: "🇷🇴", Region: "Europe", PEA: true},
	{Code: "BG", Name: "Bulgarie", Flag: "🇧🇬", Region: "Europe", PEA: true},
	{Code: "HR", Name: "Croatie", Flag: "🇭🇷", Region: "Europe", PEA: true},
	{Code: "RS", Name: "Serbie", Flag: "🇷🇸", Region: "Europe", PEA: false},
	{Code: "TR", Name: "Turquie", Flag: "🇹🇷", Region: "Europe", PEA: false},
	{Code: "AT", Name: "Autriche", Flag: "🇦🇹", Region: "Europe", PEA: true},
	{Code: "CH", Name: "Suisse", Flag: "🇨🇭", Region: "Europe", PEA: false},
	{Code: "IE", Name: "Irlande", Flag: "🇮🇪", Region: "Europe", PEA: true},
	{Code: "AU", Name: "Australie", Flag: "🇦🇺", Region: "Océanie", PEA: false},
	{Code: "NZ", Name: "Nouvelle-Zélande", Flag: "🇳🇿", Region: "Océanie", PEA: false},
	{Code: "ZA", Name: "Afrique du Sud", Flag: "🇿🇦", Region: "Afrique", PEA: false},
	{Code: "NG", Name: "Nigeria", Flag: "🇳🇬", Region: "Afrique", PEA: false},
	{Code: "EG", Name: "Égypte", Flag: "🇪🇬", Region: "Afrique", PEA: false},
	{Code: "MA", Name: "Maroc", Flag: "🇲🇦", Region: "Afrique", PEA: false},
	{Code: "KE", Name: "Kenya", Flag: "🇰🇪", Region: "Afrique", PEA: false},
	{Code: "SA", Name: "Arabie Saoudite", Flag: "🇸🇦", Region: "Moyen-Orient", PEA: false},
	{Code: "AE", Name: "Émirats Arabes Unis", Flag: "🇦🇪", Region: "Moyen-Orient", PEA: false},
	{Code: "QA", Name: "Qatar", Flag: "🇶🇦", Region: "Moyen-Orient", PEA: false},
	{Code: "IL", Name: "Israël", Flag: "🇮🇱", Region: "Moyen-Orient", PEA: false},
	{Code: "RU", Name: "Russie", Flag: "🇷🇺", Region: "Europe", PEA: false},
}

var byCode = func() map[string]Country {
	m := make(map[string]Country, len(Catalog))
	for _, c := range Catalog {
		m[c.Code] = c
	}
	return m
}()

// Lookup finds a catalog country by ISO code.
func Lookup(code string) (Country, bool) {
	c, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Regions returns the distinct regions in catalog order.
func Regions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range Catalog {
		if !seen[c.Region] {
			seen[c.Region] = true
			out = append(out, c.Region)
		}
	}
	return out
}
