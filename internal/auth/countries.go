package auth

import "strings"

// Country is one entry of the phone-entry country picker.
type Country struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	DialCode string `json:"dial_code"`
}

// countries is the static catalog behind the dial-code picker. Ordered
// by name; the handler serves it as-is.
var countries = []Country{
	{Code: "AR", Name: "Argentina", DialCode: "+54"},
	{Code: "AM", Name: "Armenia", DialCode: "+374"},
	{Code: "AU", Name: "Australia", DialCode: "+61"},
	{Code: "AT", Name: "Austria", DialCode: "+43"},
	{Code: "BY", Name: "Belarus", DialCode: "+375"},
	{Code: "BE", Name: "Belgium", DialCode: "+32"},
	{Code: "BR", Name: "Brazil", DialCode: "+55"},
	{Code: "CA", Name: "Canada", DialCode: "+1"},
	{Code: "CN", Name: "China", DialCode: "+86"},
	{Code: "CZ", Name: "Czechia", DialCode: "+420"},
	{Code: "DK", Name: "Denmark", DialCode: "+45"},
	{Code: "EE", Name: "Estonia", DialCode: "+372"},
	{Code: "FI", Name: "Finland", DialCode: "+358"},
	{Code: "FR", Name: "France", DialCode: "+33"},
	{Code: "GE", Name: "Georgia", DialCode: "+995"},
	{Code: "DE", Name: "Germany", DialCode: "+49"},
	{Code: "GR", Name: "Greece", DialCode: "+30"},
	{Code: "IN", Name: "India", DialCode: "+91"},
	{Code: "ID", Name: "Indonesia", DialCode: "+62"},
	{Code: "IE", Name: "Ireland", DialCode: "+353"},
	{Code: "IL", Name: "Israel", DialCode: "+972"},
	{Code: "IT", Name: "Italy", DialCode: "+39"},
	{Code: "JP", Name: "Japan", DialCode: "+81"},
	{Code: "KZ", Name: "Kazakhstan", DialCode: "+7"},
	{Code: "LV", Name: "Latvia", DialCode: "+371"},
	{Code: "LT", Name: "Lithuania", DialCode: "+370"},
	{Code: "MX", Name: "Mexico", DialCode: "+52"},
	{Code: "NL", Name: "Netherlands", DialCode: "+31"},
	{Code: "NZ", Name: "New Zealand", DialCode: "+64"},
	{Code: "NO", Name: "Norway", DialCode: "+47"},
	{Code: "PL", Name: "Poland", DialCode: "+48"},
	{Code: "PT", Name: "Portugal", DialCode: "+351"},
	{Code: "RO", Name: "Romania", DialCode: "+40"},
	{Code: "RS", Name: "Serbia", DialCode: "+381"},
	{Code: "SG", Name: "Singapore", DialCode: "+65"},
	{Code: "ES", Name: "Spain", DialCode: "+34"},
	{Code: "SE", Name: "Sweden", DialCode: "+46"},
	{Code: "CH", Name: "Switzerland", DialCode: "+41"},
	{Code: "TR", Name: "Turkey", DialCode: "+90"},
	{Code: "UA", Name: "Ukraine", DialCode: "+380"},
	{Code: "AE", Name: "United Arab Emirates", DialCode: "+971"},
	{Code: "GB", Name: "United Kingdom", DialCode: "+44"},
	{Code: "US", Name: "United States", DialCode: "+1"},
	{Code: "UZ", Name: "Uzbekistan", DialCode: "+998"},
}

// Countries returns the picker catalog.
func Countries() []Country {
	out := make([]Country, len(countries))
	copy(out, countries)
	return out
}

// DialCodeKnown reports whether the dial code belongs to the catalog.
func DialCodeKnown(dialCode string) bool {
	for _, c := range countries {
		if c.DialCode == dialCode {
			return true
		}
	}
	return false
}

// NormalizePhone joins dial code and national number, stripping the
// separators users paste in.
func NormalizePhone(dialCode, number string) string {
	var b strings.Builder
	b.WriteString(dialCode)
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
