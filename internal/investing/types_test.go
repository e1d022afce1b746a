package investing

import "testing"

func TestParseEuropeanNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"thousands and decimals", "240.937,98", 240937.98},
		{"positive sign", "+70.864,27", 70864.27},
		{"negative", "-1.615,47", -1615.47},
		{"percentage", "41,71%", 41.71},
		{"euro sign", "€1.000,00", 1000},
		{"dollar sign", "$500,25", 500.25},
		{"small number", "1,5", 1.5},
		{"integer with thousands", "12.345", 12345},
		{"plain integer", "42", 42},
		{"zero", "0", 0},
		{"empty", "", 0},
		{"garbage", "n/a", 0},
		{"spaces", " 1.234,56 ", 1234.56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEuropeanNumber(tt.input)
			if got != tt.want {
				t.Errorf("ParseEuropeanNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCurrencyForSign(t *testing.T) {
	tests := []struct {
		sign string
		want string
	}{
		{"€", "EUR"},
		{"$", "USD"},
		{"£", "GBP"},
		{"kr", "DKK"},
		{"", "EUR"},
		{"CHF", "CHF"},
	}

	for _, tt := range tests {
		if got := currencyForSign(tt.sign); got != tt.want {
			t.Errorf("currencyForSign(%q) = %q, want %q", tt.sign, got, tt.want)
		}
	}
}

func TestGenerateUDID_Deterministic(t *testing.T) {
	a := GenerateUDID("my-instance-seed")
	b := GenerateUDID("my-instance-seed")
	if a != b {
		t.Errorf("same seed produced different UDIDs: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("UDID length = %d, want 16", len(a))
	}

	other := GenerateUDID("another-seed")
	if a == other {
		t.Error("different seeds produced the same UDID")
	}
}

func TestGenerateUDID_RandomWithoutSeed(t *testing.T) {
	a := GenerateUDID("")
	b := GenerateUDID("")
	if len(a) != 16 || len(b) != 16 {
		t.Errorf("UDID lengths = %d, %d, want 16", len(a), len(b))
	}
	if a == b {
		t.Error("two random UDIDs should not collide")
	}
}

func TestNormalizePortfolioName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "My Portfolio", "my_portfolio"},
		{"apostrophe dropped", "John's Crypto", "johns_crypto"},
		{"accents stripped", "Café Fund", "cafe_fund"},
		{"punctuation dropped", "Tech (2024)!", "tech_2024"},
		{"already normalized", "long_term", "long_term"},
		{"digits kept", "Top 10", "top_10"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePortfolioName(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePortfolioName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
