package investing

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"
)

// systemBlock is the envelope status every app API response carries.
type systemBlock struct {
	Status           string `json:"status"`
	MessageErrorCode string `json:"message_error_code"`
	Messages         struct {
		DisplayMessage string `json:"display_message"`
	} `json:"messages"`
}

// loginResponse is the response from login_api.php.
type loginResponse struct {
	System systemBlock `json:"system"`
	Data   struct {
		Token         string       `json:"token"`
		UserID        json.Number  `json:"user_ID"`
		UserEmail     string       `json:"user_email"`
		UserFirstname string       `json:"user_firstname"`
		UserLastname  string       `json:"user_lastname"`
		Errors        []fieldError `json:"errors"`
	} `json:"data"`
}

type fieldError struct {
	FieldError string `json:"fieldError"`
}

// LoginResult holds the outcome of a successful login.
type LoginResult struct {
	Token     string
	UserID    string
	UserEmail string
}

// Portfolio is one portfolio entry from get_all_portfolios_new.
// Only position-type portfolios hold actual holdings; watchlist-type
// entries are filtered out before this struct is surfaced.
type Portfolio struct {
	ID       json.Number `json:"portfolio_id"`
	Name     string      `json:"portfolio_name"`
	Type     string      `json:"portfolioType"`
	CurrSign string      `json:"currency_sign"`
}

// portfolioType values used by the provider.
const portfolioTypePosition = "position"

// portfoliosResponse is the response from get_all_portfolios_new.
type portfoliosResponse struct {
	System systemBlock `json:"system"`
	Data   []struct {
		ScreenData struct {
			Portfolios []Portfolio `json:"portfolio"`
		} `json:"screen_data"`
	} `json:"data"`
}

// Position is one open position row from get_portfolio_positions.
// Numeric fields arrive as European-formatted strings ("1.234,56").
type Position struct {
	PairID      json.Number `json:"pair_ID"`
	Name        string      `json:"pair_name"`
	MarketValue string      `json:"MarketValue"`
	OpenPL      string      `json:"OpenPL"`
	DailyPL     string      `json:"DailyPL"`
}

// positionsResponse is the response from get_portfolio_positions.
type positionsResponse struct {
	System systemBlock `json:"system"`
	Data   []struct {
		ScreenData struct {
			Positions []Position `json:"positions"`
			CurrSign  string     `json:"curr_sign"`
		} `json:"screen_data"`
	} `json:"data"`
}

// PositionsResult holds the open positions of one portfolio.
type PositionsResult struct {
	Positions []Position
	Currency  string
}

// ParseEuropeanNumber converts the provider's European number format to a
// float. Examples: "240.937,98" -> 240937.98, "41,71%" -> 41.71,
// "+70.864,27" -> 70864.27, "-1.615,47" -> -1615.47.
// Unparseable values resolve to 0 with a warning, matching the lenient
// handling the provider's own apps apply.
func ParseEuropeanNumber(value string) float64 {
	if value == "" {
		return 0
	}
	cleaned := strings.NewReplacer("%", "", "€", "", "$", "", "£", "", " ", "", " ", "").Replace(value)
	cleaned = strings.TrimSpace(cleaned)

	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimLeft(cleaned, "+-")

	// European format: dots are thousands separators, comma is decimal.
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	result, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		log.Printf("[Investing] Could not parse number: %q", value)
		return 0
	}
	if negative {
		return -result
	}
	return result
}

// currencyForSign maps a provider currency sign to an ISO code.
func currencyForSign(sign string) string {
	switch sign {
	case "€", "EUR":
		return "EUR"
	case "$", "USD":
		return "USD"
	case "£", "GBP":
		return "GBP"
	case "kr", "DKK":
		return "DKK"
	case "":
		return "EUR"
	default:
		return sign
	}
}
