package investing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GetPortfolios fetches all position-type portfolios for the authenticated
// user. Watchlist-type entries are excluded unconditionally; they hold no
// positions and are never tracked.
func (c *Client) GetPortfolios(ctx context.Context, token, udid string) ([]Portfolio, error) {
	q, err := apiQuery([]map[string]any{{
		"action":            "get_all_portfolios_new",
		"bring_sums":        false,
		"include_pair_attr": false,
		"include_pairs":     true,
	}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("GET", c.baseURL+"/portfolio_api.php?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, req, token, udid)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrTokenExpired
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to get portfolios: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result portfoliosResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding portfolios: %v", ErrMalformedResponse, err)
	}

	if err := checkSystem(result.System); err != nil {
		return nil, err
	}

	var portfolios []Portfolio
	for _, d := range result.Data {
		for _, p := range d.ScreenData.Portfolios {
			if p.Type == portfolioTypePosition {
				portfolios = append(portfolios, p)
			}
		}
	}
	return portfolios, nil
}
