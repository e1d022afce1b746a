package investing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// GetPositions fetches the open position list for one portfolio.
func (c *Client) GetPositions(ctx context.Context, token, udid string, portfolioID int64) (*PositionsResult, error) {
	q, err := apiQuery(map[string]any{
		"action":            "get_portfolio_positions",
		"bring_sums":        false,
		"include_pair_attr": false,
		"pair_id":           0,
		"portfolioid":       portfolioID,
		"positionType":      "open",
	})
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
		return nil, fmt.Errorf("failed to get positions: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result positionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding positions: %v", ErrMalformedResponse, err)
	}

	if err := checkSystem(result.System); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("%w: no data in positions response", ErrMalformedResponse)
	}

	screen := result.Data[0].ScreenData
	return &PositionsResult{
		Positions: screen.Positions,
		Currency:  currencyForSign(screen.CurrSign),
	}, nil
}
