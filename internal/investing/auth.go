package investing

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// Login authenticates against login_api.php and returns the issued token.
// The password is MD5-hashed before transmission, as the provider's app
// protocol requires; the plaintext is not retained.
func (c *Client) Login(ctx context.Context, email, password, udid string) (*LoginResult, error) {
	hash := md5.Sum([]byte(password))

	q, err := apiQuery(map[string]string{"action": "login"})
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("internal_version", defaultInternalVer)
	form.Set("reg_initiator", "Side Menu Sign In")
	form.Set("email", email)
	form.Set("smssupport", "1")
	form.Set("password", hex.EncodeToString(hash[:]))
	form.Set("reg_source", "android")

	loginURL := c.baseURL + "/login_api.php?" + q.Encode()
	req, err := http.NewRequest("POST", loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.Printf("[Investing] Attempting login for %s", email)

	resp, err := c.doRequest(ctx, req, "", udid)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding login response: %v", ErrMalformedResponse, err)
	}

	if result.System.Status == "error" {
		msg := result.System.Messages.DisplayMessage
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthenticationFailed, msg)
	}
	if len(result.Data.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAuthenticationFailed, result.Data.Errors[0].FieldError)
	}
	if result.Data.Token == "" {
		return nil, fmt.Errorf("%w: no token in response", ErrAuthenticationFailed)
	}

	log.Printf("[Investing] Login successful for %s", result.Data.UserEmail)

	return &LoginResult{
		Token:     result.Data.Token,
		UserID:    result.Data.UserID.String(),
		UserEmail: result.Data.UserEmail,
	}, nil
}
