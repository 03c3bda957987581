package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ticketshow/internal/models"
)

type IdentityConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// IdentityClient reads user profiles from the external identity provider
type IdentityClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// Identity provider user model
type identityUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	Username              string `json:"username"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func NewIdentityClient(cfg IdentityConfig) *IdentityClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &IdentityClient{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// GetUser returns the profile for userID, or nil if the provider does not know it
func (ic *IdentityClient) GetUser(ctx context.Context, userID string) (*models.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		ic.baseURL+"/v1/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ic.secretKey)

	resp, err := ic.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result identityUser
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &models.User{
		ID:        result.ID,
		Email:     result.primaryEmail(),
		FirstName: result.FirstName,
		LastName:  result.LastName,
		Username:  result.Username,
	}, nil
}

func (u identityUser) primaryEmail() string {
	for _, addr := range u.EmailAddresses {
		if addr.ID == u.PrimaryEmailAddressID {
			return addr.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}
