package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"helpdesk/models"
)

// RemoteDirectory asks the account service over HTTP:
//
//	GET {base}/accounts/{id}
//	GET {base}/accounts?role=AGENT,ADMIN&active=true
type RemoteDirectory struct {
	client *resty.Client
}

func NewRemoteDirectory(baseURL, token string) *RemoteDirectory {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &RemoteDirectory{client: client}
}

// accountEnvelope is the account service's {status,message,data} response.
type accountEnvelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (d *RemoteDirectory) Get(ctx context.Context, id uint) (Account, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", fmt.Sprint(id)).
		Get("/accounts/{id}")
	if err != nil {
		return Account{}, fmt.Errorf("account service: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return Account{}, ErrAccountNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		log.Printf("[ACCOUNTS] lookup of %d failed: %s", id, resp.String())
		return Account{}, fmt.Errorf("account service returned %d", resp.StatusCode())
	}

	var body accountEnvelope[Account]
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Account{}, fmt.Errorf("decode account %d: %w", id, err)
	}
	return body.Data, nil
}

func (d *RemoteDirectory) AgentIDs(ctx context.Context) ([]uint, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"role":   models.RoleAgent + "," + models.RoleAdmin,
			"active": "true",
		}).
		Get("/accounts")
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("account service returned %d", resp.StatusCode())
	}

	var body accountEnvelope[[]Account]
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode agent list: %w", err)
	}
	ids := make([]uint, 0, len(body.Data))
	for _, a := range body.Data {
		if a.IsStaff() && !a.Suspended {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}
