// Package pinetwork talks to the Pi Platform API (v2): user
// authentication and server-side payment lifecycle calls.
package pinetwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/model"
)

var (
	ErrUnauthenticated = errors.New("pi network rejected the access token")
	ErrRequest         = errors.New("pi network request failed")
)

// Network is the subset of the Pi Platform API the order core uses.
type Network interface {
	AuthenticateUser(ctx context.Context, accessToken string) (*User, error)
	CreatePayment(ctx context.Context, args PaymentArgs) (*Payment, error)
	CompletePayment(ctx context.Context, paymentID, txid string) (*Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*Payment, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*Payment, error)
}

type User struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type PaymentArgs struct {
	Amount   float64                `json:"amount"`
	Memo     string                 `json:"memo"`
	Metadata map[string]interface{} `json:"metadata"`
	UID      string                 `json:"uid"`
}

type PaymentFlags struct {
	DeveloperApproved   bool `json:"developer_approved"`
	TransactionVerified bool `json:"transaction_verified"`
	DeveloperCompleted  bool `json:"developer_completed"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

type Transaction struct {
	TxID     string `json:"txid"`
	Verified bool   `json:"verified"`
	Link     string `json:"_link"`
}

type Payment struct {
	Identifier  string                 `json:"identifier"`
	UserUID     string                 `json:"user_uid"`
	Amount      float64                `json:"amount"`
	Memo        string                 `json:"memo"`
	Metadata    map[string]interface{} `json:"metadata"`
	Status      PaymentFlags           `json:"status"`
	Transaction *Transaction           `json:"transaction"`
}

// State maps the upstream flags onto the order's payment status.
func (p *Payment) State() model.PaymentStatus {
	switch {
	case p.Status.DeveloperCompleted:
		return model.PaymentCompleted
	case p.Status.Cancelled || p.Status.UserCancelled:
		return model.PaymentFailed
	default:
		return model.PaymentPending
	}
}

func (p *Payment) TxID() string {
	if p.Transaction == nil {
		return ""
	}
	return p.Transaction.TxID
}

type apiError struct {
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

// Client is the HTTP implementation of Network.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	log     logger.ILogger
}

var _ Network = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration, log logger.ILogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		log:     log.With(logger.String("component", "pinetwork")),
	}
}

func (c *Client) AuthenticateUser(ctx context.Context, accessToken string) (*User, error) {
	agent := fiber.Get(c.baseURL + "/v2/me")
	agent.Set(fiber.HeaderAuthorization, "Bearer "+accessToken)

	var user User
	code, err := c.do(ctx, agent, &user)
	if code == fiber.StatusUnauthorized {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreatePayment(ctx context.Context, args PaymentArgs) (*Payment, error) {
	agent := fiber.Post(c.baseURL + "/v2/payments")
	agent.JSON(fiber.Map{"payment": args})
	return c.payment(ctx, agent, "create")
}

func (c *Client) CompletePayment(ctx context.Context, paymentID, txid string) (*Payment, error) {
	agent := fiber.Post(c.baseURL + "/v2/payments/" + paymentID + "/complete")
	agent.JSON(fiber.Map{"txid": txid})
	return c.payment(ctx, agent, "complete")
}

func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*Payment, error) {
	agent := fiber.Post(c.baseURL + "/v2/payments/" + paymentID + "/cancel")
	return c.payment(ctx, agent, "cancel")
}

func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*Payment, error) {
	agent := fiber.Get(c.baseURL + "/v2/payments/" + paymentID)
	return c.payment(ctx, agent, "get")
}

func (c *Client) payment(ctx context.Context, agent *fiber.Agent, op string) (*Payment, error) {
	agent.Set(fiber.HeaderAuthorization, "Key "+c.apiKey)

	var p Payment
	if _, err := c.do(ctx, agent, &p); err != nil {
		c.log.Warning("payment call failed", logger.String("op", op), logger.Error(err))
		return nil, err
	}
	return &p, nil
}

// do sends the request and decodes a 2xx body into out. The fiber agent
// has no context support, so the deadline is folded into its timeout.
func (c *Client) do(ctx context.Context, agent *fiber.Agent, out interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	agent.Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRequest, err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return code, fmt.Errorf("%w: %v", ErrRequest, errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		msg := apiErr.ErrorMessage
		if msg == "" {
			msg = apiErr.Error
		}
		return code, fmt.Errorf("%w: status %d: %s", ErrRequest, code, msg)
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return code, fmt.Errorf("%w: decode response: %v", ErrRequest, err)
		}
	}
	return code, nil
}
