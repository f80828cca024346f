package smsgateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"queue-bot/internal/stories/notify"
)

var ErrRejected = errors.New("sms gateway rejected the message")

// Client talks to a JSON SMS gateway:
//
//	POST {baseURL}/messages {"to","from","text"} -> {"id","status","cost"}
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	sender  string
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		if burst < 1 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewClient(baseURL, apiKey, sender string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		sender:  sender,
		limiter: rate.NewLimiter(10, 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendSMS submits one message and returns the billed cost.
func (c *Client) SendSMS(ctx context.Context, phone, text string) (*notify.SendResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiting: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(encodeMessage(phone, c.sender, text)))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Error("SMS gateway error",
			"status", resp.StatusCode,
			"body", string(body))
		return nil, fmt.Errorf("%w: http %d", ErrRejected, resp.StatusCode)
	}

	result, status, err := decodeResult(body)
	if err != nil {
		return nil, err
	}
	if status == "rejected" || status == "failed" {
		return nil, fmt.Errorf("%w: status %s", ErrRejected, status)
	}

	c.logger.Debug("SMS accepted", "message_id", result.MessageID, "cost", result.Cost.String())
	return result, nil
}

func encodeMessage(to, from, text string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("to")
	e.Str(to)
	if from != "" {
		e.FieldStart("from")
		e.Str(from)
	}
	e.FieldStart("text")
	e.Str(text)
	e.ObjEnd()
	return e.Bytes()
}

// decodeResult accepts cost as either a JSON number or a string.
func decodeResult(body []byte) (*notify.SendResult, string, error) {
	result := &notify.SendResult{Cost: decimal.Zero}
	var status string

	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			result.MessageID = v
			return err
		case "status":
			v, err := d.Str()
			status = v
			return err
		case "cost":
			var raw string
			switch d.Next() {
			case jx.String:
				v, err := d.Str()
				if err != nil {
					return err
				}
				raw = v
			case jx.Number:
				n, err := d.Num()
				if err != nil {
					return err
				}
				raw = n.String()
			default:
				return d.Skip()
			}
			cost, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("parse cost %q: %w", raw, err)
			}
			result.Cost = cost
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, "", fmt.Errorf("decode response: %w", err)
	}
	return result, status, nil
}
