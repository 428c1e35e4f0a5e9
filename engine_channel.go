package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// IssueChannelCode mints a delivery code for the account on the given
// channel and stores the pending challenge, replacing any prior code for
// the same account and channel. Delivery itself belongs to the caller.
func (e *Engine) IssueChannelCode(ctx context.Context, account string, channel Channel, client Client) (OneTimeCode, error) {
	if e == nil {
		return OneTimeCode{}, ErrEngineNotReady
	}

	code, err := e.channel.Generate(channel, e.now())
	if err != nil {
		return OneTimeCode{}, err
	}

	err = e.challenges.Put(ctx, ChannelChallenge{
		ID:      uuid.NewString(),
		Account: account,
		Code:    code,
	})
	if err != nil {
		return OneTimeCode{}, err
	}

	e.metricInc(MetricChannelCodeIssued)
	e.Log(ctx, AuditEvent{
		EventType: "channel_code_issued",
		UserID:    account,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Severity:  SeverityLow,
		Success:   true,
		Details:   map[string]string{"channel": channel.String()},
	})
	return code, nil
}

// VerifyChannelCode checks a submitted delivery code against the pending
// challenge for the account and channel. A correct code consumes the
// challenge; a wrong one leaves it pending so a mistyped digit does not
// force a resend. Guard bookkeeping still counts the failed attempt.
func (e *Engine) VerifyChannelCode(ctx context.Context, account string, channel Channel, submitted string, client Client) (AttemptResult, error) {
	if e == nil {
		return AttemptResult{}, ErrEngineNotReady
	}

	var expired bool
	result, err := e.guardedVerify(ctx, account, client, "channel_code_verify",
		MetricChannelCodeSuccess, MetricChannelCodeFailure,
		func() (bool, error) {
			ch, err := e.challenges.Get(ctx, account, channel)
			if err != nil {
				switch {
				case errors.Is(err, ErrChallengeExpired):
					expired = true
					return false, nil
				case errors.Is(err, ErrChallengeNotFound):
					return false, nil
				}
				// A store fault is not a wrong code; surface it without
				// counting an attempt against the account.
				return false, err
			}
			if !e.channel.Verify(submitted, ch.Code, e.now()) {
				return false, nil
			}
			// Consume failure after a correct code is a store fault, not a
			// wrong code; the attempt still succeeds and TTL reclaims the key.
			_ = e.challenges.Consume(ctx, account, channel)
			return true, nil
		})
	if err != nil {
		return AttemptResult{}, err
	}

	if expired {
		e.metricInc(MetricChannelCodeExpired)
	}
	return result, nil
}
