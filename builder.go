package authcore

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/bindme/authcore/internal/limiters"
)

// Builder assembles an [Engine]. Zero or more With calls, then Build.
// Without Redis every store is in-process; WithRedis moves the lockout,
// rate-limit, and challenge state into Redis so restarts and replicas
// share one view.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time
	alert     func(AuditEvent)
}

// New returns a builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the entire configuration. Validation happens in
// Build, not here.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis backs the attempt and challenge stores with Redis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the destination for dispatched audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger routes audit events to a structured logger. Ignored when an
// explicit sink is set.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source. Tests use this to step through
// expiry windows without sleeping.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithAlertFunc sets an out-of-band hook invoked synchronously for every
// critical-severity event. Keep it fast.
func (b *Builder) WithAlertFunc(fn func(AuditEvent)) *Builder {
	b.alert = fn
	return b
}

// Build validates the configuration, wires the stores and managers, and
// starts the audit dispatcher and the background sweeper. The caller
// owns calling [Engine.Close].
func (b *Builder) Build() (*Engine, error) {
	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	sink := b.auditSink
	if sink == nil && b.logger != nil {
		sink = NewSlogSink(b.logger)
	}

	e := &Engine{
		config:  cfg,
		totp:    newTOTPManager(cfg.TOTP),
		channel: newChannelOTPManager(cfg.ChannelOTP),
		audit:   newAuditDispatcher(cfg.Audit, sink),
		log:     newAuditLog(cfg.Audit, clock),
		metrics: NewMetrics(cfg.Metrics),
		alert:   b.alert,
		clock:   clock,
	}

	if b.redis != nil {
		e.lockouts = limiters.NewRedisLockout(b.redis, "lock", cfg.Lockout.MaxAttempts, cfg.Lockout.Duration)
		e.ipAttempts = limiters.NewRedisWindow(b.redis, "ipwin", cfg.IPRate.MaxAttempts, cfg.IPRate.Window)
		e.challenges = newRedisChallengeStore(b.redis, clock)
	} else {
		e.lockouts = limiters.NewMemoryLockout(cfg.Lockout.MaxAttempts, cfg.Lockout.Duration)
		e.ipAttempts = limiters.NewMemoryWindow(cfg.IPRate.MaxAttempts, cfg.IPRate.Window)
		e.challenges = newMemoryChallengeStore(clock)
	}

	if cfg.Throttle.VerifyPerSecond > 0 {
		burst := cfg.Throttle.Burst
		if burst <= 0 {
			burst = 1
		}
		e.throttle = rate.NewLimiter(rate.Limit(cfg.Throttle.VerifyPerSecond), burst)
	}

	if cfg.Sweep.Interval > 0 {
		e.startSweeper(cfg.Sweep.Interval)
	}

	return e, nil
}
